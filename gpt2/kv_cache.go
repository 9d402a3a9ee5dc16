package gpt2

// State is the KV cache of one sequence. It is not safe for concurrent use.
type State struct {
	layers []*layerCache
	length int
}

// layerCache stores keys and values as [seq, hidden] rows
type layerCache struct {
	keys   []float32
	values []float32
}

func newState(numLayers int) *State {
	s := &State{layers: make([]*layerCache, numLayers)}
	for i := range s.layers {
		s.layers[i] = &layerCache{}
	}
	return s
}

func (c *layerCache) append(k, v []float32) {
	c.keys = append(c.keys, k...)
	c.values = append(c.values, v...)
}

// Len returns the number of cached positions
func (s *State) Len() int {
	return s.length
}

// Reset clears the cache so the state can be reused
func (s *State) Reset() {
	for _, l := range s.layers {
		l.keys = l.keys[:0]
		l.values = l.values[:0]
	}
	s.length = 0
}
