package textgen

import (
	"math"
	"math/rand"
	"sort"
)

// Sampler picks the next token from a logits vector.
// A Sampler is not safe for concurrent use; the service builds one per call.
type Sampler struct {
	cfg *Config
	rng *rand.Rand
}

// NewSampler creates a sampler for one generation call.
func NewSampler(cfg *Config, rng *rand.Rand) *Sampler {
	return &Sampler{cfg: cfg, rng: rng}
}

// Sample returns the next token ID. history holds the tokens generated so far
// and feeds the repetition penalty. logits is modified in place.
func (s *Sampler) Sample(logits []float32, history []int) int {
	if s.cfg.RepetitionPenalty > 1.0 {
		applyRepetitionPenalty(logits, history, float32(s.cfg.RepetitionPenalty))
	}

	if s.cfg.Strategy == StrategyGreedy {
		return argmax(logits)
	}

	if s.cfg.Temperature != 1.0 {
		t := float32(s.cfg.Temperature)
		for i := range logits {
			logits[i] /= t
		}
	}

	probs := softmax(logits)

	if s.cfg.TopK > 0 && s.cfg.TopK < len(probs) {
		probs = topKFiltering(probs, s.cfg.TopK)
	}

	if s.cfg.TopP < 1.0 {
		probs = topPFiltering(probs, float32(s.cfg.TopP))
	}

	return s.sampleMultinomial(probs)
}

func applyRepetitionPenalty(logits []float32, history []int, penalty float32) {
	seen := make(map[int]struct{}, len(history))
	for _, id := range history {
		if id < 0 || id >= len(logits) {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		if logits[id] > 0 {
			logits[id] /= penalty
		} else {
			logits[id] *= penalty
		}
	}
}

func argmax(logits []float32) int {
	maxIdx := 0
	maxVal := logits[0]
	for i := 1; i < len(logits); i++ {
		if logits[i] > maxVal {
			maxVal = logits[i]
			maxIdx = i
		}
	}
	return maxIdx
}

// softmax converts logits to probabilities
func softmax(logits []float32) []float32 {
	maxLogit := logits[0]
	for _, l := range logits[1:] {
		if l > maxLogit {
			maxLogit = l
		}
	}

	probs := make([]float32, len(logits))
	sum := float32(0)
	for i, l := range logits {
		probs[i] = float32(math.Exp(float64(l - maxLogit)))
		sum += probs[i]
	}

	for i := range probs {
		probs[i] /= sum
	}

	return probs
}

type indexedProb struct {
	idx  int
	prob float32
}

func sortedByProb(probs []float32) []indexedProb {
	indexed := make([]indexedProb, len(probs))
	for i, p := range probs {
		indexed[i] = indexedProb{i, p}
	}
	sort.Slice(indexed, func(i, j int) bool {
		return indexed[i].prob > indexed[j].prob
	})
	return indexed
}

// topKFiltering keeps only top-k probabilities, zeros out the rest
func topKFiltering(probs []float32, k int) []float32 {
	indexed := sortedByProb(probs)

	result := make([]float32, len(probs))
	for i := 0; i < k && i < len(indexed); i++ {
		result[indexed[i].idx] = indexed[i].prob
	}

	return result
}

// topPFiltering keeps the smallest set of tokens whose mass reaches p
func topPFiltering(probs []float32, p float32) []float32 {
	indexed := sortedByProb(probs)

	total := float32(0)
	for _, item := range indexed {
		total += item.prob
	}

	cumProb := float32(0)
	cutoff := len(indexed)
	for i, item := range indexed {
		cumProb += item.prob
		if cumProb >= p*total {
			cutoff = i + 1
			break
		}
	}

	result := make([]float32, len(probs))
	for i := 0; i < cutoff; i++ {
		result[indexed[i].idx] = indexed[i].prob
	}

	return result
}

// sampleMultinomial samples from an unnormalized distribution
func (s *Sampler) sampleMultinomial(probs []float32) int {
	cumProbs := make([]float32, len(probs))
	cumProbs[0] = probs[0]
	for i := 1; i < len(probs); i++ {
		cumProbs[i] = cumProbs[i-1] + probs[i]
	}

	total := cumProbs[len(cumProbs)-1]
	if total <= 0 || math.IsNaN(float64(total)) {
		return argmax(probs)
	}

	r := s.rng.Float32() * total

	// first index whose cumulative mass exceeds r; zero-probability
	// tokens share their predecessor's cumulative value and are skipped
	idx := sort.Search(len(cumProbs), func(i int) bool {
		return cumProbs[i] > r
	})

	if idx >= len(probs) {
		idx = len(probs) - 1
		for idx > 0 && probs[idx] == 0 {
			idx--
		}
	}

	return idx
}
