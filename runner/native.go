package runner

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"

	"tweetgen-go/gpt2"
	"tweetgen-go/textgen"
)

// NativeRunner implements textgen.ModelRunner with the pure-Go GPT-2.
// Each sequence keeps its own KV cache until Release.
type NativeRunner struct {
	model  *gpt2.Model
	logger *zerolog.Logger

	mu     sync.Mutex
	states map[int64]*gpt2.State
}

// NewNativeRunner wraps a loaded model.
func NewNativeRunner(model *gpt2.Model, logger *zerolog.Logger) *NativeRunner {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}
	logger.Info().Str("model", model.String()).Msg("native runner ready")

	return &NativeRunner{
		model:  model,
		logger: logger,
		states: make(map[int64]*gpt2.State),
	}
}

// Run feeds the tokens of seq the cache has not seen yet and returns the
// next-token logits.
func (r *NativeRunner) Run(ctx context.Context, seq *textgen.Sequence) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if seq.Len() == 0 {
		return nil, fmt.Errorf("sequence %d has no tokens", seq.SeqID)
	}

	state := r.state(seq.SeqID)
	if state.Len() >= seq.Len() {
		// the sequence was rewound; start over
		state.Reset()
	}

	logits, err := r.model.Forward(state, seq.TokenIDs[state.Len():])
	if err != nil {
		return nil, fmt.Errorf("forward pass failed: %w", err)
	}
	return logits, nil
}

func (r *NativeRunner) state(id int64) *gpt2.State {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.states[id]
	if !ok {
		s = r.model.NewState()
		r.states[id] = s
	}
	return s
}

// Release frees the KV cache of seq
func (r *NativeRunner) Release(seq *textgen.Sequence) {
	r.mu.Lock()
	delete(r.states, seq.SeqID)
	r.mu.Unlock()
}

// VocabSize returns the vocabulary size
func (r *NativeRunner) VocabSize() int {
	return r.model.Config.VocabSize
}

// ContextLength returns the maximum number of positions
func (r *NativeRunner) ContextLength() int {
	return r.model.Config.MaxSeqLen
}

// Close drops all cached states
func (r *NativeRunner) Close() error {
	r.mu.Lock()
	r.states = make(map[int64]*gpt2.State)
	r.mu.Unlock()
	return nil
}

// ActiveSequences returns how many sequences hold a KV cache
func (r *NativeRunner) ActiveSequences() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.states)
}
