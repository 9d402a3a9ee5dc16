package textgen_test

import (
	"context"
	"strings"
	"sync"

	"tweetgen-go/textgen"
)

const charAlphabet = `" abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ'.,!?`

// charTokenizer maps each rune of charAlphabet to one token. ID 0 is the
// end-of-text token and doubles as BOS and pad.
type charTokenizer struct {
	ids map[rune]int
}

func newCharTokenizer() *charTokenizer {
	ids := make(map[rune]int)
	for i, r := range []rune(charAlphabet) {
		ids[r] = i + 1
	}
	return &charTokenizer{ids: ids}
}

func (t *charTokenizer) Encode(text string) ([]int, error) {
	out := make([]int, 0, len(text))
	for _, r := range text {
		if id, ok := t.ids[r]; ok {
			out = append(out, id)
		}
	}
	return out, nil
}

func (t *charTokenizer) Decode(tokenIDs []int) (string, error) {
	alphabet := []rune(charAlphabet)
	var b strings.Builder
	for _, id := range tokenIDs {
		if id <= 0 || id > len(alphabet) {
			continue
		}
		b.WriteRune(alphabet[id-1])
	}
	return b.String(), nil
}

func (t *charTokenizer) EOSTokenID() int { return 0 }
func (t *charTokenizer) BOSTokenID() int { return 0 }
func (t *charTokenizer) PadTokenID() int { return 0 }
func (t *charTokenizer) VocabSize() int  { return len([]rune(charAlphabet)) + 1 }

// biasRunner returns flat logits with fixed per-token biases.
type biasRunner struct {
	vocab  int
	bias   map[int]float32
	ctxLen int

	mu       sync.Mutex
	runs     int
	released int
}

func newBiasRunner(bias map[int]float32) *biasRunner {
	return &biasRunner{vocab: len([]rune(charAlphabet)) + 1, bias: bias}
}

func (r *biasRunner) Run(ctx context.Context, seq *textgen.Sequence) ([]float32, error) {
	r.mu.Lock()
	r.runs++
	r.mu.Unlock()

	logits := make([]float32, r.vocab)
	for id, b := range r.bias {
		logits[id] = b
	}
	return logits, nil
}

func (r *biasRunner) Release(seq *textgen.Sequence) {
	r.mu.Lock()
	r.released++
	r.mu.Unlock()
}

func (r *biasRunner) VocabSize() int     { return r.vocab }
func (r *biasRunner) ContextLength() int { return r.ctxLen }
func (r *biasRunner) Close() error       { return nil }
