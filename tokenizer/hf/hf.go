// Package hf wraps the HuggingFace tokenizers library (Rust, via cgo).
package hf

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/daulet/tokenizers"

	"tweetgen-go/tokenizer"
)

// Tokenizer encodes with a HuggingFace tokenizer.json.
type Tokenizer struct {
	tk        *tokenizers.Tokenizer
	special   tokenizer.SpecialTokens
	vocabSize int

	closeOnce sync.Once
	closeErr  error
}

// Load opens dir/tokenizer.json and resolves the special tokens from the
// checkpoint configs in dir.
func Load(dir string, opts ...tokenizer.Option) (*Tokenizer, error) {
	o := tokenizer.NewOptions(opts...)

	path := filepath.Join(dir, "tokenizer.json")
	tk, err := tokenizers.FromFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", path, err)
	}

	t := &Tokenizer{
		tk:        tk,
		vocabSize: int(tk.VocabSize()),
	}
	t.special = tokenizer.ResolveSpecialTokens(dir, o.PadToken, t.lookup)

	o.Logger.Info().
		Str("source", path).
		Int("vocab", t.vocabSize).
		Int("eos", t.special.EOS).
		Int("bos", t.special.BOS).
		Int("pad", t.special.Pad).
		Msg("loaded HuggingFace tokenizer")

	return t, nil
}

// lookup maps a single token string to its ID
func (t *Tokenizer) lookup(token string) (int, bool) {
	if token == "" {
		return 0, false
	}
	ids, _ := t.tk.Encode(token, false)
	if len(ids) != 1 {
		return 0, false
	}
	return int(ids[0]), true
}

// Encode converts text to token IDs without adding special tokens.
// Invalid UTF-8 is replaced with U+FFFD.
func (t *Tokenizer) Encode(text string) ([]int, error) {
	ids, _ := t.tk.Encode(strings.ToValidUTF8(text, "\uFFFD"), false)
	out := make([]int, len(ids))
	for i, id := range ids {
		out[i] = int(id)
	}
	return out, nil
}

// Decode converts token IDs to text, skipping special tokens
func (t *Tokenizer) Decode(tokenIDs []int) (string, error) {
	ids := make([]uint32, 0, len(tokenIDs))
	for _, id := range tokenIDs {
		if id < 0 {
			return "", fmt.Errorf("invalid token id %d", id)
		}
		ids = append(ids, uint32(id))
	}
	return t.tk.Decode(ids, true), nil
}

// EOSTokenID returns the EOS token ID
func (t *Tokenizer) EOSTokenID() int { return t.special.EOS }

// BOSTokenID returns the BOS token ID
func (t *Tokenizer) BOSTokenID() int { return t.special.BOS }

// PadTokenID returns the pad token ID
func (t *Tokenizer) PadTokenID() int { return t.special.Pad }

// VocabSize returns the vocabulary size
func (t *Tokenizer) VocabSize() int { return t.vocabSize }

// Close frees the native tokenizer
func (t *Tokenizer) Close() error {
	t.closeOnce.Do(func() {
		t.closeErr = t.tk.Close()
	})
	return t.closeErr
}
