package tokenizer

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// DefaultPadToken is the pad token GPT-2 checkpoints are served with.
const DefaultPadToken = "<|endoftext|>"

// SpecialTokens holds the resolved IDs of the control tokens. -1 means unset.
type SpecialTokens struct {
	EOS int
	BOS int
	Pad int
}

// Options configures tokenizer loading. It is shared by every backend.
type Options struct {
	PadToken string
	Logger   *zerolog.Logger
}

// Option is a functional option for Options
type Option func(*Options)

// NewOptions returns the defaults with opts applied.
func NewOptions(opts ...Option) Options {
	o := Options{PadToken: DefaultPadToken}
	for _, opt := range opts {
		opt(&o)
	}
	if o.Logger == nil {
		nop := zerolog.Nop()
		o.Logger = &nop
	}
	return o
}

// WithPadToken sets the token used for padding. An empty string keeps
// whatever the checkpoint declares.
func WithPadToken(token string) Option {
	return func(o *Options) {
		o.PadToken = token
	}
}

// WithLogger sets the logger used while loading
func WithLogger(logger *zerolog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// ResolveSpecialTokens reads tokenizer_config.json and config.json from dir and
// maps their special tokens to IDs using lookup. Values from config.json win
// over tokenizer_config.json, and padToken wins over both.
func ResolveSpecialTokens(dir, padToken string, lookup func(string) (int, bool)) SpecialTokens {
	st := SpecialTokens{EOS: -1, BOS: -1, Pad: -1}

	loadTokenizerConfig(dir, lookup, &st)
	loadModelConfig(dir, &st)

	if padToken != "" {
		if id, ok := lookup(padToken); ok {
			st.Pad = id
		}
	}

	// GPT-2 style checkpoints only ship an end-of-text token
	if st.BOS < 0 {
		st.BOS = st.EOS
	}
	if st.EOS < 0 {
		st.EOS = st.BOS
	}

	return st
}

// loadTokenizerConfig loads special tokens from tokenizer_config.json
func loadTokenizerConfig(dir string, lookup func(string) (int, bool), st *SpecialTokens) {
	data, err := os.ReadFile(filepath.Join(dir, "tokenizer_config.json"))
	if err != nil {
		return
	}

	var config struct {
		EOSToken interface{} `json:"eos_token"`
		BOSToken interface{} `json:"bos_token"`
		PadToken interface{} `json:"pad_token"`
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return
	}

	if id, ok := lookup(extractTokenString(config.EOSToken)); ok {
		st.EOS = id
	}
	if id, ok := lookup(extractTokenString(config.BOSToken)); ok {
		st.BOS = id
	}
	if id, ok := lookup(extractTokenString(config.PadToken)); ok {
		st.Pad = id
	}
}

// loadModelConfig loads token IDs from config.json (HuggingFace model config)
func loadModelConfig(dir string, st *SpecialTokens) {
	data, err := os.ReadFile(filepath.Join(dir, "config.json"))
	if err != nil {
		return
	}

	var config struct {
		EOSTokenID *int `json:"eos_token_id"`
		BOSTokenID *int `json:"bos_token_id"`
		PadTokenID *int `json:"pad_token_id"`
	}

	if err := json.Unmarshal(data, &config); err != nil {
		return
	}

	if config.EOSTokenID != nil && *config.EOSTokenID >= 0 {
		st.EOS = *config.EOSTokenID
	}
	if config.BOSTokenID != nil && *config.BOSTokenID >= 0 {
		st.BOS = *config.BOSTokenID
	}
	if config.PadTokenID != nil && *config.PadTokenID >= 0 {
		st.Pad = *config.PadTokenID
	}
}

// extractTokenString extracts token string from JSON value (can be string or dict)
func extractTokenString(val interface{}) string {
	switch v := val.(type) {
	case string:
		return v
	case map[string]interface{}:
		if content, ok := v["content"].(string); ok {
			return content
		}
	}
	return ""
}

// HasTokenizerJSON reports whether dir holds a HuggingFace tokenizer.json.
func HasTokenizerJSON(dir string) bool {
	info, err := os.Stat(filepath.Join(dir, "tokenizer.json"))
	return err == nil && !info.IsDir()
}
