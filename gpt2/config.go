// Package gpt2 is a pure-Go GPT-2 forward pass over safetensors weights.
package gpt2

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds model configuration as found in a HuggingFace config.json
type Config struct {
	VocabSize  int     `json:"vocab_size"`
	Hidden     int     `json:"n_embd"`
	NumLayers  int     `json:"n_layer"`
	NumHeads   int     `json:"n_head"`
	FFNDim     int     `json:"n_inner"`
	MaxSeqLen  int     `json:"n_positions"`
	LayerNormE float32 `json:"layer_norm_epsilon"`
	EOSTokenID int     `json:"eos_token_id"`
	BOSTokenID int     `json:"bos_token_id"`
}

// SmallConfig returns the 124M parameter GPT-2 configuration.
func SmallConfig() Config {
	return Config{
		VocabSize:  50257,
		Hidden:     768,
		NumLayers:  12,
		NumHeads:   12,
		FFNDim:     3072,
		MaxSeqLen:  1024,
		LayerNormE: 1e-5,
		EOSTokenID: 50256,
		BOSTokenID: 50256,
	}
}

// LoadConfig reads config.json. Missing fields fall back to GPT-2 small.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}

	cfg := SmallConfig()
	// n_inner is null in stock checkpoints, meaning 4*n_embd
	cfg.FFNDim = 0
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	if cfg.FFNDim == 0 {
		cfg.FFNDim = 4 * cfg.Hidden
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks if the configuration is valid
func (c Config) Validate() error {
	if c.VocabSize <= 0 {
		return fmt.Errorf("vocab_size must be positive, got %d", c.VocabSize)
	}
	if c.Hidden <= 0 || c.NumHeads <= 0 || c.Hidden%c.NumHeads != 0 {
		return fmt.Errorf("n_embd (%d) must be a positive multiple of n_head (%d)", c.Hidden, c.NumHeads)
	}
	if c.NumLayers <= 0 {
		return fmt.Errorf("n_layer must be positive, got %d", c.NumLayers)
	}
	if c.FFNDim <= 0 {
		return fmt.Errorf("n_inner must be positive, got %d", c.FFNDim)
	}
	if c.MaxSeqLen <= 0 {
		return fmt.Errorf("n_positions must be positive, got %d", c.MaxSeqLen)
	}
	if c.LayerNormE <= 0 {
		return fmt.Errorf("layer_norm_epsilon must be positive, got %g", c.LayerNormE)
	}
	return nil
}

// HeadDim returns the per-head dimension
func (c Config) HeadDim() int {
	return c.Hidden / c.NumHeads
}

// NumParams counts the model parameters (tied LM head counted once).
func (c Config) NumParams() int64 {
	h, f := int64(c.Hidden), int64(c.FFNDim)
	params := int64(c.VocabSize)*h + int64(c.MaxSeqLen)*h
	perLayer := 2*2*h + // ln_1, ln_2
		h*3*h + 3*h + // c_attn
		h*h + h + // attn c_proj
		h*f + f + // c_fc
		f*h + h // mlp c_proj
	params += int64(c.NumLayers)*perLayer + 2*h
	return params
}
