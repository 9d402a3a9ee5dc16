package gpt2

import (
	"fmt"
	"io"
	"math"
	"math/rand"
	"path/filepath"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// Model is a GPT-2 transformer. Weights are read-only after loading, so one
// Model serves any number of concurrent States.
type Model struct {
	Config Config

	TokenEmbedding *Tensor // [vocab, hidden]
	PosEmbedding   *Tensor // [max_seq_len, hidden]
	Blocks         []*Block
	LNFinalWeight  *Tensor
	LNFinalBias    *Tensor

	// LMHead is [vocab, hidden]; it aliases TokenEmbedding when tied
	LMHead *Tensor
}

// Block holds the weights of one transformer layer in Conv1D layout.
type Block struct {
	LN1Weight, LN1Bias *Tensor
	AttnWeight         *Tensor // [hidden, 3*hidden]
	AttnBias           *Tensor
	AttnProjWeight     *Tensor // [hidden, hidden]
	AttnProjBias       *Tensor
	LN2Weight, LN2Bias *Tensor
	FCWeight           *Tensor // [hidden, ffn]
	FCBias             *Tensor
	MLPProjWeight      *Tensor // [ffn, hidden]
	MLPProjBias        *Tensor
}

// Load reads config.json and model.safetensors from dir. When progress is
// non-nil it shows a bar while weights are converted.
func Load(dir string, progress io.Writer, logger *zerolog.Logger) (*Model, error) {
	cfg, err := LoadConfig(filepath.Join(dir, "config.json"))
	if err != nil {
		return nil, err
	}

	weightsPath := filepath.Join(dir, "model.safetensors")
	tensors, err := ReadSafetensors(weightsPath, progress)
	if err != nil {
		return nil, fmt.Errorf("failed to load %s: %w", weightsPath, err)
	}

	model, err := FromTensors(cfg, tensors)
	if err != nil {
		return nil, err
	}

	if logger != nil {
		logger.Info().
			Str("weights", weightsPath).
			Str("params", humanize.SIWithDigits(float64(cfg.NumParams()), 1, "")).
			Str("memory", humanize.Bytes(uint64(cfg.NumParams())*4)).
			Int("layers", cfg.NumLayers).
			Int("hidden", cfg.Hidden).
			Int("context", cfg.MaxSeqLen).
			Msg("loaded GPT-2 weights")
	}

	return model, nil
}

// FromTensors assembles a model from named tensors. Both "h.0.*" and
// "transformer.h.0.*" names are accepted.
func FromTensors(cfg Config, tensors map[string]*Tensor) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h, f := cfg.Hidden, cfg.FFNDim
	get := func(name string, shape ...int) (*Tensor, error) {
		t, ok := tensors[name]
		if !ok {
			t, ok = tensors["transformer."+name]
		}
		if !ok {
			return nil, fmt.Errorf("tensor not found: %s", name)
		}
		if err := t.checkShape(name, shape...); err != nil {
			return nil, err
		}
		return t, nil
	}

	m := &Model{Config: cfg, Blocks: make([]*Block, cfg.NumLayers)}

	var err error
	if m.TokenEmbedding, err = get("wte.weight", cfg.VocabSize, h); err != nil {
		return nil, err
	}
	if m.PosEmbedding, err = get("wpe.weight", cfg.MaxSeqLen, h); err != nil {
		return nil, err
	}
	if m.LNFinalWeight, err = get("ln_f.weight", h); err != nil {
		return nil, err
	}
	if m.LNFinalBias, err = get("ln_f.bias", h); err != nil {
		return nil, err
	}

	m.LMHead = m.TokenEmbedding
	if head, ok := tensors["lm_head.weight"]; ok {
		if err := head.checkShape("lm_head.weight", cfg.VocabSize, h); err != nil {
			return nil, err
		}
		m.LMHead = head
	}

	for i := range m.Blocks {
		prefix := fmt.Sprintf("h.%d.", i)
		b := &Block{}
		for _, w := range []struct {
			dst   **Tensor
			name  string
			shape []int
		}{
			{&b.LN1Weight, "ln_1.weight", []int{h}},
			{&b.LN1Bias, "ln_1.bias", []int{h}},
			{&b.AttnWeight, "attn.c_attn.weight", []int{h, 3 * h}},
			{&b.AttnBias, "attn.c_attn.bias", []int{3 * h}},
			{&b.AttnProjWeight, "attn.c_proj.weight", []int{h, h}},
			{&b.AttnProjBias, "attn.c_proj.bias", []int{h}},
			{&b.LN2Weight, "ln_2.weight", []int{h}},
			{&b.LN2Bias, "ln_2.bias", []int{h}},
			{&b.FCWeight, "mlp.c_fc.weight", []int{h, f}},
			{&b.FCBias, "mlp.c_fc.bias", []int{f}},
			{&b.MLPProjWeight, "mlp.c_proj.weight", []int{f, h}},
			{&b.MLPProjBias, "mlp.c_proj.bias", []int{h}},
		} {
			t, err := get(prefix+w.name, w.shape...)
			if err != nil {
				return nil, err
			}
			*w.dst = t
		}
		m.Blocks[i] = b
	}

	return m, nil
}

// Tensors returns the model weights by their HuggingFace names.
func (m *Model) Tensors() map[string]*Tensor {
	out := map[string]*Tensor{
		"wte.weight":  m.TokenEmbedding,
		"wpe.weight":  m.PosEmbedding,
		"ln_f.weight": m.LNFinalWeight,
		"ln_f.bias":   m.LNFinalBias,
	}
	if m.LMHead != m.TokenEmbedding {
		out["lm_head.weight"] = m.LMHead
	}
	for i, b := range m.Blocks {
		prefix := fmt.Sprintf("h.%d.", i)
		out[prefix+"ln_1.weight"] = b.LN1Weight
		out[prefix+"ln_1.bias"] = b.LN1Bias
		out[prefix+"attn.c_attn.weight"] = b.AttnWeight
		out[prefix+"attn.c_attn.bias"] = b.AttnBias
		out[prefix+"attn.c_proj.weight"] = b.AttnProjWeight
		out[prefix+"attn.c_proj.bias"] = b.AttnProjBias
		out[prefix+"ln_2.weight"] = b.LN2Weight
		out[prefix+"ln_2.bias"] = b.LN2Bias
		out[prefix+"mlp.c_fc.weight"] = b.FCWeight
		out[prefix+"mlp.c_fc.bias"] = b.FCBias
		out[prefix+"mlp.c_proj.weight"] = b.MLPProjWeight
		out[prefix+"mlp.c_proj.bias"] = b.MLPProjBias
	}
	return out
}

// NewRandomModel builds a model with small random weights. It is meant for
// tests and smoke runs without a checkpoint.
func NewRandomModel(cfg Config, rng *rand.Rand) (*Model, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	h, f := cfg.Hidden, cfg.FFNDim
	normal := func(shape ...int) *Tensor {
		t := NewTensor(shape...)
		for i := range t.Data {
			t.Data[i] = float32(rng.NormFloat64() * 0.02)
		}
		return t
	}
	ones := func(n int) *Tensor {
		t := NewTensor(n)
		for i := range t.Data {
			t.Data[i] = 1
		}
		return t
	}

	m := &Model{
		Config:         cfg,
		TokenEmbedding: normal(cfg.VocabSize, h),
		PosEmbedding:   normal(cfg.MaxSeqLen, h),
		LNFinalWeight:  ones(h),
		LNFinalBias:    NewTensor(h),
		Blocks:         make([]*Block, cfg.NumLayers),
	}
	m.LMHead = m.TokenEmbedding

	for i := range m.Blocks {
		m.Blocks[i] = &Block{
			LN1Weight:      ones(h),
			LN1Bias:        NewTensor(h),
			AttnWeight:     normal(h, 3*h),
			AttnBias:       NewTensor(3 * h),
			AttnProjWeight: normal(h, h),
			AttnProjBias:   NewTensor(h),
			LN2Weight:      ones(h),
			LN2Bias:        NewTensor(h),
			FCWeight:       normal(h, f),
			FCBias:         NewTensor(f),
			MLPProjWeight:  normal(f, h),
			MLPProjBias:    NewTensor(h),
		}
	}

	return m, nil
}

// NewState returns an empty KV cache for one sequence.
func (m *Model) NewState() *State {
	return newState(m.Config.NumLayers)
}

// Forward feeds tokens that follow the ones already in state and returns the
// logits for the last of them. state grows by len(tokens) positions.
func (m *Model) Forward(state *State, tokens []int) ([]float32, error) {
	if len(tokens) == 0 {
		return nil, fmt.Errorf("no tokens to process")
	}

	cfg := m.Config
	past := state.Len()
	if past+len(tokens) > cfg.MaxSeqLen {
		return nil, fmt.Errorf("sequence length %d exceeds the model context of %d", past+len(tokens), cfg.MaxSeqLen)
	}

	h := cfg.Hidden
	n := len(tokens)

	x := make([]float32, n*h)
	for i, tok := range tokens {
		if tok < 0 || tok >= cfg.VocabSize {
			return nil, fmt.Errorf("token id %d out of range [0, %d)", tok, cfg.VocabSize)
		}
		te := m.TokenEmbedding.Data[tok*h : (tok+1)*h]
		pe := m.PosEmbedding.Data[(past+i)*h : (past+i+1)*h]
		row := x[i*h : (i+1)*h]
		for j := range row {
			row[j] = te[j] + pe[j]
		}
	}

	for l, block := range m.Blocks {
		m.forwardBlock(block, state.layers[l], x, n, past)
	}
	state.length = past + n

	last := x[(n-1)*h : n*h]
	layerNorm(last, 1, m.LNFinalWeight, m.LNFinalBias, cfg.LayerNormE)

	logits := make([]float32, cfg.VocabSize)
	for v := range logits {
		w := m.LMHead.Data[v*h : (v+1)*h]
		sum := float32(0)
		for j, xv := range last {
			sum += xv * w[j]
		}
		logits[v] = sum
	}

	return logits, nil
}

// forwardBlock runs one transformer layer over x ([n, hidden]) in place
func (m *Model) forwardBlock(b *Block, cache *layerCache, x []float32, n, past int) {
	cfg := m.Config
	h := cfg.Hidden
	heads := cfg.NumHeads
	hd := cfg.HeadDim()
	eps := cfg.LayerNormE

	// attention
	normed := make([]float32, len(x))
	copy(normed, x)
	layerNorm(normed, n, b.LN1Weight, b.LN1Bias, eps)

	qkv := linear(normed, n, b.AttnWeight, b.AttnBias) // [n, 3h]
	q := make([]float32, n*h)
	for i := 0; i < n; i++ {
		row := qkv[i*3*h : (i+1)*3*h]
		copy(q[i*h:(i+1)*h], row[:h])
		cache.append(row[h:2*h], row[2*h:])
	}

	scale := float32(1 / math.Sqrt(float64(hd)))
	attn := make([]float32, n*h)
	scores := make([]float32, past+n)
	for i := 0; i < n; i++ {
		// causal: position past+i sees cache positions [0, past+i]
		visible := past + i + 1
		for hh := 0; hh < heads; hh++ {
			qv := q[i*h+hh*hd : i*h+(hh+1)*hd]
			s := scores[:visible]
			for j := 0; j < visible; j++ {
				kv := cache.keys[j*h+hh*hd : j*h+(hh+1)*hd]
				dot := float32(0)
				for d, qd := range qv {
					dot += qd * kv[d]
				}
				s[j] = dot * scale
			}
			softmax(s)

			out := attn[i*h+hh*hd : i*h+(hh+1)*hd]
			for j, w := range s {
				vv := cache.values[j*h+hh*hd : j*h+(hh+1)*hd]
				for d := range out {
					out[d] += w * vv[d]
				}
			}
		}
	}

	proj := linear(attn, n, b.AttnProjWeight, b.AttnProjBias)
	for i := range x {
		x[i] += proj[i]
	}

	// feed-forward
	copy(normed, x)
	layerNorm(normed, n, b.LN2Weight, b.LN2Bias, eps)
	hidden := linear(normed, n, b.FCWeight, b.FCBias)
	gelu(hidden)
	out := linear(hidden, n, b.MLPProjWeight, b.MLPProjBias)
	for i := range x {
		x[i] += out[i]
	}
}

// String summarizes the model configuration
func (m *Model) String() string {
	return fmt.Sprintf("GPT-2 (%s params): vocab %d, hidden %d, layers %d, heads %d, ffn %d, context %d",
		humanize.SIWithDigits(float64(m.Config.NumParams()), 1, ""),
		m.Config.VocabSize, m.Config.Hidden, m.Config.NumLayers,
		m.Config.NumHeads, m.Config.FFNDim, m.Config.MaxSeqLen)
}
