package textgen

import "context"

//go:generate mockgen -destination=mocks/mock_model_runner.go -package=mocks tweetgen-go/textgen ModelRunner,Tokenizer

// ModelRunner runs the model forward pass. Implementations:
// - ONNX Runtime sessions
// - the pure Go GPT-2 in package gpt2
// - HTTP calls to a remote logits server
//
// A runner is shared by all requests and must be safe for concurrent use.
type ModelRunner interface {
	// Run returns the next-token logits for the sequence.
	// Runners that keep per-sequence state (KV cache) feed only the tokens
	// they have not seen yet.
	Run(ctx context.Context, seq *Sequence) ([]float32, error)

	// Release frees any per-sequence state held for seq.
	Release(seq *Sequence)

	// VocabSize returns the size of the logits vector.
	VocabSize() int

	// ContextLength returns the maximum number of positions, or 0 if unknown.
	ContextLength() int

	// Close cleans up resources
	Close() error
}

// Tokenizer maps text to and from the model vocabulary.
type Tokenizer interface {
	// Encode converts text to token IDs
	Encode(text string) ([]int, error)

	// Decode converts token IDs to text, skipping special tokens
	Decode(tokenIDs []int) (string, error)

	EOSTokenID() int
	BOSTokenID() int
	PadTokenID() int
	VocabSize() int
}
