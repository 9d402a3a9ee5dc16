package textgen

import "sync/atomic"

// SequenceStatus represents the status of a sequence
type SequenceStatus int

const (
	StatusRunning SequenceStatus = iota
	StatusFinished
)

// FinishReason tells why decoding stopped.
type FinishReason string

const (
	FinishEOS    FinishReason = "eos"
	FinishLength FinishReason = "length"
)

// Sequence is the token buffer of a single generation request.
// It is created per call and discarded with the response.
type Sequence struct {
	SeqID           int64
	Status          SequenceStatus
	TokenIDs        []int
	NumTokens       int
	NumPromptTokens int
	FinishReason    FinishReason

	// NumSeedTokens counts leading tokens that were injected (BOS for an
	// empty prompt) and are not part of the user's text.
	NumSeedTokens int
}

var seqCounter int64 = 0

// NewSequence creates a new sequence from prompt token IDs.
// tokenIDs must not be empty; the service seeds empty prompts before this.
func NewSequence(tokenIDs []int) *Sequence {
	seqID := atomic.AddInt64(&seqCounter, 1) - 1

	tokens := make([]int, len(tokenIDs))
	copy(tokens, tokenIDs)

	return &Sequence{
		SeqID:           seqID,
		Status:          StatusRunning,
		TokenIDs:        tokens,
		NumTokens:       len(tokenIDs),
		NumPromptTokens: len(tokenIDs),
	}
}

// Len returns the number of tokens in the sequence
func (s *Sequence) Len() int {
	return s.NumTokens
}

// IsFinished returns true if the sequence has finished generating
func (s *Sequence) IsFinished() bool {
	return s.Status == StatusFinished
}

// NumCompletionTokens returns the number of completion tokens
func (s *Sequence) NumCompletionTokens() int {
	return s.NumTokens - s.NumPromptTokens
}

// TextTokenIDs returns the tokens that belong to the text, without the
// injected seed.
func (s *Sequence) TextTokenIDs() []int {
	return s.TokenIDs[s.NumSeedTokens:]
}

// AppendToken appends a token to the sequence
func (s *Sequence) AppendToken(tokenID int) {
	s.TokenIDs = append(s.TokenIDs, tokenID)
	s.NumTokens++
}

// Finish marks the sequence as done.
func (s *Sequence) Finish(reason FinishReason) {
	s.Status = StatusFinished
	s.FinishReason = reason
}
