package textgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"strings"
	"sync/atomic"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog"
)

// Output represents the output of a generation request
type Output struct {
	Text            string
	TokenIDs        []int
	NumPromptTokens int
	FinishReason    FinishReason
	Duration        time.Duration
}

// Service owns a loaded model and tokenizer and turns prompts into text.
// It is created once at startup and shared read-only by all requests.
type Service struct {
	cfg       *Config
	runner    ModelRunner
	tokenizer Tokenizer
	logger    *zerolog.Logger
	closed    atomic.Bool
}

// NewService wires a model runner and tokenizer into a generation service.
func NewService(cfg *Config, runner ModelRunner, tokenizer Tokenizer, logger *zerolog.Logger) (*Service, error) {
	if cfg == nil {
		def := DefaultConfig()
		cfg = &def
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if ctxLen := runner.ContextLength(); ctxLen > 0 && cfg.MaxLength > ctxLen {
		return nil, fmt.Errorf("%w: max_length %d exceeds the model context of %d tokens",
			ErrInvalidConfig, cfg.MaxLength, ctxLen)
	}

	if mv, tv := runner.VocabSize(), tokenizer.VocabSize(); mv > 0 && tv > mv {
		return nil, fmt.Errorf("tokenizer vocabulary (%d) is larger than the model vocabulary (%d)", tv, mv)
	}

	if tokenizer.BOSTokenID() < 0 && tokenizer.EOSTokenID() < 0 {
		return nil, errors.New("tokenizer defines neither a BOS nor an EOS token")
	}

	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	return &Service{
		cfg:       cfg,
		runner:    runner,
		tokenizer: tokenizer,
		logger:    logger,
	}, nil
}

// Config returns the generation settings.
func (s *Service) Config() Config {
	return *s.cfg
}

// Close releases the model runner and, when it holds native resources, the tokenizer.
func (s *Service) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	err := s.runner.Close()
	if c, ok := s.tokenizer.(io.Closer); ok {
		err = errors.Join(err, c.Close())
	}
	return err
}

// Generate returns one generated continuation of prompt, including the prompt
// itself, with double quotes removed.
func (s *Service) Generate(ctx context.Context, prompt string) (string, error) {
	outputs, err := s.generate(ctx, prompt, 1)
	if err != nil {
		return "", err
	}
	return outputs[0].Text, nil
}

// GenerateAll returns NumReturnSequences independent generations for prompt.
func (s *Service) GenerateAll(ctx context.Context, prompt string) ([]Output, error) {
	return s.generate(ctx, prompt, s.cfg.NumReturnSequences)
}

// GenerateEach is GenerateAll with a callback after every finished sequence.
func (s *Service) GenerateEach(ctx context.Context, prompt string, done func(Output)) ([]Output, error) {
	return s.generateWith(ctx, prompt, s.cfg.NumReturnSequences, done)
}

func (s *Service) generate(ctx context.Context, prompt string, n int) ([]Output, error) {
	return s.generateWith(ctx, prompt, n, nil)
}

func (s *Service) generateWith(ctx context.Context, prompt string, n int, done func(Output)) ([]Output, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}

	log := s.logger.With().Str("prompt_hash", Fingerprint(prompt)).Logger()

	promptIDs, numSeed, err := s.encodePrompt(prompt, &log)
	if err != nil {
		return nil, err
	}

	rng := s.newRand()
	outputs := make([]Output, 0, n)
	for i := 0; i < n; i++ {
		out, err := s.decode(ctx, promptIDs, numSeed, rng)
		if err != nil {
			log.Error().Err(err).Int("sequence", i).Msg("generation failed")
			return nil, err
		}

		log.Info().
			Int("sequence", i).
			Int("prompt_tokens", out.NumPromptTokens).
			Int("tokens", len(out.TokenIDs)).
			Str("finish_reason", string(out.FinishReason)).
			Dur("duration", out.Duration).
			Msg("generation complete")

		outputs = append(outputs, out)
		if done != nil {
			done(out)
		}
	}

	return outputs, nil
}

// encodePrompt tokenizes the prompt, keeps it within the length budget and
// seeds an empty prompt with the BOS token.
func (s *Service) encodePrompt(prompt string, log *zerolog.Logger) ([]int, int, error) {
	ids, err := s.tokenizer.Encode(prompt)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to encode prompt: %w", err)
	}

	if limit := s.cfg.MaxLength - 1; len(ids) > limit {
		log.Warn().
			Int("prompt_tokens", len(ids)).
			Int("kept", limit).
			Msg("prompt exceeds max length, keeping the trailing tokens")
		ids = ids[len(ids)-limit:]
	}

	if len(ids) > 0 {
		return ids, 0, nil
	}

	bos := s.tokenizer.BOSTokenID()
	if bos < 0 {
		bos = s.tokenizer.EOSTokenID()
	}
	return []int{bos}, 1, nil
}

func (s *Service) decode(ctx context.Context, promptIDs []int, numSeed int, rng *rand.Rand) (Output, error) {
	start := time.Now()

	seq := NewSequence(promptIDs)
	seq.NumSeedTokens = numSeed
	defer s.runner.Release(seq)

	sampler := NewSampler(s.cfg, rng)
	eos := s.tokenizer.EOSTokenID()

	for seq.Len() < s.cfg.MaxLength {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}

		logits, err := s.runner.Run(ctx, seq)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return Output{}, ctxErr
			}
			return Output{}, &DecodeError{Step: seq.NumCompletionTokens(), Err: err}
		}
		if len(logits) == 0 {
			return Output{}, &DecodeError{Step: seq.NumCompletionTokens(), Err: errors.New("model returned no logits")}
		}

		tokenID := sampler.Sample(logits, seq.TextTokenIDs())
		seq.AppendToken(tokenID)

		if tokenID == eos {
			seq.Finish(FinishEOS)
			break
		}
	}

	if !seq.IsFinished() {
		seq.Finish(FinishLength)
	}

	text, err := s.tokenizer.Decode(seq.TextTokenIDs())
	if err != nil {
		return Output{}, fmt.Errorf("failed to decode tokens: %w", err)
	}

	tokenIDs := make([]int, len(seq.TokenIDs))
	copy(tokenIDs, seq.TokenIDs)

	return Output{
		Text:            Sanitize(text),
		TokenIDs:        tokenIDs,
		NumPromptTokens: seq.NumPromptTokens,
		FinishReason:    seq.FinishReason,
		Duration:        time.Since(start),
	}, nil
}

func (s *Service) newRand() *rand.Rand {
	if s.cfg.Seed != 0 {
		return rand.New(rand.NewSource(s.cfg.Seed))
	}
	return rand.New(rand.NewSource(rand.Int63()))
}

// Sanitize removes every double-quote character from generated text.
func Sanitize(text string) string {
	return strings.ReplaceAll(text, `"`, "")
}

// Fingerprint returns a short stable hash of text for logs.
func Fingerprint(text string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(text))
}
