package textgen

import "fmt"

// Strategy selects how the next token is picked from the model logits.
type Strategy string

const (
	StrategySample Strategy = "sample"
	StrategyGreedy Strategy = "greedy"
)

// Config holds the generation settings shared by every request.
type Config struct {
	MaxLength          int
	Strategy           Strategy
	NumReturnSequences int
	Temperature        float64
	TopK               int
	TopP               float64
	RepetitionPenalty  float64
	Seed               int64
}

// ConfigOption is a functional option for Config
type ConfigOption func(*Config)

// DefaultConfig returns the settings of a stock text-generation pipeline
// with a 140 token budget.
func DefaultConfig() Config {
	return Config{
		MaxLength:          140,
		Strategy:           StrategySample,
		NumReturnSequences: 1,
		Temperature:        1.0,
		TopK:               50,
		TopP:               1.0,
		RepetitionPenalty:  1.0,
		Seed:               0,
	}
}

// NewConfig creates a Config from the defaults and the given options.
func NewConfig(opts ...ConfigOption) (*Config, error) {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return &c, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// one prompt token plus at least one generated token
	if c.MaxLength < 2 {
		return fmt.Errorf("%w: max_length must be at least 2, got %d", ErrInvalidConfig, c.MaxLength)
	}

	switch c.Strategy {
	case StrategySample:
		if c.Temperature <= 1e-10 {
			return fmt.Errorf("%w: temperature must be positive when sampling, got %g", ErrInvalidConfig, c.Temperature)
		}
	case StrategyGreedy:
		if c.NumReturnSequences > 1 {
			return fmt.Errorf("%w: greedy decoding cannot return %d distinct sequences", ErrInvalidConfig, c.NumReturnSequences)
		}
	default:
		return fmt.Errorf("%w: unknown strategy %q", ErrInvalidConfig, c.Strategy)
	}

	if c.NumReturnSequences < 1 {
		return fmt.Errorf("%w: num_return_sequences must be at least 1, got %d", ErrInvalidConfig, c.NumReturnSequences)
	}

	if c.TopK < 0 {
		return fmt.Errorf("%w: top_k must be >= 0, got %d", ErrInvalidConfig, c.TopK)
	}

	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("%w: top_p must be in (0, 1], got %g", ErrInvalidConfig, c.TopP)
	}

	if c.RepetitionPenalty < 1 {
		return fmt.Errorf("%w: repetition_penalty must be >= 1, got %g", ErrInvalidConfig, c.RepetitionPenalty)
	}

	return nil
}

// WithMaxLength sets the maximum total length (prompt + continuation) in tokens
func WithMaxLength(n int) ConfigOption {
	return func(c *Config) {
		c.MaxLength = n
	}
}

// WithStrategy sets the decoding strategy
func WithStrategy(s Strategy) ConfigOption {
	return func(c *Config) {
		c.Strategy = s
	}
}

// WithNumReturnSequences sets how many sequences GenerateAll returns
func WithNumReturnSequences(n int) ConfigOption {
	return func(c *Config) {
		c.NumReturnSequences = n
	}
}

// WithTemperature sets the sampling temperature
func WithTemperature(t float64) ConfigOption {
	return func(c *Config) {
		c.Temperature = t
	}
}

// WithTopK sets top-k filtering (0 disables it)
func WithTopK(k int) ConfigOption {
	return func(c *Config) {
		c.TopK = k
	}
}

// WithTopP sets nucleus filtering (1.0 disables it)
func WithTopP(p float64) ConfigOption {
	return func(c *Config) {
		c.TopP = p
	}
}

// WithRepetitionPenalty sets the penalty applied to already seen tokens
func WithRepetitionPenalty(p float64) ConfigOption {
	return func(c *Config) {
		c.RepetitionPenalty = p
	}
}

// WithSeed fixes the random source. Zero means a fresh source per call.
func WithSeed(seed int64) ConfigOption {
	return func(c *Config) {
		c.Seed = seed
	}
}
