// Package config loads the tweetgen configuration from defaults, an optional
// YAML file, a .env file, the environment and command line flags.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"tweetgen-go/textgen"
)

// EnvPrefix prefixes every environment override, e.g. TWEETGEN_MODEL_DIR.
const EnvPrefix = "TWEETGEN"

// Config represents the application configuration
type Config struct {
	Model      ModelConfig      `mapstructure:"model"`
	Tokenizer  TokenizerConfig  `mapstructure:"tokenizer"`
	Generation GenerationConfig `mapstructure:"generation"`
	Server     ServerConfig     `mapstructure:"server"`
	UI         UIConfig         `mapstructure:"ui"`
	Log        LogConfig        `mapstructure:"log"`
}

type ModelConfig struct {
	Dir            string        `mapstructure:"dir"`
	Backend        string        `mapstructure:"backend"`
	ONNXFile       string        `mapstructure:"onnx_file"`
	RuntimeLibrary string        `mapstructure:"runtime_library"`
	Device         string        `mapstructure:"device"`
	Threads        int           `mapstructure:"threads"`
	URL            string        `mapstructure:"url"`
	Timeout        time.Duration `mapstructure:"timeout"`
}

type TokenizerConfig struct {
	Dir      string `mapstructure:"dir"`
	Backend  string `mapstructure:"backend"`
	PadToken string `mapstructure:"pad_token"`
}

type GenerationConfig struct {
	MaxLength          int     `mapstructure:"max_length"`
	Strategy           string  `mapstructure:"strategy"`
	NumReturnSequences int     `mapstructure:"num_return_sequences"`
	Temperature        float64 `mapstructure:"temperature"`
	TopK               int     `mapstructure:"top_k"`
	TopP               float64 `mapstructure:"top_p"`
	RepetitionPenalty  float64 `mapstructure:"repetition_penalty"`
	Seed               int64   `mapstructure:"seed"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	GenerateTimeout time.Duration `mapstructure:"generate_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type UIConfig struct {
	Title       string   `mapstructure:"title"`
	OutputLabel string   `mapstructure:"output_label"`
	Examples    []string `mapstructure:"examples"`
	DisplayName string   `mapstructure:"display_name"`
	Handle      string   `mapstructure:"handle"`
	Verified    bool     `mapstructure:"verified"`
	Client      string   `mapstructure:"client"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DefaultConfig returns configuration with default values
func DefaultConfig() *Config {
	gen := textgen.DefaultConfig()

	return &Config{
		Model: ModelConfig{
			Dir:      "./model",
			Backend:  "onnx",
			ONNXFile: "model.onnx",
			Device:   "auto",
			Threads:  0,
			URL:      "http://localhost:8000",
			Timeout:  30 * time.Second,
		},
		Tokenizer: TokenizerConfig{
			Dir:      "",
			Backend:  "auto",
			PadToken: "<|endoftext|>",
		},
		Generation: GenerationConfig{
			MaxLength:          gen.MaxLength,
			Strategy:           string(gen.Strategy),
			NumReturnSequences: gen.NumReturnSequences,
			Temperature:        gen.Temperature,
			TopK:               gen.TopK,
			TopP:               gen.TopP,
			RepetitionPenalty:  gen.RepetitionPenalty,
			Seed:               gen.Seed,
		},
		Server: ServerConfig{
			Addr:            ":7860",
			ReadTimeout:     10 * time.Second,
			WriteTimeout:    2 * time.Minute,
			ShutdownTimeout: 30 * time.Second,
			GenerateTimeout: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		UI: UIConfig{
			Title:       "GPT-2 Trump Tweet Generator",
			OutputLabel: "Generated Trump Tweet",
			Examples: []string{
				"Why does the lying news media",
				"The democrats have",
				"Today I'll be",
			},
			DisplayName: "Donald J. Trump",
			Handle:      "realDonaldTrump",
			Verified:    true,
			Client:      "Twitter for iPhone",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// flagKeys maps command line flag names to configuration keys
var flagKeys = map[string]string{
	"model-dir":     "model.dir",
	"backend":       "model.backend",
	"device":        "model.device",
	"tokenizer":     "tokenizer.backend",
	"addr":          "server.addr",
	"max-length":    "generation.max_length",
	"num-sequences": "generation.num_return_sequences",
	"seed":          "generation.seed",
	"log-level":     "log.level",
	"log-format":    "log.format",
}

// Load loads configuration from defaults, file, .env, environment and flags.
// cfgFile may be empty, in which case ./tweetgen.yaml is used when present.
// flags may be nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	// a missing .env is fine
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()

	cfg := DefaultConfig()
	setDefaults(v, cfg)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("tweetgen")
	}

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// defaults already live in v; decoding into a zero value keeps file
	// slices from merging with the default ones
	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	cfg.ExpandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if !contains([]string{"onnx", "native", "http"}, c.Model.Backend) {
		return fmt.Errorf("model.backend must be one of onnx, native, http; got %q", c.Model.Backend)
	}
	if c.Model.Backend == "http" {
		if c.Model.URL == "" {
			return errors.New("model.url is required for the http backend")
		}
	} else if c.Model.Dir == "" {
		return errors.New("model.dir is required")
	}
	if !contains([]string{"auto", "cpu", "cuda"}, c.Model.Device) {
		return fmt.Errorf("model.device must be one of auto, cpu, cuda; got %q", c.Model.Device)
	}
	if c.Model.Threads < 0 {
		return errors.New("model.threads must be >= 0")
	}

	if !contains([]string{"auto", "hf", "bpe"}, c.Tokenizer.Backend) {
		return fmt.Errorf("tokenizer.backend must be one of auto, hf, bpe; got %q", c.Tokenizer.Backend)
	}
	if c.Tokenizer.Dir == "" && c.Model.Backend == "http" {
		return errors.New("tokenizer.dir is required for the http backend")
	}

	if _, err := textgen.NewConfig(c.Generation.Options()...); err != nil {
		return fmt.Errorf("generation: %w", err)
	}

	if c.Server.Addr == "" {
		return errors.New("server.addr is required")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return errors.New("server.shutdown_timeout must be positive")
	}

	validLevels := []string{"trace", "debug", "info", "warn", "error"}
	if !contains(validLevels, c.Log.Level) {
		return fmt.Errorf("log.level must be one of: %v", validLevels)
	}
	if !contains([]string{"console", "json"}, c.Log.Format) {
		return fmt.Errorf("log.format must be console or json; got %q", c.Log.Format)
	}

	return nil
}

// TokenizerDir returns the tokenizer directory, which defaults to the model directory.
func (c *Config) TokenizerDir() string {
	if c.Tokenizer.Dir != "" {
		return c.Tokenizer.Dir
	}
	return c.Model.Dir
}

// Options converts the generation section into textgen options.
func (g GenerationConfig) Options() []textgen.ConfigOption {
	return []textgen.ConfigOption{
		textgen.WithMaxLength(g.MaxLength),
		textgen.WithStrategy(textgen.Strategy(g.Strategy)),
		textgen.WithNumReturnSequences(g.NumReturnSequences),
		textgen.WithTemperature(g.Temperature),
		textgen.WithTopK(g.TopK),
		textgen.WithTopP(g.TopP),
		textgen.WithRepetitionPenalty(g.RepetitionPenalty),
		textgen.WithSeed(g.Seed),
	}
}

// ExpandPaths expands ~ and environment variables in paths
func (c *Config) ExpandPaths() {
	c.Model.Dir = expandPath(c.Model.Dir)
	c.Model.RuntimeLibrary = expandPath(c.Model.RuntimeLibrary)
	c.Tokenizer.Dir = expandPath(c.Tokenizer.Dir)
}

func expandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, _ := os.UserHomeDir()
		return filepath.Join(home, path[2:])
	}
	return os.ExpandEnv(path)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("model.dir", cfg.Model.Dir)
	v.SetDefault("model.backend", cfg.Model.Backend)
	v.SetDefault("model.onnx_file", cfg.Model.ONNXFile)
	v.SetDefault("model.runtime_library", cfg.Model.RuntimeLibrary)
	v.SetDefault("model.device", cfg.Model.Device)
	v.SetDefault("model.threads", cfg.Model.Threads)
	v.SetDefault("model.url", cfg.Model.URL)
	v.SetDefault("model.timeout", cfg.Model.Timeout)

	v.SetDefault("tokenizer.dir", cfg.Tokenizer.Dir)
	v.SetDefault("tokenizer.backend", cfg.Tokenizer.Backend)
	v.SetDefault("tokenizer.pad_token", cfg.Tokenizer.PadToken)

	v.SetDefault("generation.max_length", cfg.Generation.MaxLength)
	v.SetDefault("generation.strategy", cfg.Generation.Strategy)
	v.SetDefault("generation.num_return_sequences", cfg.Generation.NumReturnSequences)
	v.SetDefault("generation.temperature", cfg.Generation.Temperature)
	v.SetDefault("generation.top_k", cfg.Generation.TopK)
	v.SetDefault("generation.top_p", cfg.Generation.TopP)
	v.SetDefault("generation.repetition_penalty", cfg.Generation.RepetitionPenalty)
	v.SetDefault("generation.seed", cfg.Generation.Seed)

	v.SetDefault("server.addr", cfg.Server.Addr)
	v.SetDefault("server.read_timeout", cfg.Server.ReadTimeout)
	v.SetDefault("server.write_timeout", cfg.Server.WriteTimeout)
	v.SetDefault("server.shutdown_timeout", cfg.Server.ShutdownTimeout)
	v.SetDefault("server.generate_timeout", cfg.Server.GenerateTimeout)
	v.SetDefault("server.cors_origins", cfg.Server.CORSOrigins)

	v.SetDefault("ui.title", cfg.UI.Title)
	v.SetDefault("ui.output_label", cfg.UI.OutputLabel)
	v.SetDefault("ui.examples", cfg.UI.Examples)
	v.SetDefault("ui.display_name", cfg.UI.DisplayName)
	v.SetDefault("ui.handle", cfg.UI.Handle)
	v.SetDefault("ui.verified", cfg.UI.Verified)
	v.SetDefault("ui.client", cfg.UI.Client)

	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
}
