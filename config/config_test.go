package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"tweetgen-go/textgen"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "tweetgen.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}
	return path
}

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Expected defaults to validate, got %v", err)
	}
	if cfg.Generation.MaxLength != 140 {
		t.Errorf("Expected max_length 140, got %d", cfg.Generation.MaxLength)
	}
	if cfg.Tokenizer.PadToken != "<|endoftext|>" {
		t.Errorf("Expected the GPT-2 pad token, got %q", cfg.Tokenizer.PadToken)
	}
	if cfg.UI.OutputLabel != "Generated Trump Tweet" {
		t.Errorf("Expected the default output label, got %q", cfg.UI.OutputLabel)
	}
	if len(cfg.UI.Examples) != 3 {
		t.Errorf("Expected 3 example prompts, got %d", len(cfg.UI.Examples))
	}
}

func TestLoadWithoutFile(t *testing.T) {
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != ":7860" {
		t.Errorf("Expected default addr, got %q", cfg.Server.Addr)
	}
	if cfg.TokenizerDir() != cfg.Model.Dir {
		t.Errorf("Expected tokenizer dir to default to the model dir, got %q", cfg.TokenizerDir())
	}
}

func TestLoadFile(t *testing.T) {
	path := writeFile(t, `
model:
  dir: /models/trump
  backend: native
generation:
  max_length: 60
  strategy: greedy
server:
  shutdown_timeout: 5s
ui:
  examples:
    - Make America
`)

	cfg, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Model.Dir != "/models/trump" || cfg.Model.Backend != "native" {
		t.Errorf("Unexpected model section: %+v", cfg.Model)
	}
	if cfg.Generation.MaxLength != 60 || cfg.Generation.Strategy != "greedy" {
		t.Errorf("Unexpected generation section: %+v", cfg.Generation)
	}
	if cfg.Server.ShutdownTimeout != 5*time.Second {
		t.Errorf("Expected 5s shutdown timeout, got %v", cfg.Server.ShutdownTimeout)
	}
	if len(cfg.UI.Examples) != 1 || cfg.UI.Examples[0] != "Make America" {
		t.Errorf("Expected the file to replace the examples, got %v", cfg.UI.Examples)
	}
	// untouched keys keep their defaults
	if cfg.Generation.TopK != 50 {
		t.Errorf("Expected default top_k, got %d", cfg.Generation.TopK)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("TWEETGEN_GENERATION_SEED", "42")
	t.Setenv("TWEETGEN_LOG_FORMAT", "json")

	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Generation.Seed != 42 {
		t.Errorf("Expected seed 42 from the environment, got %d", cfg.Generation.Seed)
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Expected json log format, got %q", cfg.Log.Format)
	}
}

func TestLoadFlagsWin(t *testing.T) {
	t.Setenv("TWEETGEN_MODEL_BACKEND", "onnx")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("backend", "", "")
	flags.Int("max-length", 0, "")
	if err := flags.Parse([]string{"--backend", "native", "--max-length", "32"}); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}

	cfg, err := Load("", flags)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Model.Backend != "native" {
		t.Errorf("Expected the flag to override the environment, got %q", cfg.Model.Backend)
	}
	if cfg.Generation.MaxLength != 32 {
		t.Errorf("Expected max_length 32, got %d", cfg.Generation.MaxLength)
	}
}

func TestLoadMissingExplicitFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml"), nil); err == nil {
		t.Error("Expected an error for a missing config file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		want   string
	}{
		{"backend", func(c *Config) { c.Model.Backend = "tensorflow" }, "model.backend"},
		{"device", func(c *Config) { c.Model.Device = "tpu" }, "model.device"},
		{"threads", func(c *Config) { c.Model.Threads = -1 }, "model.threads"},
		{"tokenizer", func(c *Config) { c.Tokenizer.Backend = "sentencepiece" }, "tokenizer.backend"},
		{"http without url", func(c *Config) { c.Model.Backend = "http"; c.Model.URL = "" }, "model.url"},
		{"http without tokenizer", func(c *Config) { c.Model.Backend = "http" }, "tokenizer.dir"},
		{"generation", func(c *Config) { c.Generation.TopP = 0 }, "top_p"},
		{"addr", func(c *Config) { c.Server.Addr = "" }, "server.addr"},
		{"shutdown", func(c *Config) { c.Server.ShutdownTimeout = 0 }, "shutdown_timeout"},
		{"level", func(c *Config) { c.Log.Level = "loud" }, "log.level"},
		{"format", func(c *Config) { c.Log.Format = "xml" }, "log.format"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("Expected a validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error to mention %q, got %v", tt.want, err)
			}
		})
	}
}

func TestGenerationOptions(t *testing.T) {
	gen := DefaultConfig().Generation
	gen.MaxLength = 80
	gen.Seed = 7

	cfg, err := textgen.NewConfig(gen.Options()...)
	if err != nil {
		t.Fatalf("NewConfig failed: %v", err)
	}
	if cfg.MaxLength != 80 || cfg.Seed != 7 || cfg.Strategy != textgen.StrategySample {
		t.Errorf("Unexpected textgen config: %+v", cfg)
	}
}
