package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"tweetgen-go/config"
	"tweetgen-go/gpt2"
	"tweetgen-go/runner"
	"tweetgen-go/textgen"
	"tweetgen-go/tokenizer"
	"tweetgen-go/tokenizer/hf"
)

// newService loads tokenizer and model and wires them into a generation
// service. Everything opened so far is closed again on failure.
func newService(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (*textgen.Service, error) {
	genCfg, err := textgen.NewConfig(cfg.Generation.Options()...)
	if err != nil {
		return nil, err
	}

	tok, err := buildTokenizer(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer: %w", err)
	}

	r, err := buildRunner(ctx, cfg, logger)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("failed to load model: %w", err), closeTokenizer(tok))
	}

	svc, err := textgen.NewService(genCfg, r, tok, logger)
	if err != nil {
		return nil, errors.Join(err, r.Close(), closeTokenizer(tok))
	}
	return svc, nil
}

func buildTokenizer(cfg *config.Config, logger *zerolog.Logger) (textgen.Tokenizer, error) {
	dir := cfg.TokenizerDir()
	opts := []tokenizer.Option{
		tokenizer.WithPadToken(cfg.Tokenizer.PadToken),
		tokenizer.WithLogger(logger),
	}

	backend := cfg.Tokenizer.Backend
	if backend == "auto" {
		backend = "bpe"
		if tokenizer.HasTokenizerJSON(dir) {
			backend = "hf"
		}
	}

	logger.Info().Str("dir", dir).Str("backend", backend).Msg("loading tokenizer")

	if backend == "hf" {
		tok, err := hf.Load(dir, opts...)
		if err != nil {
			return nil, err
		}
		return tok, nil
	}

	tok, err := tokenizer.LoadBPE(dir, opts...)
	if err != nil {
		return nil, err
	}
	return tok, nil
}

func closeTokenizer(tok textgen.Tokenizer) error {
	if c, ok := tok.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

func buildRunner(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (textgen.ModelRunner, error) {
	switch cfg.Model.Backend {
	case "onnx":
		opts := runner.ONNXOptions{
			ModelPath:   cfg.Model.ONNXFile,
			LibraryPath: cfg.Model.RuntimeLibrary,
			Device:      runner.Device(cfg.Model.Device),
			Threads:     cfg.Model.Threads,
		}
		if !filepath.IsAbs(opts.ModelPath) {
			opts.ModelPath = filepath.Join(cfg.Model.Dir, opts.ModelPath)
		}

		// the export does not record the context length, the checkpoint config does
		if mc, err := gpt2.LoadConfig(filepath.Join(cfg.Model.Dir, "config.json")); err == nil {
			opts.VocabSize = mc.VocabSize
			opts.ContextLength = mc.MaxSeqLen
		} else {
			logger.Warn().Err(err).Msg("no model config, context length unknown")
		}

		r, err := runner.NewONNXRunner(opts, logger)
		if err != nil {
			return nil, err
		}
		return r, nil

	case "native":
		model, err := gpt2.Load(cfg.Model.Dir, os.Stderr, logger)
		if err != nil {
			return nil, err
		}
		return runner.NewNativeRunner(model, logger), nil

	case "http":
		r, err := runner.NewHTTPRunner(ctx, cfg.Model.URL, cfg.Model.Timeout, logger)
		if err != nil {
			return nil, err
		}
		return r, nil

	default:
		return nil, fmt.Errorf("unknown model backend %q", cfg.Model.Backend)
	}
}
