package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"tweetgen-go/config"
	"tweetgen-go/logging"
)

// version is overridden at build time with -ldflags "-X main.version=..."
var version = "dev"

type rootOptions struct {
	cfgFile string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "tweetgen",
		Short: "Generate tweets with a fine-tuned GPT-2",
		Long: `tweetgen loads a GPT-2 checkpoint fine-tuned on tweets and continues
prompts with it, either from a small web form or from the terminal.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.cfgFile, "config", "", "config file (default is ./tweetgen.yaml)")
	flags.String("model-dir", "", "directory holding the checkpoint")
	flags.String("backend", "", "model backend: onnx, native or http")
	flags.String("device", "", "onnx device: auto, cpu or cuda")
	flags.String("tokenizer", "", "tokenizer backend: auto, hf or bpe")
	flags.String("log-level", "", "log level")
	flags.String("log-format", "", "log format: console or json")

	cmd.AddCommand(
		newServeCmd(opts),
		newGenerateCmd(opts),
		newVersionCmd(),
	)
	return cmd
}

// load reads the configuration for cmd and builds the logger
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := config.Load(o.cfgFile, cmd.Flags())
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	logger, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("building logger: %w", err)
	}
	return cfg, logger, nil
}
