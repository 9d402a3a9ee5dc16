package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"tweetgen-go/textgen"
)

func newGenerateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate [prompt...]",
		Short: "Generate tweets in the terminal",
		Example: `  tweetgen generate "Today I'll be"
  tweetgen generate --num-sequences 5 --seed 42 The democrats have`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, opts, strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.Int("max-length", 0, "maximum length in tokens, prompt included (default 140)")
	flags.Int("num-sequences", 0, "number of tweets to generate (default 1)")
	flags.Int64("seed", 0, "random seed, 0 for a fresh one")
	flags.Bool("no-progress", false, "hide the progress bar")
	return cmd
}

func runGenerate(cmd *cobra.Command, opts *rootOptions, prompt string) error {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}

	svc, err := newService(cmd.Context(), cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}
	defer svc.Close()

	var bar *progressbar.ProgressBar
	if hide, _ := cmd.Flags().GetBool("no-progress"); !hide {
		bar = progressbar.NewOptions(svc.Config().NumReturnSequences,
			progressbar.OptionSetWriter(os.Stderr),
			progressbar.OptionSetDescription("Generating"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionSetTheme(progressbar.Theme{
				Saucer:        "=",
				SaucerHead:    ">",
				SaucerPadding: " ",
				BarStart:      "[",
				BarEnd:        "]",
			}),
		)
	}

	outputs, err := svc.GenerateEach(cmd.Context(), prompt, func(out textgen.Output) {
		if bar != nil {
			bar.Add(1)
		}
	})
	if bar != nil {
		bar.Finish()
	}
	if err != nil {
		return fmt.Errorf("generation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	for i, o := range outputs {
		if len(outputs) > 1 {
			fmt.Fprintf(out, "[%d] ", i+1)
		}
		fmt.Fprintln(out, o.Text)

		logger.Debug().
			Int("sequence", i).
			Int("tokens", len(o.TokenIDs)).
			Str("finish_reason", string(o.FinishReason)).
			Dur("duration", o.Duration).
			Msg("sequence stats")
	}
	return nil
}
