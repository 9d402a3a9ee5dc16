package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"tweetgen-go/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web front-end",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, opts)
		},
	}
	cmd.Flags().String("addr", "", "listen address (default :7860)")
	return cmd
}

func runServe(cmd *cobra.Command, opts *rootOptions) error {
	cfg, logger, err := opts.load(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc, err := newService(ctx, cfg, &logger)
	if err != nil {
		logger.Error().Err(err).Msg("startup failed")
		return err
	}

	srv, err := web.NewServer(svc, web.Options{
		Title:       cfg.UI.Title,
		OutputLabel: cfg.UI.OutputLabel,
		Examples:    cfg.UI.Examples,
		Profile: web.Profile{
			DisplayName: cfg.UI.DisplayName,
			Handle:      cfg.UI.Handle,
			Verified:    cfg.UI.Verified,
			Client:      cfg.UI.Client,
		},
		Version:         version,
		GenerateTimeout: cfg.Server.GenerateTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
	}, &logger)
	if err != nil {
		return errors.Join(err, svc.Close())
	}

	server := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      srv.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().Str("address", cfg.Server.Addr).Msg("Starting tweetgen")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info().Dur("timeout", cfg.Server.ShutdownTimeout).Msg("Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	err = g.Wait()
	if closeErr := svc.Close(); closeErr != nil {
		logger.Error().Err(closeErr).Msg("failed to release the model")
		err = errors.Join(err, closeErr)
	}
	if err == nil {
		logger.Info().Msg("Stopped")
	}
	return err
}
