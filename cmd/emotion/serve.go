package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/straja-ai/emotion/internal/activation"
	"github.com/straja-ai/emotion/internal/analysis"
	"github.com/straja-ai/emotion/internal/cache"
	"github.com/straja-ai/emotion/internal/classifier"
	"github.com/straja-ai/emotion/internal/config"
	"github.com/straja-ai/emotion/internal/server"
	"github.com/straja-ai/emotion/internal/store"
	"github.com/straja-ai/emotion/internal/telemetry"
	"github.com/straja-ai/emotion/internal/version"
)

const closeTimeout = 5 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the form page and the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Server.Addr = addr
			}
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()
			return runServe(ctx, cfg)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	log.Info().
		Str("version", version.String()).
		Str("backend", cfg.Classifier.Backend).
		Str("model", cfg.Classifier.ModelID).
		Str("store", cfg.Store.Type).
		Str("cache", cfg.Cache.Type).
		Msg("starting emotion analyzer")

	tel, err := telemetry.NewProvider(ctx, cfg.Telemetry, version.String())
	if err != nil {
		return err
	}
	defer shutdown("telemetry", func(ctx context.Context) error {
		tel.Shutdown(ctx)
		return nil
	})

	clf, err := buildClassifier(cfg)
	if err != nil {
		return err
	}
	defer shutdown("classifier", func(context.Context) error { return clf.Close() })

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("open %s store: %w", cfg.Store.Type, err)
	}
	defer shutdown("store", func(context.Context) error { return st.Close() })

	emitter, err := activation.New(cfg.Activation)
	if err != nil {
		return err
	}
	defer shutdown("activation", func(ctx context.Context) error {
		emitter.Close(ctx)
		return nil
	})

	svc := analysis.New(clf,
		analysis.WithStore(st),
		analysis.WithEmitter(emitter),
		analysis.WithTelemetry(tel),
		analysis.WithActivationLevel(cfg.Logging.ActivationLevel),
	)

	return server.New(cfg, svc).Start(ctx)
}

// buildClassifier constructs the configured backend wrapped in the
// prediction cache.
func buildClassifier(cfg *config.Config) (classifier.Classifier, error) {
	clf, err := classifier.New(cfg.Classifier)
	if err != nil {
		return nil, err
	}
	c, err := cache.New(cfg.Cache)
	if err != nil {
		_ = clf.Close()
		return nil, fmt.Errorf("open cache: %w", err)
	}
	return classifier.NewCached(clf, c, cfg.Cache.TTL), nil
}

func shutdown(name string, fn func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()
	if err := fn(ctx); err != nil {
		log.Warn().Err(err).Str("component", name).Msg("shutdown failed")
	}
}
