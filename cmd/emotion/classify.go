package main

import (
	"encoding/json"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/straja-ai/emotion/internal/analysis"
	"github.com/straja-ai/emotion/internal/classifier"
)

func newClassifyCommand(opts *rootOptions) *cobra.Command {
	var backend string

	cmd := &cobra.Command{
		Use:   "classify <text>",
		Short: "Classify one text and print the result as JSON",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if backend != "" {
				cfg.Classifier.Backend = backend
			}

			clf, err := classifier.New(cfg.Classifier)
			if err != nil {
				return err
			}
			defer clf.Close()

			// Per-request client timeouts bound each backend call; the
			// command itself only stops on interrupt.
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			res, err := analysis.New(clf).Analyze(ctx, "", strings.Join(args, " "))
			if err != nil {
				return err
			}

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&backend, "backend", "", "Classifier backend (overrides config)")

	return cmd
}
