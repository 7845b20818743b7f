package main

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/straja-ai/emotion/internal/classifier"
)

func newBenchCommand(opts *rootOptions) *cobra.Command {
	var (
		n      int
		warmup int
		text   string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure classifier latency for the configured backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			clf, err := classifier.New(cfg.Classifier)
			if err != nil {
				return err
			}
			defer clf.Close()

			ctx := cmd.Context()
			for i := 0; i < warmup; i++ {
				if _, err := clf.Classify(ctx, text); err != nil {
					return fmt.Errorf("warmup: %w", err)
				}
			}

			if n <= 0 {
				n = 1
			}
			durations := make([]time.Duration, 0, n)
			for i := 0; i < n; i++ {
				start := time.Now()
				if _, err := clf.Classify(ctx, text); err != nil {
					return fmt.Errorf("classify: %w", err)
				}
				durations = append(durations, time.Since(start))
			}

			s := summarize(durations)
			fmt.Fprintf(cmd.OutOrStdout(), "bench: backend=%s model=%s n=%d avg_ms=%.2f p50_ms=%.2f p95_ms=%.2f\n",
				clf.Backend(), clf.Model(), len(durations), s.avg, s.p50, s.p95)
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "iterations", "n", 200, "number of timed classifications")
	cmd.Flags().IntVar(&warmup, "warmup", 5, "untimed classifications before measuring")
	cmd.Flags().StringVar(&text, "text", "Bugün hava çok güzel, herkese iyi günler.", "text to classify")

	return cmd
}

type latencySummary struct {
	avg, p50, p95 float64
}

// summarize sorts d in place and reports milliseconds.
func summarize(d []time.Duration) latencySummary {
	if len(d) == 0 {
		return latencySummary{}
	}
	sort.Slice(d, func(i, j int) bool { return d[i] < d[j] })

	var total time.Duration
	for _, x := range d {
		total += x
	}
	ms := func(x time.Duration) float64 { return float64(x.Microseconds()) / 1000.0 }
	return latencySummary{
		avg: ms(total) / float64(len(d)),
		p50: ms(d[len(d)/2]),
		p95: ms(d[int(float64(len(d))*0.95)]),
	}
}
