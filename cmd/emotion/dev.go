package main

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/straja-ai/emotion/internal/activation"
	"github.com/straja-ai/emotion/internal/mockgradio"
)

const maxEventBytes = 1 << 20

// newMockGradioCommand serves a local Gradio stand-in so `serve` can run
// without network access.
func newMockGradioCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "mock-gradio",
		Short: "Run a local Gradio-compatible sentiment app for offline use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			stop, _, err := mockgradio.Start(addr, mockgradio.OptionsFromEnv())
			if err != nil {
				return err
			}
			<-ctx.Done()
			shutdown("mock gradio", stop)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default 127.0.0.1:18080)")

	return cmd
}

// newActivationReceiverCommand logs activation events posted by the webhook
// sink.
func newActivationReceiverCommand() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "activation-receiver",
		Short: "Receive and log activation events from the webhook sink",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			srv := &http.Server{
				Addr:              addr,
				Handler:           activationReceiver(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				<-ctx.Done()
				shutdown("activation receiver", srv.Shutdown)
			}()

			log.Info().Str("addr", addr).Msg("activation receiver listening (POST JSON to /activation)")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8099", "listen address")

	return cmd
}

func activationReceiver() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /", func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(io.LimitReader(r.Body, maxEventBytes))
		if err != nil {
			http.Error(w, "read body", http.StatusBadRequest)
			return
		}

		var ev activation.Event
		if err := json.Unmarshal(body, &ev); err != nil {
			log.Warn().Err(err).Int("bytes", len(body)).Msg("activation receiver: not an event")
			http.Error(w, `{"status":"invalid"}`, http.StatusBadRequest)
			return
		}

		logEv := log.Info().
			Str("request_id", ev.RequestID).
			Str("outcome", ev.Outcome).
			Str("model", ev.Meta.Model).
			Str("backend", ev.Meta.Backend).
			Float64("total_ms", ev.TimingMs.Total)
		if ev.Result != nil {
			logEv = logEv.Str("label", string(ev.Result.Label)).Float64("score", ev.Result.Score)
		}
		if ev.Error != "" {
			logEv = logEv.Str("error", ev.Error)
		}
		logEv.Msg("activation event")

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"status":"ok"}`+"\n")
	})
	return mux
}

