// Package mockgradio runs a local stand-in for a Gradio sentiment app. It
// speaks the two-step call API (queue, then stream the result) so the
// analyzer can run offline and tests can exercise the real HTTP client.
package mockgradio

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultAddr    = "127.0.0.1:18080"
	defaultDelayMS = 50
)

type Options struct {
	// Label and Score fix the answer. With no Label the answer is picked by
	// a small keyword lexicon.
	Label string
	Score float64
	Delay time.Duration
}

// OptionsFromEnv reads MOCK_GRADIO_LABEL, MOCK_GRADIO_SCORE and MOCK_DELAY_MS.
func OptionsFromEnv() Options {
	opts := Options{Delay: defaultDelayMS * time.Millisecond}
	opts.Label = strings.TrimSpace(os.Getenv("MOCK_GRADIO_LABEL"))
	if v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv("MOCK_GRADIO_SCORE")), 64); err == nil {
		opts.Score = v
	}
	if v, err := strconv.Atoi(strings.TrimSpace(os.Getenv("MOCK_DELAY_MS"))); err == nil && v >= 0 {
		opts.Delay = time.Duration(v) * time.Millisecond
	}
	return opts
}

// Handler serves the call API under /gradio_api/call/{api}.
type Handler struct {
	opts Options
	mux  *http.ServeMux

	mu      sync.Mutex
	pending map[string]string
}

func NewHandler(opts Options) *Handler {
	h := &Handler{opts: opts, mux: http.NewServeMux(), pending: map[string]string{}}
	h.mux.HandleFunc("POST /gradio_api/call/{api}", h.submit)
	h.mux.HandleFunc("GET /gradio_api/call/{api}/{event}", h.result)
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	log.Debug().Str("method", r.Method).Str("path", r.URL.Path).Msg("mock gradio request")
	h.mux.ServeHTTP(w, r)
}

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Data []string `json:"data"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.Data) == 0 {
		http.Error(w, `{"error":"data must hold one string"}`, http.StatusUnprocessableEntity)
		return
	}

	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	h.mu.Lock()
	h.pending[id] = req.Data[0]
	h.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"event_id": id})
}

func (h *Handler) result(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("event")
	h.mu.Lock()
	text, ok := h.pending[id]
	delete(h.pending, id)
	h.mu.Unlock()
	if !ok {
		http.Error(w, "unknown event", http.StatusNotFound)
		return
	}

	if h.opts.Delay > 0 {
		select {
		case <-time.After(h.opts.Delay):
		case <-r.Context().Done():
			return
		}
	}

	label, score := h.opts.Label, h.opts.Score
	if label == "" {
		label, score = guess(text)
	}
	if score == 0 {
		score = 0.9
	}
	payload, _ := json.Marshal([]map[string]any{{"label": label, "score": score}})

	w.Header().Set("Content-Type", "text/event-stream")
	fmt.Fprintf(w, "event: generating\ndata: null\n\nevent: complete\ndata: %s\n\n", payload)
}

var lexicon = map[string][]string{
	"negative": {"kötü", "berbat", "nefret", "üzgün", "bad", "awful", "hate", "terrible"},
	"positive": {"iyi", "güzel", "harika", "mutlu", "sevdim", "good", "great", "love", "happy"},
}

// guess labels text with the first lexicon hit, negative words first.
func guess(text string) (string, float64) {
	lower := strings.ToLower(text)
	for _, label := range []string{"negative", "positive"} {
		for _, w := range lexicon[label] {
			if strings.Contains(lower, w) {
				return label, 0.92
			}
		}
	}
	return "neutral", 0.6
}

// Start listens on addr (default 127.0.0.1:18080 or MOCK_GRADIO_PORT) and
// returns a shutdown func and the base URL.
func Start(addr string, opts Options) (func(context.Context) error, string, error) {
	if strings.TrimSpace(addr) == "" {
		addr = defaultAddr
		if port := strings.TrimSpace(os.Getenv("MOCK_GRADIO_PORT")); port != "" {
			addr = "127.0.0.1:" + port
		}
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, "", fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{Handler: NewHandler(opts), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("mock gradio server error")
		}
	}()

	baseURL := "http://" + ln.Addr().String()
	log.Info().Str("url", baseURL).Dur("delay", opts.Delay).Msg("mock gradio listening")
	return srv.Shutdown, baseURL, nil
}
