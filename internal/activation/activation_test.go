package activation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/straja-ai/emotion/internal/config"
	"github.com/straja-ai/emotion/internal/sentiment"
)

func testEvent(id string) *Event {
	res := sentiment.NewResult("POSITIVE", 0.9)
	return BuildEvent(BuildParams{RequestID: id, Text: "harika", Model: "m", Backend: "fake", Result: &res})
}

func TestBuildEventPreviewLevels(t *testing.T) {
	text := "mail me at ayse@example.com, great day"
	cases := []struct {
		level string
		want  func(string) bool
	}{
		{LevelMetadata, func(s string) bool { return s == "" }},
		{"", func(s string) bool { return s == "" }},
		{LevelRedacted, func(s string) bool { return s != "" && !strings.Contains(s, "ayse@example.com") }},
		{LevelFull, func(s string) bool { return s == text }},
	}
	for _, c := range cases {
		ev := BuildEvent(BuildParams{Text: text, LoggingLevel: c.level})
		if !c.want(ev.Preview.Text) {
			t.Fatalf("level %q: unexpected preview %q", c.level, ev.Preview.Text)
		}
		if ev.Preview.Chars != len([]rune(text)) {
			t.Fatalf("level %q: chars = %d", c.level, ev.Preview.Chars)
		}
	}
}

func TestBuildEventOutcome(t *testing.T) {
	ev := BuildEvent(BuildParams{Err: errors.New("dial postgres://u:secret@db/x failed")})
	if ev.Outcome != OutcomeError {
		t.Fatalf("expected error outcome, got %s", ev.Outcome)
	}
	if strings.Contains(ev.Error, "secret") {
		t.Fatalf("error not redacted: %s", ev.Error)
	}
	if ev.RequestID == "" {
		t.Fatalf("expected generated request id")
	}

	res := sentiment.NewResult("NEG", 0.7)
	ev = BuildEvent(BuildParams{RequestID: "r", Result: &res, ClassifierLatency: 1500 * time.Microsecond})
	if ev.Outcome != OutcomeOK || ev.Result == nil || ev.Result.Label != sentiment.Negative {
		t.Fatalf("unexpected event %+v", ev)
	}
	if ev.TimingMs.Classifier != 1.5 {
		t.Fatalf("classifier ms = %v", ev.TimingMs.Classifier)
	}
}

func TestBuildEventTruncatesPreview(t *testing.T) {
	ev := BuildEvent(BuildParams{Text: strings.Repeat("ç", 500), LoggingLevel: LevelFull})
	if got := len([]rune(ev.Preview.Text)); got != previewRunes+3 {
		t.Fatalf("preview runes = %d", got)
	}
}

func TestFileSinkWritesJSONL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "events.jsonl")

	sink, err := NewFileSink(path)
	if err != nil {
		t.Fatalf("file sink: %v", err)
	}
	for _, id := range []string{"req-1", "req-2"} {
		if err := sink.Deliver(context.Background(), testEvent(id)); err != nil {
			t.Fatalf("deliver %s: %v", id, err)
		}
	}
	if err := sink.Close(context.Background()); err != nil {
		t.Fatalf("close sink: %v", err)
	}
	if err := sink.Deliver(context.Background(), testEvent("late")); err == nil {
		t.Fatalf("expected deliver after close to fail")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read file: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	var decoded Event
	if err := json.Unmarshal([]byte(lines[0]), &decoded); err != nil {
		t.Fatalf("unmarshal jsonl line: %v", err)
	}
	if decoded.RequestID != "req-1" || decoded.Result.Label != sentiment.Positive {
		t.Fatalf("unexpected decoded event %+v", decoded)
	}
}

func TestWriterSink(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink("buf", &buf)
	if err := sink.Deliver(context.Background(), testEvent("w")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if !strings.Contains(buf.String(), `"request_id":"w"`) {
		t.Fatalf("unexpected output %s", buf.String())
	}
}

func TestWebhookSinkRetriesThenFails(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		if r.Header.Get("X-Test") != "1" {
			t.Errorf("missing header")
		}
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("fail"))
	}))

	sink, err := NewWebhookSink(srv.URL, map[string]string{"X-Test": "1"}, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	sink.backoff = time.Millisecond

	err = sink.Deliver(context.Background(), testEvent("req-1"))
	if err == nil || !strings.Contains(err.Error(), "status 418") {
		t.Fatalf("expected status error, got %v", err)
	}
	if got := calls.Load(); got != webhookRetries+1 {
		t.Fatalf("expected %d attempts, got %d", webhookRetries+1, got)
	}
}

func TestWebhookSinkRecovers(t *testing.T) {
	var calls atomic.Int32
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	sink.backoff = time.Millisecond
	if err := sink.Deliver(context.Background(), testEvent("r")); err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 calls, got %d", calls.Load())
	}
}

func TestEmitterDropsWhenQueueFull(t *testing.T) {
	wait := make(chan struct{})
	sink := &blockingSink{wait: wait}
	em := NewEmitter(EmitterConfig{QueueSize: 1, Workers: 1, ShutdownTimeout: time.Second}, []Sink{sink})

	ev := testEvent("r1")
	em.Emit(ev)
	em.Emit(ev)
	em.Emit(ev)

	if em.Metrics().Dropped == 0 {
		t.Fatalf("expected dropped events when queue is full")
	}

	close(wait)
	em.Close(context.Background())

	em.Emit(ev)
	if em.Metrics().Dropped < 2 {
		t.Fatalf("expected emit after close to count as dropped")
	}
}

func TestEmitterWebhookIntegration(t *testing.T) {
	var (
		mu       sync.Mutex
		received []Event
	)
	srv := newTestServer(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer r.Body.Close()
		var ev Event
		if err := json.NewDecoder(r.Body).Decode(&ev); err == nil {
			mu.Lock()
			received = append(received, ev)
			mu.Unlock()
		}
		w.WriteHeader(http.StatusOK)
	}))

	sink, err := NewWebhookSink(srv.URL, nil, time.Second)
	if err != nil {
		t.Fatalf("webhook sink: %v", err)
	}
	em := NewEmitter(EmitterConfig{QueueSize: 8, Workers: 2, ShutdownTimeout: time.Second}, []Sink{sink})
	defer em.Close(context.Background())

	for i := 0; i < 5; i++ {
		em.Emit(testEvent("integration"))
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := len(received)
		mu.Unlock()
		if n >= 5 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("timeout waiting for webhook events, got %d", n)
		}
		time.Sleep(20 * time.Millisecond)
	}

	m := em.Metrics()
	if m.SinkSuccess[sink.Name()] == 0 {
		t.Fatalf("expected sink success counter to increase")
	}
	if m.Dropped != 0 {
		t.Fatalf("did not expect dropped events, got %d", m.Dropped)
	}
}

func TestNilEmitterIsNoop(t *testing.T) {
	var em *Emitter
	em.Emit(testEvent("x"))
	em.Close(context.Background())
	if em.Metrics().Enqueued != 0 {
		t.Fatalf("expected zero metrics")
	}
}

func TestNewFromConfig(t *testing.T) {
	em, err := New(config.ActivationConfig{})
	if err != nil || em != nil {
		t.Fatalf("expected nil emitter without sinks, got %v %v", em, err)
	}

	path := filepath.Join(t.TempDir(), "a.jsonl")
	em, err = New(config.ActivationConfig{QueueSize: 4, Workers: 1, Sinks: []config.ActivationSinkConfig{
		{Type: "file_jsonl", Path: path},
	}})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	em.Emit(testEvent("cfg"))
	em.Close(context.Background())

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), `"request_id":"cfg"`) {
		t.Fatalf("event not written: %s", data)
	}

	if _, err := New(config.ActivationConfig{Sinks: []config.ActivationSinkConfig{{Type: "kafka"}}}); err == nil {
		t.Fatalf("expected unknown sink error")
	}
}

type blockingSink struct {
	wait chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(context.Context, *Event) error {
	<-s.wait
	return nil
}

func (s *blockingSink) Close(context.Context) error { return nil }

func newTestServer(t *testing.T, h http.Handler) *httptest.Server {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping: cannot open listener: %v", err)
	}
	srv := httptest.NewUnstartedServer(h)
	srv.Listener = ln
	srv.Start()
	t.Cleanup(srv.Close)
	return srv
}
