// Package activation delivers one event per analysis to configured sinks
// (stdout, JSONL file, webhook) off the request path.
package activation

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/straja-ai/emotion/internal/redact"
	"github.com/straja-ai/emotion/internal/sentiment"
)

const (
	EventVersion = "1"

	LevelMetadata = "metadata"
	LevelRedacted = "redacted"
	LevelFull     = "full"

	OutcomeOK    = "ok"
	OutcomeError = "error"

	previewRunes = 200
)

type Meta struct {
	Model    string `json:"model"`
	Backend  string `json:"backend"`
	Username string `json:"username,omitempty"`
	RecordID string `json:"record_id,omitempty"`
	Cached   bool   `json:"cached,omitempty"`
}

type Preview struct {
	Text  string `json:"text,omitempty"`
	Chars int    `json:"chars"`
}

type Timing struct {
	Classifier float64 `json:"classifier"`
	Total      float64 `json:"total"`
}

// Event describes one analysis.
type Event struct {
	Version   string            `json:"version"`
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id"`
	Meta      Meta              `json:"meta"`
	Outcome   string            `json:"outcome"`
	Result    *sentiment.Result `json:"result,omitempty"`
	Error     string            `json:"error,omitempty"`
	Preview   Preview           `json:"preview"`
	TimingMs  Timing            `json:"timing_ms"`
}

// BuildParams collects what the analysis service knows about one call.
type BuildParams struct {
	RequestID         string
	Text              string
	Username          string
	RecordID          string
	Model             string
	Backend           string
	Cached            bool
	Result            *sentiment.Result
	Err               error
	LoggingLevel      string
	ClassifierLatency time.Duration
	TotalLatency      time.Duration
}

func BuildEvent(p BuildParams) *Event {
	ev := &Event{
		Version:   EventVersion,
		Timestamp: time.Now().UTC(),
		RequestID: p.RequestID,
		Meta: Meta{
			Model:    p.Model,
			Backend:  p.Backend,
			Username: p.Username,
			RecordID: p.RecordID,
			Cached:   p.Cached,
		},
		Outcome: OutcomeOK,
		Preview: Preview{
			Text:  previewText(p.LoggingLevel, p.Text),
			Chars: utf8.RuneCountInString(p.Text),
		},
		TimingMs: Timing{
			Classifier: millis(p.ClassifierLatency),
			Total:      millis(p.TotalLatency),
		},
	}
	if ev.RequestID == "" {
		ev.RequestID = uuid.NewString()
	}
	if p.Result != nil {
		r := *p.Result
		ev.Result = &r
	}
	if p.Err != nil {
		ev.Outcome = OutcomeError
		ev.Error = redact.String(p.Err.Error())
	}
	return ev
}

// previewText returns nothing at metadata level, a masked excerpt at
// redacted level and the excerpt as typed at full level.
func previewText(level, text string) string {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case LevelFull:
		return truncateRunes(text, previewRunes)
	case LevelRedacted:
		return redact.Text(truncateRunes(text, previewRunes))
	default:
		return ""
	}
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
