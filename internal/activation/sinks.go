package activation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/straja-ai/emotion/internal/config"
)

// BuildSinks constructs sinks in configuration order.
func BuildSinks(cfgs []config.ActivationSinkConfig) ([]Sink, error) {
	sinks := make([]Sink, 0, len(cfgs))
	for i, c := range cfgs {
		var (
			s   Sink
			err error
		)
		switch strings.ToLower(strings.TrimSpace(c.Type)) {
		case "stdout":
			s = NewWriterSink("stdout", os.Stdout)
		case "file_jsonl":
			s, err = NewFileSink(c.Path)
		case "webhook":
			s, err = NewWebhookSink(c.URL, c.Headers, time.Duration(c.TimeoutMs)*time.Millisecond)
		default:
			err = fmt.Errorf("unknown sink type %q", c.Type)
		}
		if err != nil {
			for _, built := range sinks {
				_ = built.Close(context.Background())
			}
			return nil, fmt.Errorf("activation sink %d: %w", i, err)
		}
		sinks = append(sinks, s)
	}
	return sinks, nil
}

// WriterSink writes one JSON object per line to w.
type WriterSink struct {
	name string
	mu   sync.Mutex
	enc  *json.Encoder
}

func NewWriterSink(name string, w io.Writer) *WriterSink {
	return &WriterSink{name: name, enc: json.NewEncoder(w)}
}

func (s *WriterSink) Name() string { return s.name }

func (s *WriterSink) Deliver(_ context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.enc.Encode(ev); err != nil {
		return fmt.Errorf("encode event: %w", err)
	}
	return nil
}

func (s *WriterSink) Close(context.Context) error { return nil }
