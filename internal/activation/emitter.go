package activation

import (
	"context"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/straja-ai/emotion/internal/config"
)

// Sink consumes activation events.
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// Metrics is a point-in-time copy of the delivery counters.
type Metrics struct {
	Enqueued    uint64            `json:"enqueued"`
	Dropped     uint64            `json:"dropped"`
	SinkSuccess map[string]uint64 `json:"sink_success"`
	SinkFailure map[string]uint64 `json:"sink_failure"`
}

// Emitter buffers events in a bounded queue and delivers them from a fixed
// pool of workers. Emit never blocks; events are dropped when the queue is full.
type Emitter struct {
	queue           chan *Event
	sinks           []Sink
	shutdownTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup

	metricsMu sync.Mutex
	metrics   Metrics
}

type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
}

func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 2 * time.Second
	}

	e := &Emitter{
		queue:           make(chan *Event, cfg.QueueSize),
		sinks:           sinks,
		shutdownTimeout: cfg.ShutdownTimeout,
		metrics: Metrics{
			SinkSuccess: make(map[string]uint64, len(sinks)),
			SinkFailure: make(map[string]uint64, len(sinks)),
		},
	}
	for _, s := range sinks {
		e.metrics.SinkSuccess[s.Name()] = 0
		e.metrics.SinkFailure[s.Name()] = 0
	}

	for i := 0; i < cfg.Workers; i++ {
		e.wg.Add(1)
		go e.worker()
	}
	return e
}

// New builds the sinks named in cfg and starts an emitter for them. With no
// sinks configured it returns nil, which is a valid no-op emitter.
func New(cfg config.ActivationConfig) (*Emitter, error) {
	sinks, err := BuildSinks(cfg.Sinks)
	if err != nil {
		return nil, err
	}
	if len(sinks) == 0 {
		return nil, nil
	}
	return NewEmitter(EmitterConfig{QueueSize: cfg.QueueSize, Workers: cfg.Workers}, sinks), nil
}

func (e *Emitter) Emit(ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.count(func(m *Metrics) { m.Dropped++ })
		return
	}
	select {
	case e.queue <- ev:
		e.count(func(m *Metrics) { m.Enqueued++ })
	default:
		e.count(func(m *Metrics) { m.Dropped++ })
	}
}

// Close stops accepting events, drains the queue for up to the shutdown
// timeout and closes the sinks.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.queue)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	waitCtx, cancel := context.WithTimeout(ctx, e.shutdownTimeout)
	defer cancel()

	select {
	case <-done:
	case <-waitCtx.Done():
		log.Warn().Msg("activation: shutdown timeout, undelivered events discarded")
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			log.Warn().Err(err).Str("sink", s.Name()).Msg("activation: sink close failed")
		}
	}
}

func (e *Emitter) Metrics() Metrics {
	if e == nil {
		return Metrics{}
	}
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	return Metrics{
		Enqueued:    e.metrics.Enqueued,
		Dropped:     e.metrics.Dropped,
		SinkSuccess: maps.Clone(e.metrics.SinkSuccess),
		SinkFailure: maps.Clone(e.metrics.SinkFailure),
	}
}

func (e *Emitter) count(f func(*Metrics)) {
	e.metricsMu.Lock()
	f(&e.metrics)
	e.metricsMu.Unlock()
}

func (e *Emitter) worker() {
	defer e.wg.Done()
	for ev := range e.queue {
		for _, s := range e.sinks {
			name := s.Name()
			if err := s.Deliver(context.Background(), ev); err != nil {
				log.Warn().Err(err).Str("sink", name).Str("request_id", ev.RequestID).Msg("activation: delivery failed")
				e.count(func(m *Metrics) { m.SinkFailure[name]++ })
				continue
			}
			e.count(func(m *Metrics) { m.SinkSuccess[name]++ })
		}
	}
}
