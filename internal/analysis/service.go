// Package analysis validates input, classifies it, normalizes the label and
// optionally persists the result.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog/log"

	"github.com/straja-ai/emotion/internal/activation"
	"github.com/straja-ai/emotion/internal/classifier"
	"github.com/straja-ai/emotion/internal/sentiment"
	"github.com/straja-ai/emotion/internal/store"
	"github.com/straja-ai/emotion/internal/telemetry"
)

const (
	MaxTextRunes     = 5000
	MaxUsernameRunes = 100
)

var (
	ErrInvalidInput = errors.New("invalid input")
	// ErrClassification wraps every error returned by the classifier.
	ErrClassification = errors.New("classification failed")
)

// ValidationError names the offending field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Field + ": " + e.Message }

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

type Service struct {
	classifier      classifier.Classifier
	store           store.Store
	emitter         *activation.Emitter
	telemetry       *telemetry.Provider
	activationLevel string
	now             func() time.Time
}

type Option func(*Service)

func WithStore(s store.Store) Option { return func(svc *Service) { svc.store = s } }

func WithEmitter(e *activation.Emitter) Option { return func(svc *Service) { svc.emitter = e } }

func WithTelemetry(p *telemetry.Provider) Option { return func(svc *Service) { svc.telemetry = p } }

// WithActivationLevel sets how much input text activation events carry.
func WithActivationLevel(level string) Option {
	return func(svc *Service) { svc.activationLevel = level }
}

func New(c classifier.Classifier, opts ...Option) *Service {
	s := &Service{
		classifier:      c,
		activationLevel: activation.LevelMetadata,
		now:             time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) Model() string   { return s.classifier.Model() }
func (s *Service) Backend() string { return s.classifier.Backend() }

// Store returns the record store, or nil when persistence is disabled.
func (s *Service) Store() store.Store { return s.store }

// Analyze classifies text and returns the normalized result.
func (s *Service) Analyze(ctx context.Context, requestID, text string) (sentiment.Result, error) {
	if err := validateText(text); err != nil {
		return sentiment.Result{}, err
	}
	res, _, err := s.run(ctx, requestID, "", text)
	return res, err
}

// AnalyzeAndRecord analyzes text and saves it under username.
func (s *Service) AnalyzeAndRecord(ctx context.Context, requestID, username, text string) (store.Record, error) {
	if s.store == nil {
		return store.Record{}, errors.New("record store is not configured")
	}
	username = strings.TrimSpace(username)
	if err := validateUsername(username); err != nil {
		return store.Record{}, err
	}
	if err := validateText(text); err != nil {
		return store.Record{}, err
	}

	_, rec, err := s.run(ctx, requestID, username, text)
	return rec, err
}

// run classifies and, when username is set, persists. One activation event
// and one metric observation are emitted either way.
func (s *Service) run(ctx context.Context, requestID, username, text string) (sentiment.Result, store.Record, error) {
	start := s.now()
	backend, model := s.classifier.Backend(), s.classifier.Model()

	spanCtx, span := s.telemetry.StartClassify(ctx, backend, model)
	pred, err := s.classifier.Classify(spanCtx, text)
	if err == nil && !(pred.Score >= 0 && pred.Score <= 1) {
		err = fmt.Errorf("%w: score %v outside [0,1]", classifier.ErrMalformedResponse, pred.Score)
	}
	telemetry.EndClassify(span, pred.Label, pred.Score, err)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrClassification, err)
	}
	classifierLatency := s.now().Sub(start)

	var (
		res sentiment.Result
		rec store.Record
	)
	if err == nil {
		res = sentiment.NewResult(pred.Label, pred.Score)
		if username != "" {
			rec = store.Record{
				Username: username,
				Text:     text,
				LabelRaw: res.LabelRaw,
				Label:    res.Label,
				Score:    res.Score,
				Model:    model,
			}
			if serr := s.store.Create(ctx, &rec); serr != nil {
				err = fmt.Errorf("save record: %w", serr)
			}
		}
	}
	total := s.now().Sub(start)

	s.observe(ctx, activation.BuildParams{
		RequestID:         requestID,
		Text:              text,
		Username:          username,
		RecordID:          rec.ID,
		Model:             model,
		Backend:           backend,
		Cached:            pred.Cached,
		Result:            resultOrNil(res, err),
		Err:               err,
		LoggingLevel:      s.activationLevel,
		ClassifierLatency: classifierLatency,
		TotalLatency:      total,
	})

	if err != nil {
		return sentiment.Result{}, store.Record{}, err
	}
	return res, rec, nil
}

func (s *Service) observe(ctx context.Context, p activation.BuildParams) {
	ev := activation.BuildEvent(p)
	label := ""
	if ev.Result != nil {
		label = string(ev.Result.Label)
	}
	s.telemetry.RecordAnalysis(ctx, p.Backend, label, ev.Outcome, ev.TimingMs.Classifier, ev.TimingMs.Total)
	s.emitter.Emit(ev)

	logEv := log.Info()
	if p.Err != nil {
		logEv = log.Warn().Str("error", ev.Error)
	}
	logEv.
		Str("request_id", ev.RequestID).
		Str("backend", p.Backend).
		Str("label", label).
		Float64("classifier_ms", ev.TimingMs.Classifier).
		Str("record_id", p.RecordID).
		Msg("analysis")
}

func resultOrNil(r sentiment.Result, err error) *sentiment.Result {
	if err != nil {
		return nil
	}
	return &r
}

func validateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return &ValidationError{Field: "text", Message: "text is required"}
	}
	if !utf8.ValidString(text) {
		return &ValidationError{Field: "text", Message: "text must be valid UTF-8"}
	}
	if n := utf8.RuneCountInString(text); n > MaxTextRunes {
		return &ValidationError{Field: "text", Message: fmt.Sprintf("text cannot exceed %d characters (got %d)", MaxTextRunes, n)}
	}
	return nil
}

func validateUsername(username string) error {
	if username == "" {
		return &ValidationError{Field: "username", Message: "username is required"}
	}
	if n := utf8.RuneCountInString(username); n > MaxUsernameRunes {
		return &ValidationError{Field: "username", Message: fmt.Sprintf("username cannot exceed %d characters", MaxUsernameRunes)}
	}
	return nil
}
