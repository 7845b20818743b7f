package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/straja-ai/emotion/internal/analysis"
	"github.com/straja-ai/emotion/internal/console"
	"github.com/straja-ai/emotion/internal/sentiment"
	"github.com/straja-ai/emotion/internal/store"
	"github.com/straja-ai/emotion/internal/version"
)

const healthTimeout = 2 * time.Second

type analyzeRequest struct {
	Text string `json:"text"`
}

type syncAnalyzeRequest struct {
	Username string `json:"username"`
	Text     string `json:"text"`
}

type predictRequest struct {
	Data []json.RawMessage `json:"data"`
}

type predictResponse struct {
	Data []sentiment.Result `json:"data"`
}

type healthResponse struct {
	OK      bool   `json:"ok"`
	Version string `json:"version"`
	Model   string `json:"model"`
	Backend string `json:"backend"`
	Store   string `json:"store"`
	Error   string `json:"error,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		OK:      true,
		Version: version.String(),
		Model:   s.svc.Model(),
		Backend: s.svc.Backend(),
		Store:   s.storeType,
	}
	if st := s.svc.Store(); st != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := st.Ping(ctx); err != nil {
			log.Warn().Err(err).Msg("health: store ping failed")
			resp.OK = false
			resp.Error = "store unavailable"
			writeJSON(w, http.StatusServiceUnavailable, resp)
			return
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) view() console.View {
	return console.View{Model: s.svc.Model(), MaxChars: analysis.MaxTextRunes}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if err := console.Render(w, http.StatusOK, s.view()); err != nil {
		log.Error().Err(err).Msg("render form")
	}
}

func (s *Server) handleFormSubmit(w http.ResponseWriter, r *http.Request) {
	v := s.view()
	status := http.StatusOK

	if err := r.ParseForm(); err != nil {
		status, _, v.Error = classify(err)
		if status == http.StatusInternalServerError {
			status, v.Error = http.StatusBadRequest, "invalid form submission"
		}
	} else {
		v.Text = r.PostForm.Get("text")
		res, err := s.svc.Analyze(r.Context(), requestIDFrom(r.Context()), v.Text)
		if err != nil {
			status, _, v.Error = classify(err)
		} else {
			v.Result = &res
		}
	}

	if err := console.Render(w, status, v); err != nil {
		log.Error().Err(err).Msg("render form")
	}
}

func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	res, err := s.svc.Analyze(r.Context(), requestIDFrom(r.Context()), req.Text)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// handlePredict mirrors the Gradio predict contract: {"data": [text]} in,
// {"data": [result]} out.
func (s *Server) handlePredict(w http.ResponseWriter, r *http.Request) {
	var req predictRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	if len(req.Data) == 0 {
		s.writeErr(w, r, invalid("data must contain one text element"))
		return
	}
	var text string
	if err := json.Unmarshal(req.Data[0], &text); err != nil {
		s.writeErr(w, r, invalid("data[0] must be a string"))
		return
	}

	res, err := s.svc.Analyze(r.Context(), requestIDFrom(r.Context()), text)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, predictResponse{Data: []sentiment.Result{res}})
}

func (s *Server) handleSyncAnalyze(w http.ResponseWriter, r *http.Request) {
	if s.svc.Store() == nil {
		writeError(w, http.StatusNotFound, "record storage is disabled", "not_found")
		return
	}
	var req syncAnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		s.writeErr(w, r, err)
		return
	}
	rec, err := s.svc.AnalyzeAndRecord(r.Context(), requestIDFrom(r.Context()), req.Username, req.Text)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListRecords(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Store()
	if st == nil {
		writeError(w, http.StatusNotFound, "record storage is disabled", "not_found")
		return
	}
	f, err := parseFilter(r)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	page, err := st.List(r.Context(), f)
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) handleGetRecord(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Store()
	if st == nil {
		writeError(w, http.StatusNotFound, "record storage is disabled", "not_found")
		return
	}
	rec, err := st.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.writeErr(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) handleDeleteRecord(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Store()
	if st == nil {
		writeError(w, http.StatusNotFound, "record storage is disabled", "not_found")
		return
	}
	if err := st.Delete(r.Context(), r.PathValue("id")); err != nil {
		s.writeErr(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		var maxBytes *http.MaxBytesError
		if errors.As(err, &maxBytes) {
			return err
		}
		if errors.Is(err, io.EOF) {
			return invalid("request body is empty")
		}
		return invalid("invalid JSON body")
	}
	return nil
}

func invalid(msg string) error {
	return fmt.Errorf("%w: %s", analysis.ErrInvalidInput, msg)
}

// parseFilter reads username, label, from, to, page and page_size. Times are
// RFC 3339 or plain dates (UTC midnight).
func parseFilter(r *http.Request) (store.Filter, error) {
	q := r.URL.Query()
	f := store.Filter{Username: q.Get("username")}

	if l := strings.TrimSpace(q.Get("label")); l != "" {
		c, err := sentiment.ParseCategory(l)
		if err != nil {
			return f, invalid(err.Error())
		}
		f.Label = c
	}

	var err error
	if f.From, err = parseTimeParam(q.Get("from"), "from"); err != nil {
		return f, err
	}
	if f.To, err = parseTimeParam(q.Get("to"), "to"); err != nil {
		return f, err
	}
	if f.Page, err = parseIntParam(q.Get("page"), "page"); err != nil {
		return f, err
	}
	if f.PageSize, err = parseIntParam(q.Get("page_size"), "page_size"); err != nil {
		return f, err
	}
	return f, nil
}

func parseTimeParam(raw, name string) (*time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, invalid(name + " must be an RFC 3339 time or YYYY-MM-DD date")
}

func parseIntParam(raw, name string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalid(name + " must be an integer")
	}
	return n, nil
}
