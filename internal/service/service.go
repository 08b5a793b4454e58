// Package service is the sidecar's HTTP surface (spec.md §6): a local
// loopback API serving redact/redact-text/rehydrate/clear/health/sessions.
// Concurrent requests against the same session are serialized with a
// bounded wait, since the vault is the only shared mutable resource and
// must allocate tokens linearizably per session (spec.md §5).
package service

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"pii-redactor/internal/logger"
	"pii-redactor/internal/metrics"
	"pii-redactor/internal/redactor"
	"pii-redactor/internal/resolver"
	"pii-redactor/internal/telemetry"
	"pii-redactor/internal/vault"
)

// lockWait bounds how long a request waits to acquire its session's lock
// before giving up (spec.md §4.8, "bounded wait").
const lockWait = 5 * time.Second

// healthReporter is implemented by the NER scanner; kept as a narrow local
// interface so this package does not need to import the scanner package
// just to check availability.
type healthReporter interface {
	Available() bool
}

// Service wires the redactor and vault into HTTP handlers.
type Service struct {
	redactor *redactor.Redactor
	vlt      vault.Vault
	ner      healthReporter // nil if Presidio/NER is disabled
	backend  string         // "memory" or "bbolt", reported on /health
	log      *logger.Logger
	m        *metrics.Metrics
	tel      *telemetry.Provider // nil disables tracing

	locksMu sync.Mutex
	locks   map[string]chan struct{}
}

// New builds a Service. ner may be nil when the sidecar runs regex-only.
func New(r *redactor.Redactor, v vault.Vault, ner healthReporter, backend string, log *logger.Logger, m *metrics.Metrics) *Service {
	return &Service{
		redactor: r,
		vlt:      v,
		ner:      ner,
		backend:  backend,
		log:      log,
		m:        m,
		locks:    make(map[string]chan struct{}),
	}
}

// WithTelemetry attaches a tracer provider; request handlers open a span
// per call once this is set.
func (s *Service) WithTelemetry(tel *telemetry.Provider) *Service {
	s.tel = tel
	return s
}

// span opens a request span if telemetry is enabled, returning a no-op
// end func otherwise.
func (s *Service) span(ctx context.Context, operation, session string) (context.Context, func()) {
	if s.tel == nil {
		return ctx, func() {}
	}
	spanCtx, span := s.tel.StartRequestSpan(ctx, operation, session)
	return spanCtx, func() { span.End() }
}

// Handler returns the HTTP handler for the sidecar API.
func (s *Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/redact", s.handleRedact)
	mux.HandleFunc("/redact-text", s.handleRedactText)
	mux.HandleFunc("/rehydrate", s.handleRehydrate)
	mux.HandleFunc("/clear", s.handleClear)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/sessions", s.handleSessions)
	return mux
}

// acquire serializes access to one session, bounded by lockWait. The
// returned release func must be called exactly once.
func (s *Service) acquire(ctx context.Context, session string) (func(), error) {
	s.locksMu.Lock()
	ch, ok := s.locks[session]
	if !ok {
		ch = make(chan struct{}, 1)
		s.locks[session] = ch
	}
	s.locksMu.Unlock()

	waitCtx, cancel := context.WithTimeout(ctx, lockWait)
	defer cancel()

	select {
	case ch <- struct{}{}:
		return func() { <-ch }, nil
	case <-waitCtx.Done():
		return nil, waitCtx.Err()
	}
}

func sessionOrDefault(id string) string {
	if id == "" {
		return "default"
	}
	return id
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorResponse{Error: msg}) //nolint:errcheck // best-effort: client disconnect is not actionable
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // best-effort: client disconnect is not actionable
}

// statusForError maps a pipeline error to the HTTP status spec.md §7
// assigns it: InvalidInput -> 400, VaultUnavailable -> 503,
// ProtocolError -> 500, anything else -> 500.
func statusForError(err error) int {
	var invalid *redactor.InvalidInput
	if errors.As(err, &invalid) {
		return http.StatusBadRequest
	}
	var unavailable *vault.UnavailableError
	if errors.As(err, &unavailable) || errors.Is(err, vault.ErrUnavailable) {
		return http.StatusServiceUnavailable
	}
	var protoErr *resolver.ProtocolError
	if errors.As(err, &protoErr) {
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}

type redactMessagesRequest struct {
	SessionID string              `json:"session_id"`
	Messages  []redactor.Message  `json:"messages"`
}

type redactMessagesResponse struct {
	Messages   []redactor.Message `json:"messages"`
	TokenCount int                `json:"token_count"`
}

func (s *Service) handleRedact(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "POST only")
		return
	}
	var req redactMessagesRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session := sessionOrDefault(req.SessionID)
	ctx, endSpan := s.span(r.Context(), "redact", session)
	defer endSpan()

	release, err := s.acquire(ctx, session)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "timed out waiting for session lock")
		return
	}
	defer release()

	out, err := s.redactor.RedactMessages(ctx, session, req.Messages)
	if err != nil {
		s.logProtocolError(err)
		writeError(w, statusForError(err), err.Error())
		return
	}

	total := 0
	for range out {
		total++
	}
	writeJSON(w, http.StatusOK, redactMessagesResponse{Messages: out, TokenCount: total})
}

type redactTextRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

func (s *Service) handleRedactText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "POST only")
		return
	}
	var req redactTextRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session := sessionOrDefault(req.SessionID)
	ctx, endSpan := s.span(r.Context(), "redact_text", session)
	defer endSpan()

	release, err := s.acquire(ctx, session)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "timed out waiting for session lock")
		return
	}
	defer release()

	result, err := s.redactor.Redact(ctx, session, req.Text)
	if err != nil {
		s.logProtocolError(err)
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type rehydrateRequest struct {
	SessionID string `json:"session_id"`
	Text      string `json:"text"`
}

type rehydrateResponse struct {
	Text string `json:"text"`
}

func (s *Service) handleRehydrate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "POST only")
		return
	}
	var req rehydrateRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session := sessionOrDefault(req.SessionID)
	ctx, endSpan := s.span(r.Context(), "rehydrate", session)
	defer endSpan()

	release, err := s.acquire(ctx, session)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "timed out waiting for session lock")
		return
	}
	defer release()

	out, err := s.vlt.Rehydrate(ctx, session, req.Text)
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	if s.m != nil {
		s.m.RehydrateCalls.Add(1)
	}
	writeJSON(w, http.StatusOK, rehydrateResponse{Text: out})
}

type clearRequest struct {
	SessionID string `json:"session_id"`
}

func (s *Service) handleClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusBadRequest, "POST only")
		return
	}
	var req clearRequest
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	session := sessionOrDefault(req.SessionID)
	ctx, endSpan := s.span(r.Context(), "clear", session)
	defer endSpan()

	release, err := s.acquire(ctx, session)
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, "timed out waiting for session lock")
		return
	}
	defer release()

	if err := s.vlt.DeleteSession(ctx, session); err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

type healthResponse struct {
	Status   string `json:"status"`
	Presidio bool   `json:"presidio"`
	Backend  string `json:"backend"`
}

func (s *Service) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusBadRequest, "GET only")
		return
	}
	resp := healthResponse{Status: "ok", Backend: s.backend}
	if s.ner != nil {
		resp.Presidio = s.ner.Available()
	}
	writeJSON(w, http.StatusOK, resp)
}

type sessionsResponse struct {
	Sessions []string `json:"sessions"`
}

func (s *Service) handleSessions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusBadRequest, "GET only")
		return
	}
	sessions, err := s.vlt.ListSessions(r.Context())
	if err != nil {
		writeError(w, statusForError(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sessionsResponse{Sessions: sessions})
}

func (s *Service) logProtocolError(err error) {
	var protoErr *resolver.ProtocolError
	if s.log != nil && errors.As(err, &protoErr) {
		s.log.Errorf("service_protocol_error", "span dump on abort: %v", protoErr)
	}
}
