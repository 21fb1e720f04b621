package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pavelanni/interviewprep/internal/analytics"
	"github.com/pavelanni/interviewprep/internal/engine"
	"github.com/pavelanni/interviewprep/internal/i18n"
	"github.com/pavelanni/interviewprep/internal/model"
	"github.com/pavelanni/interviewprep/internal/store"
)

// Interviewer runs interview sessions.
type Interviewer interface {
	SetupProfile(ctx context.Context, p model.Profile) (*model.Session, error)
	NextQuestion(sess *model.Session, followUp string) (*model.Question, error)
	SubmitAnswer(ctx context.Context, sess *model.Session, text string, skipped bool) (model.Evaluation, error)
	FollowUpFor(sess *model.Session, ev model.Evaluation, skipped bool) string
	Finalize(ctx context.Context, sess *model.Session) (model.Report, error)
}

// Archive reads stored sessions and users back from durable storage.
type Archive interface {
	ListSessions(ctx context.Context, completedOnly bool) ([]model.SessionSummary, error)
	SessionExport(ctx context.Context, sessionID int64, opts analytics.Options) (model.SessionExport, error)
	ExportReports(ctx context.Context, opts analytics.Options) (model.ReportExport, error)
	UserCount(ctx context.Context) (int, error)
}

// DefaultIdleTTL is how long an untouched in-progress session stays in memory.
const DefaultIdleTTL = 2 * time.Hour

// Config carries the settings the handlers report or pass through.
type Config struct {
	Skills    []string
	Simulated bool
	Report    analytics.Options
	// AdminPasswordHash is the bcrypt hash guarding /api/admin. Empty disables
	// the admin endpoints.
	AdminPasswordHash []byte
	// IdleTTL evicts in-progress sessions nobody has touched for this long.
	IdleTTL time.Duration
}

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	engine  Interviewer
	archive Archive
	config  Config

	now func() time.Time

	mu   sync.Mutex
	live map[int64]*liveSession
}

// liveSession serializes turns on one in-progress session.
type liveSession struct {
	mu   sync.Mutex
	sess *model.Session

	// lastSeen is guarded by Handler.mu.
	lastSeen time.Time
}

// New creates a new Handler.
func New(e Interviewer, a Archive, cfg Config) *Handler {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Handler{
		engine:  e,
		archive: a,
		config:  cfg,
		now:     time.Now,
		live:    make(map[int64]*liveSession),
	}
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	r.Route("/api", func(r chi.Router) {
		r.Get("/skills", h.handleSkills)
		r.Post("/sessions", h.handleStartSession)
		r.Get("/sessions/{sessionID}", h.handleGetSession)
		r.Post("/sessions/{sessionID}/answer", h.handleAnswer)
		r.Post("/sessions/{sessionID}/finalize", h.handleFinalize)
		r.Get("/sessions/{sessionID}/report", h.handleReport)
		r.Route("/admin", func(r chi.Router) {
			r.Use(h.requireAdmin)
			h.adminRoutes(r)
		})
	})
}

type startResponse struct {
	Session  *model.Session  `json:"session"`
	Question *model.Question `json:"question"`
	Mode     string          `json:"mode"`
}

type answerRequest struct {
	Answer  string `json:"answer"`
	Skipped bool   `json:"skipped"`
}

type answerResponse struct {
	Evaluation   model.Evaluation `json:"evaluation"`
	NextQuestion *model.Question  `json:"next_question"`
	Done         bool             `json:"done"`
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	users, err := h.archive.UserCount(r.Context())
	if err != nil {
		slog.Error("health check: count users", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"status": "unavailable", "simulated": h.config.Simulated})
		return
	}
	h.mu.Lock()
	live := len(h.live)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":        "ok",
		"simulated":     h.config.Simulated,
		"users":         users,
		"live_sessions": live,
	})
}

func (h *Handler) handleSkills(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"skills": h.config.Skills, "languages": i18n.Languages()})
}

func (h *Handler) handleStartSession(w http.ResponseWriter, r *http.Request) {
	var p model.Profile
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest", err)
		return
	}

	sess, err := h.engine.SetupProfile(r.Context(), p)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	q, err := h.engine.NextQuestion(sess, "")
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	now := h.now()
	h.mu.Lock()
	h.evictIdleLocked(now)
	h.live[sess.ID] = &liveSession{sess: sess, lastSeen: now}
	h.mu.Unlock()

	mode := "model"
	if sess.Simulated {
		mode = "simulated"
	}
	writeJSON(w, http.StatusCreated, startResponse{Session: sess, Question: q, Mode: mode})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	ls, ok := h.lookup(w, r)
	if !ok {
		return
	}
	ls.mu.Lock()
	defer ls.mu.Unlock()
	writeJSON(w, http.StatusOK, ls.sess)
}

func (h *Handler) handleAnswer(w http.ResponseWriter, r *http.Request) {
	ls, ok := h.lookup(w, r)
	if !ok {
		return
	}
	var req answerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrBadRequest", err)
		return
	}

	ls.mu.Lock()
	defer ls.mu.Unlock()

	ev, err := h.engine.SubmitAnswer(r.Context(), ls.sess, req.Answer, req.Skipped)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	followUp := h.engine.FollowUpFor(ls.sess, ev, req.Skipped)
	next, err := h.engine.NextQuestion(ls.sess, followUp)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, answerResponse{Evaluation: ev, NextQuestion: next, Done: next == nil})
}

// handleFinalize finishes a live session and drops it from memory. Finalizing
// a session that is already stored as complete returns its stored report.
func (h *Handler) handleFinalize(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}
	ls := h.get(id)
	if ls == nil {
		report, completed, err := h.storedReport(r.Context(), id)
		if err != nil {
			h.writeEngineError(w, r, err)
			return
		}
		if !completed {
			writeError(w, r, http.StatusNotFound, "ErrSessionNotFound", nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	ls.mu.Lock()
	report, err := h.engine.Finalize(r.Context(), ls.sess)
	ls.mu.Unlock()
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}

	h.mu.Lock()
	delete(h.live, id)
	h.mu.Unlock()
	writeJSON(w, http.StatusOK, report)
}

// handleReport serves the report of a live finished session, or rebuilds it
// from storage for sessions this process no longer holds.
func (h *Handler) handleReport(w http.ResponseWriter, r *http.Request) {
	id, ok := sessionID(w, r)
	if !ok {
		return
	}

	if ls := h.get(id); ls != nil {
		ls.mu.Lock()
		report := ls.sess.Report
		ls.mu.Unlock()
		if report == nil {
			writeError(w, r, http.StatusConflict, "ErrSessionNotFinished", nil)
			return
		}
		writeJSON(w, http.StatusOK, report)
		return
	}

	report, completed, err := h.storedReport(r.Context(), id)
	if err != nil {
		h.writeEngineError(w, r, err)
		return
	}
	if !completed {
		writeError(w, r, http.StatusConflict, "ErrSessionNotFinished", nil)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// storedReport rebuilds a session's report from storage and reports whether
// the session was completed.
func (h *Handler) storedReport(ctx context.Context, id int64) (model.Report, bool, error) {
	se, err := h.archive.SessionExport(ctx, id, h.config.Report)
	if err != nil {
		return model.Report{}, false, err
	}
	return se.Report, se.CompletedAt != nil, nil
}

func sessionID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "sessionID"), 10, 64)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, "ErrSessionNotFound", err)
		return 0, false
	}
	return id, true
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*liveSession, bool) {
	id, ok := sessionID(w, r)
	if !ok {
		return nil, false
	}
	ls := h.get(id)
	if ls == nil {
		writeError(w, r, http.StatusNotFound, "ErrSessionNotFound", nil)
		return nil, false
	}
	return ls, true
}

// get returns the live session with id and marks it as seen.
func (h *Handler) get(id int64) *liveSession {
	now := h.now()
	h.mu.Lock()
	defer h.mu.Unlock()
	ls := h.live[id]
	if ls != nil {
		ls.lastSeen = now
	}
	return ls
}

func (h *Handler) evictIdleLocked(now time.Time) {
	for id, ls := range h.live {
		if now.Sub(ls.lastSeen) > h.config.IdleTTL {
			delete(h.live, id)
			slog.Info("evicted idle session", "session_id", id, "idle", now.Sub(ls.lastSeen).Round(time.Second))
		}
	}
}

type errorResponse struct {
	Error  string            `json:"error"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (h *Handler) writeEngineError(w http.ResponseWriter, r *http.Request, err error) {
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &verrs):
		fields := make(map[string]string, len(verrs))
		for _, fe := range verrs {
			fields[fe.Field()] = fe.Tag()
		}
		writeJSON(w, http.StatusBadRequest, errorResponse{
			Error:  i18n.T(r.Context(), "ErrInvalidProfile"),
			Fields: fields,
		})
	case errors.Is(err, engine.ErrNoActiveQuestion):
		writeError(w, r, http.StatusConflict, "ErrNoActiveQuestion", nil)
	case errors.Is(err, engine.ErrSessionFinished):
		writeError(w, r, http.StatusConflict, "ErrSessionFinished", nil)
	case errors.Is(err, store.ErrNotFound):
		writeError(w, r, http.StatusNotFound, "ErrSessionNotFound", nil)
	default:
		slog.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		writeError(w, r, http.StatusInternalServerError, "ErrInternal", nil)
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msgID string, detail error) {
	resp := errorResponse{Error: i18n.T(r.Context(), msgID)}
	if detail != nil {
		resp.Detail = detail.Error()
	}
	writeJSON(w, status, resp)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("encode response", "error", err)
	}
}
