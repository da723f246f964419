package web

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/skillcadence/internal/journal"
	"github.com/conorfennell/skillcadence/internal/metrics"
	"github.com/conorfennell/skillcadence/internal/quota"
	"github.com/conorfennell/skillcadence/internal/reminder"
	"github.com/conorfennell/skillcadence/internal/schedule"
)

// UserHeader carries the caller's user id. Authentication happens upstream.
const UserHeader = "X-User-ID"

// Server holds the dependencies for the HTTP server.
type Server struct {
	journal  *journal.Service
	due      reminder.DueLister
	notifier reminder.Notifier
	metrics  *metrics.Metrics
	logger   *slog.Logger
	router   chi.Router
	validate *validator.Validate
}

// NewServer creates and configures a new server. due and notifier back the
// reminder sweep endpoint.
func NewServer(svc *journal.Service, due reminder.DueLister, notifier reminder.Notifier, m *metrics.Metrics, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		journal:  svc,
		due:      due,
		notifier: notifier,
		metrics:  m,
		logger:   logger,
		router:   chi.NewRouter(),
		validate: validator.New(),
	}
	s.routes()
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// routes sets up the routing for the server.
func (s *Server) routes() {
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(s.logRequests)
	s.router.Use(chimiddleware.Recoverer)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	s.router.Method(http.MethodGet, "/metrics", s.metrics.Handler())

	s.router.Route("/api", func(r chi.Router) {
		r.Post("/reminders/sweep", s.handleSweep())

		r.Group(func(r chi.Router) {
			r.Use(requireUser)
			r.Get("/skills", s.handleListSkills())
			r.Post("/skills", s.handleCreateSkill())
			r.Get("/skills/due", s.handleDueSkills())
			r.Delete("/skills/{skillID}", s.handleDeleteSkill())
			r.Get("/skills/{skillID}/logs", s.handleListLogs())
			r.Post("/skills/{skillID}/logs", s.handleSubmitLog())
		})
	})
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(r.Context()),
		)
	})
}

func requireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(UserHeader) == "" {
			writeJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + UserHeader + " header"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func userID(r *http.Request) string {
	return r.Header.Get(UserHeader)
}

type createSkillRequest struct {
	Name     string `json:"name" validate:"required,max=100"`
	Category string `json:"category" validate:"max=50"`
}

type submitLogRequest struct {
	Content string `json:"content" validate:"required,max=5000"`
	Feeling string `json:"feeling" validate:"omitempty,oneof=smooth difficult normal"`
}

// handleListSkills returns the caller's skills with their review summaries.
func (s *Server) handleListSkills() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skills, err := s.journal.ListSkills(r.Context(), userID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, skills)
	}
}

func (s *Server) handleDueSkills() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		skills, err := s.journal.DueSkills(r.Context(), userID(r))
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, skills)
	}
}

func (s *Server) handleCreateSkill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createSkillRequest
		if !s.decode(w, r, &req) {
			return
		}
		skill, err := s.journal.CreateSkill(r.Context(), userID(r), req.Name, req.Category)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, skill)
	}
}

func (s *Server) handleDeleteSkill() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := s.journal.DeleteSkill(r.Context(), userID(r), chi.URLParam(r, "skillID")); err != nil {
			s.writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (s *Server) handleListLogs() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n < 0 {
				writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid limit"})
				return
			}
			limit = n
		}
		logs, err := s.journal.Logs(r.Context(), userID(r), chi.URLParam(r, "skillID"), limit)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, logs)
	}
}

type submitLogResponse struct {
	Skill     any       `json:"skill"`
	Analysis  any       `json:"analysis"`
	Grade     string    `json:"grade"`
	Due       time.Time `json:"due"`
	DaysUntil int       `json:"days_until"`
	LogID     string    `json:"log_id"`
}

// handleSubmitLog analyzes a practice log and reschedules the skill.
func (s *Server) handleSubmitLog() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req submitLogRequest
		if !s.decode(w, r, &req) {
			return
		}
		out, err := s.journal.SubmitLog(r.Context(), journal.LogRequest{
			UserID:  userID(r),
			SkillID: chi.URLParam(r, "skillID"),
			Content: req.Content,
			Feeling: req.Feeling,
		})
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, submitLogResponse{
			Skill:     out.Skill,
			Analysis:  out.Analysis,
			Grade:     out.Schedule.Grade.String(),
			Due:       out.Schedule.Due,
			DaysUntil: out.Schedule.DaysUntil,
			LogID:     out.Log.ID,
		})
	}
}

// handleSweep runs one reminder sweep, for an external cron.
func (s *Server) handleSweep() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		report, err := reminder.RunSweep(r.Context(), s.due, countingNotifier{s.notifier, s.metrics}, time.Now(), s.logger)
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"due_skills": report.DueSkills,
			"notified":   len(report.Notified),
			"failed":     len(report.Failed),
		})
	}
}

type countingNotifier struct {
	next    reminder.Notifier
	metrics *metrics.Metrics
}

func (n countingNotifier) Notify(ctx context.Context, r reminder.Reminder) error {
	if err := n.next.Notify(ctx, r); err != nil {
		return err
	}
	n.metrics.ReminderSent()
	return nil
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body"})
		return false
	}
	if err := s.validate.Struct(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return false
	}
	return true
}

type errorBody struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, journal.ErrEmptyContent),
		errors.Is(err, journal.ErrInvalidSkill),
		errors.Is(err, schedule.ErrInvalidInput):
		status = http.StatusBadRequest
	case errors.Is(err, journal.ErrSkillNotFound):
		status = http.StatusNotFound
	case errors.Is(err, quota.ErrExceeded):
		status = http.StatusTooManyRequests
	case errors.Is(err, journal.ErrOracle):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		s.logger.Error("request failed", "path", r.URL.Path, "error", err)
		writeJSON(w, status, errorBody{Error: "internal server error"})
		return
	}
	writeJSON(w, status, errorBody{Error: err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
