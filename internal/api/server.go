// Package api exposes the conversation runner over HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
	errx "github.com/Chative-core-poc-v1/dialogue/internal/core/error"
	logx "github.com/Chative-core-poc-v1/dialogue/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Engine is the part of graph.Runner the HTTP surface needs.
type Engine interface {
	Send(ctx context.Context, sessionID, text string) (*model.TurnResult, error)
	Resume(ctx context.Context, sessionID, value string) (*model.TurnResult, error)
	EvaluateExit(ctx context.Context, sessionID, text string) (*model.TurnResult, error)
	State(ctx context.Context, sessionID string) (*model.ConversationState, error)
	History(ctx context.Context, sessionID string) (*model.ConversationHistory, error)
	Sessions(ctx context.Context) ([]string, error)
	Reset(ctx context.Context, sessionID string) error
}

type Server struct {
	Engine Engine
}

type messageRequest struct {
	Text string `json:"text"`
}

type resumeRequest struct {
	Value string `json:"value"`
}

type sessionResponse struct {
	SessionID string `json:"session_id"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewHandler routes the session endpoints. gatherer may be nil to omit /metrics.
func NewHandler(engine Engine, gatherer prometheus.Gatherer) http.Handler {
	s := &Server{Engine: engine}
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/sessions", func(r chi.Router) {
		r.Get("/", s.ListSessions)
		r.Post("/", s.CreateSession)
		r.Route("/{sessionID}", func(r chi.Router) {
			r.Get("/", s.GetSession)
			r.Delete("/", s.DeleteSession)
			r.Get("/messages", s.GetMessages)
			r.Post("/messages", s.SendMessage)
			r.Post("/resume", s.Resume)
			r.Post("/exit", s.EvaluateExit)
		})
	})
	return r
}

// CreateSession allocates an id; the state is created on the first message.
func (s *Server) CreateSession(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusCreated, sessionResponse{SessionID: uuid.NewString()})
}

func (s *Server) ListSessions(w http.ResponseWriter, r *http.Request) {
	ids, err := s.Engine.Sessions(r.Context())
	if err != nil {
		writeError(w, "ListSessions", err)
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, map[string][]string{"sessions": ids})
}

func (s *Server) GetSession(w http.ResponseWriter, r *http.Request) {
	st, err := s.Engine.State(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, "GetSession", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if err := s.Engine.Reset(r.Context(), chi.URLParam(r, "sessionID")); err != nil {
		writeError(w, "DeleteSession", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) GetMessages(w http.ResponseWriter, r *http.Request) {
	hist, err := s.Engine.History(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		writeError(w, "GetMessages", err)
		return
	}
	writeJSON(w, http.StatusOK, hist.Messages)
}

// SendMessage is send_message(session_id, text) -> response.
func (s *Server) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if !decode(w, r, &body) {
		return
	}
	if strings.TrimSpace(body.Text) == "" {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "text is required"})
		return
	}
	res, err := s.Engine.Send(r.Context(), chi.URLParam(r, "sessionID"), body.Text)
	if err != nil {
		writeError(w, "SendMessage", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) Resume(w http.ResponseWriter, r *http.Request) {
	var body resumeRequest
	if !decode(w, r, &body) {
		return
	}
	res, err := s.Engine.Resume(r.Context(), chi.URLParam(r, "sessionID"), body.Value)
	if err != nil {
		writeError(w, "Resume", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// EvaluateExit accepts an optional text to evaluate as the latest user message.
func (s *Server) EvaluateExit(w http.ResponseWriter, r *http.Request) {
	var body messageRequest
	if r.ContentLength != 0 && !decode(w, r, &body) {
		return
	}
	res, err := s.Engine.EvaluateExit(r.Context(), chi.URLParam(r, "sessionID"), body.Text)
	if err != nil {
		writeError(w, "EvaluateExit", err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(v)
	if err != nil && !errors.Is(err, io.EOF) {
		logx.Warn().Err(err).Str("path", r.URL.Path).Msg("Invalid request body")
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

// writeError maps err to a status; internal details stay in the log.
func writeError(w http.ResponseWriter, op string, err error) {
	status := errx.StatusOf(err)
	msg := err.Error()
	var appErr *errx.AppError
	switch {
	case errors.As(err, &appErr) && status >= http.StatusInternalServerError:
		msg = appErr.Message
	case status >= http.StatusInternalServerError:
		msg = errx.SystemErrorMessage
	}
	if status >= http.StatusInternalServerError {
		logx.Error().Err(err).Str("op", op).Msg("request failed")
	} else {
		logx.Debug().Err(err).Str("op", op).Msg("request rejected")
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logx.Error().Err(err).Msg("response encode failed")
	}
}
