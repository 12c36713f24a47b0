// Package server exposes the chat service over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	chatx "github.com/vndang/shoptalk/agent/chat"
	commercex "github.com/vndang/shoptalk/agent/commerce"
	contractx "github.com/vndang/shoptalk/agent/contract"
)

const modelErrorMessage = "Sorry, I could not produce a response. Please try again."

type Config struct {
	Host            string        `envconfig:"HOST" split_words:"true" default:"0.0.0.0"`
	Port            int           `envconfig:"PORT" split_words:"true" default:"8000"`
	ReadTimeout     time.Duration `envconfig:"READ_TIMEOUT" split_words:"true" default:"30s"`
	WriteTimeout    time.Duration `envconfig:"WRITE_TIMEOUT" split_words:"true" default:"120s"`
	ShutdownTimeout time.Duration `envconfig:"SHUTDOWN_TIMEOUT" split_words:"true" default:"10s"`
}

type Server struct {
	svc        *chatx.Service
	httpServer *http.Server
}

func New(svc *chatx.Service, cfg Config) *Server {
	s := &Server{svc: svc}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(recoverer)

	r.Route("/api", func(r chi.Router) {
		r.Post("/chat", s.handleChat)
		r.Post("/chat/stream", s.handleChatStream)
		r.Get("/chat/stream", s.handleChatStream)
		r.Post("/reset-session", s.handleResetSession)
		r.Get("/user-profile", s.handleGetProfile)
		r.Post("/user-profile", s.handleSetProfile)
		r.Get("/session-memory", s.handleSessionMemory)
		r.Get("/health", s.handleHealth)
	})
	r.Handle("/metrics", promhttp.Handler())

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      r,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Handler exposes the router, used by tests.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) ListenAndServe() error {
	log.Info().Str("addr", s.httpServer.Addr).Msg("http server listening")
	return s.httpServer.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

type chatRequest struct {
	UserID             string                 `json:"user_id"`
	SessionID          string                 `json:"session_id"`
	Message            string                 `json:"message"`
	MaxContextMessages int                    `json:"max_context_messages"`
	UserProfile        *contractx.UserProfile `json:"user_profile"`
	IncludeRaw         bool                   `json:"include_raw_response"`
	IncludeTimestamp   bool                   `json:"include_timestamp"`
	IncludeThinking    bool                   `json:"include_thinking"`
	IncludeSessionData bool                   `json:"include_session_data"`
}

func (req chatRequest) toTurnRequest() chatx.TurnRequest {
	return chatx.TurnRequest{
		UserID:             req.UserID,
		SessionID:          req.SessionID,
		Message:            req.Message,
		MaxContextMessages: req.MaxContextMessages,
		UserProfile:        req.UserProfile,
		IncludeRaw:         req.IncludeRaw,
		IncludeTimestamp:   req.IncludeTimestamp,
		IncludeThinking:    req.IncludeThinking,
		IncludeSessionData: req.IncludeSessionData,
	}
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required", "INVALID_REQUEST", nil)
		return
	}

	result, err := s.svc.HandleTurn(r.Context(), req.toTurnRequest())
	if err != nil {
		s.respondTurnError(w, err)
		return
	}

	data := map[string]any{
		"response":   result.Response,
		"user_id":    result.UserID,
		"session_id": result.SessionID,
	}
	if req.IncludeRaw {
		data["raw_response"] = result.RawResponse
	}
	if req.IncludeThinking {
		data["thinking"] = result.Thinking
	}
	if req.IncludeTimestamp {
		data["timestamp"] = result.Timestamp.UTC().Format(time.RFC3339)
	}
	if req.IncludeSessionData {
		data["session_data"] = result.SessionData
	}

	respondSuccess(w, http.StatusOK, "chat turn handled", data)
}

func (s *Server) respondTurnError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, contractx.ErrModelResponse):
		respondError(w, http.StatusBadGateway, modelErrorMessage, "MODEL_ERROR", err.Error())
	case errors.Is(err, contractx.ErrSessionNotFound):
		respondError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND", err.Error())
	case commercex.CodeOf(err) != "":
		respondError(w, http.StatusBadGateway, "commerce operation failed", commercex.CodeOf(err), err.Error())
	default:
		respondError(w, http.StatusInternalServerError, "failed to handle chat turn", "INTERNAL_ERROR", err.Error())
	}
}

func (s *Server) handleResetSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID      string                 `json:"user_id"`
		SessionID   string                 `json:"session_id"`
		UserProfile *contractx.UserProfile `json:"user_profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST", err.Error())
		return
	}
	if req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required", "INVALID_REQUEST", nil)
		return
	}

	if err := s.svc.ResetSession(r.Context(), req.UserID, req.SessionID, req.UserProfile); err != nil {
		respondError(w, http.StatusInternalServerError, "failed to reset session", "INTERNAL_ERROR", err.Error())
		return
	}

	respondSuccess(w, http.StatusOK, "session reset", map[string]any{
		"user_id":    req.UserID,
		"session_id": req.SessionID,
	})
}

func (s *Server) handleGetProfile(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	sessionID := r.URL.Query().Get("session_id")
	if userID == "" || sessionID == "" {
		respondError(w, http.StatusBadRequest, "user_id and session_id are required", "INVALID_REQUEST", nil)
		return
	}

	profile := s.svc.Store().Profile(userID, sessionID)
	respondSuccess(w, http.StatusOK, "user profile", map[string]any{
		"user_id":    userID,
		"session_id": sessionID,
		"profile":    profile,
	})
}

func (s *Server) handleSetProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		UserID    string                `json:"user_id"`
		SessionID string                `json:"session_id"`
		Profile   contractx.UserProfile `json:"profile"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body", "INVALID_REQUEST", err.Error())
		return
	}
	if req.UserID == "" || req.SessionID == "" {
		respondError(w, http.StatusBadRequest, "user_id and session_id are required", "INVALID_REQUEST", nil)
		return
	}

	s.svc.Store().SetProfile(req.UserID, req.SessionID, req.Profile)
	respondSuccess(w, http.StatusOK, "user profile updated", map[string]any{
		"user_id":    req.UserID,
		"session_id": req.SessionID,
	})
}

func (s *Server) handleSessionMemory(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")
	if sessionID == "" {
		respondError(w, http.StatusBadRequest, "session_id is required", "INVALID_REQUEST", nil)
		return
	}

	data, err := s.svc.SessionMemory(sessionID)
	if err != nil {
		if errors.Is(err, contractx.ErrSessionNotFound) {
			respondError(w, http.StatusNotFound, "session not found", "SESSION_NOT_FOUND", nil)
			return
		}
		respondError(w, http.StatusInternalServerError, "failed to read session memory", "INTERNAL_ERROR", err.Error())
		return
	}

	respondSuccess(w, http.StatusOK, "session memory", data)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondSuccess(w, http.StatusOK, "healthy", map[string]any{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"sessions":  s.svc.Store().Count(),
	})
}
