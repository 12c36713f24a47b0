package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	chatx "github.com/vndang/shoptalk/agent/chat"
)

// handleChatStream serves a turn as server-sent events: one data frame per
// model chunk, then a final frame with done=true and the turn metadata.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, err := streamRequest(r)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", "INVALID_REQUEST", err.Error())
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		respondError(w, http.StatusBadRequest, "message is required", "INVALID_REQUEST", nil)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		respondError(w, http.StatusInternalServerError, "streaming unsupported", "INTERNAL_ERROR", nil)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	err = s.svc.StreamTurn(r.Context(), req, func(frame chatx.Frame) error {
		payload, merr := json.Marshal(frame)
		if merr != nil {
			return merr
		}
		if _, werr := fmt.Fprintf(w, "data: %s\n\n", payload); werr != nil {
			return werr
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		// Headers are already gone; the best we can do is a terminal frame.
		log.Warn().Err(err).Msg("stream turn failed")
		frame := chatx.Frame{Content: modelErrorMessage, Done: true}
		if payload, merr := json.Marshal(frame); merr == nil {
			fmt.Fprintf(w, "data: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

// streamRequest accepts the turn either as a JSON body (POST) or as query
// parameters (GET, for EventSource clients that cannot POST).
func streamRequest(r *http.Request) (chatx.TurnRequest, error) {
	if r.Method == http.MethodPost {
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			return chatx.TurnRequest{}, err
		}
		return req.toTurnRequest(), nil
	}

	q := r.URL.Query()
	maxMessages := 0
	if raw := q.Get("max_context_messages"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return chatx.TurnRequest{}, fmt.Errorf("invalid max_context_messages: %w", err)
		}
		maxMessages = parsed
	}

	return chatx.TurnRequest{
		UserID:             q.Get("user_id"),
		SessionID:          q.Get("session_id"),
		Message:            q.Get("message"),
		MaxContextMessages: maxMessages,
		IncludeThinking:    q.Get("include_thinking") == "true",
	}, nil
}
