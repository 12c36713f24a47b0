package server

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog/log"
)

// envelope is the uniform response shape for every API endpoint.
type envelope struct {
	Success      bool   `json:"success"`
	Message      string `json:"message"`
	Data         any    `json:"data,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorDetails any    `json:"error_details,omitempty"`
}

func respondSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{
		Success: true,
		Message: message,
		Data:    data,
	})
}

func respondError(w http.ResponseWriter, status int, message, errorCode string, details any) {
	writeJSON(w, status, envelope{
		Success:      false,
		Message:      message,
		ErrorCode:    errorCode,
		ErrorDetails: details,
	})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(body); err != nil {
		log.Warn().Err(err).Msg("encode response body")
	}
}

// recoverer funnels panics into the standard failure envelope so a request
// never dies without producing one.
func recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error().Any("panic", rec).Str("path", r.URL.Path).Msg("request panicked")
				respondError(w, http.StatusInternalServerError, "internal server error", "INTERNAL_ERROR", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
