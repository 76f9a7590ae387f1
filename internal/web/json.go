package web

import (
	"encoding/json"
	"net/http"
	"time"
)

type generateResponse struct {
	Code      string    `json:"code"`
	ExpiresAt time.Time `json:"expires_at"`
}

type transmitResponse struct {
	TransmissionID string `json:"transmission_id"`
}

type cancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

type errorResponse struct {
	Error   string `json:"error"`
	RetryMs int64  `json:"retry_ms,omitempty"`
}

func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, statusCode int, message string, retryMs int64) {
	writeJSON(w, statusCode, errorResponse{Error: message, RetryMs: retryMs})
}
