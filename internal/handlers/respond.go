package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/checkfox/go_crm/internal/logger"
)

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error         string `json:"error"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, ctx context.Context, statusCode int, data interface{}) {
	if correlationID, ok := ctx.Value(logger.CorrelationIDKey).(string); ok {
		w.Header().Set("X-Correlation-ID", correlationID)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.LogError(ctx, "Failed to encode response", err)
	}
}

// respondError sends an error response
func respondError(w http.ResponseWriter, ctx context.Context, statusCode int, message string) {
	correlationID := ""
	if id, ok := ctx.Value(logger.CorrelationIDKey).(string); ok {
		correlationID = id
	}

	respondJSON(w, ctx, statusCode, ErrorResponse{
		Error:         message,
		CorrelationID: correlationID,
	})
}
