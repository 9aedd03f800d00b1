package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/models"
	"github.com/checkfox/go_crm/internal/nurture"
	"github.com/checkfox/go_crm/internal/queue"
	"github.com/checkfox/go_crm/internal/repository"
)

// WebhookHandler receives inbound leads from external sources
type WebhookHandler struct {
	leadRepo      repository.LeadRepository
	queue         queue.Queue
	nurtureRunner *nurture.Runner
}

// NewWebhookHandler creates a new WebhookHandler
func NewWebhookHandler(leadRepo repository.LeadRepository, q queue.Queue, runner *nurture.Runner) *WebhookHandler {
	return &WebhookHandler{
		leadRepo:      leadRepo,
		queue:         q,
		nurtureRunner: runner,
	}
}

// LeadWebhookPayload is the inbound lead shape. Every attribute beyond the
// payload itself is optional; missing fields simply score zero later.
type LeadWebhookPayload struct {
	BuyerName            *string  `json:"buyer_name,omitempty"`
	BuyerEmail           *string  `json:"buyer_email,omitempty"`
	BuyerPhone           *string  `json:"buyer_phone,omitempty"`
	Budget               *float64 `json:"budget,omitempty"`
	Location             *string  `json:"location,omitempty"`
	PropertyTypeInterest *string  `json:"property_type_interest,omitempty"`
	Message              *string  `json:"message,omitempty"`
	LeadSource           *string  `json:"lead_source,omitempty"`
	LeadType             *string  `json:"lead_type,omitempty"`
}

// WebhookResponse represents the response returned to webhook callers
type WebhookResponse struct {
	LeadID        int64  `json:"lead_id"`
	Status        string `json:"status"`
	Enrollments   int    `json:"enrollments"`
	CorrelationID string `json:"correlation_id"`
}

// HandleLeadWebhook handles POST /webhooks/leads
func (h *WebhookHandler) HandleLeadWebhook(w http.ResponseWriter, r *http.Request) {
	startTime := time.Now()

	correlationID := uuid.New().String()
	ctx := context.WithValue(r.Context(), logger.CorrelationIDKey, correlationID)

	logger.Info(ctx, "Received lead webhook",
		"remote_addr", r.RemoteAddr,
		"method", r.Method,
	)

	var payload LeadWebhookPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		logger.LogError(ctx, "Malformed JSON payload", err)
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	defer r.Body.Close()

	now := time.Now()
	lead := &models.Lead{
		BuyerName:            payload.BuyerName,
		BuyerEmail:           payload.BuyerEmail,
		BuyerPhone:           payload.BuyerPhone,
		Budget:               payload.Budget,
		Location:             payload.Location,
		PropertyTypeInterest: payload.PropertyTypeInterest,
		Message:              payload.Message,
		LeadSource:           payload.LeadSource,
		LeadType:             payload.LeadType,
		Status:               models.LeadStatusNew,
		CreatedAt:            now,
	}

	if err := h.leadRepo.CreateLead(ctx, lead); err != nil {
		logger.LogError(ctx, "Failed to create lead", err)
		respondError(w, ctx, http.StatusServiceUnavailable, "database error")
		return
	}

	ctx = context.WithValue(ctx, logger.LeadIDKey, lead.ID)
	logger.Info(ctx, "Created lead", "source", payload.LeadSource)

	// Enroll into any matching new-lead sequences right away; a failure here
	// never loses the lead itself.
	enrolled, err := h.nurtureRunner.EnrollNewLead(ctx, lead, now)
	if err != nil {
		logger.LogError(ctx, "Failed to enroll lead in sequences", err)
	}

	if err := h.queue.Enqueue(ctx, queue.JobTypeScoreLead, queue.NewLeadPayload(lead.ID)); err != nil {
		logger.LogError(ctx, "Failed to enqueue scoring job", err)
		respondError(w, ctx, http.StatusServiceUnavailable, "queue unavailable")
		return
	}

	logger.Info(ctx, "Enqueued scoring job", "enrollments", enrolled)
	logger.LogSlowOperation(ctx, "webhook_request", time.Since(startTime))

	respondJSON(w, ctx, http.StatusOK, WebhookResponse{
		LeadID:        lead.ID,
		Status:        string(lead.Status),
		Enrollments:   enrolled,
		CorrelationID: correlationID,
	})
}
