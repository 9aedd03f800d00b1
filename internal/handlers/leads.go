package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/models"
	"github.com/checkfox/go_crm/internal/repository"
	"github.com/checkfox/go_crm/internal/scoring"
)

// LeadHandler exposes lead-level operations: rescoring, status changes, and
// interaction logging
type LeadHandler struct {
	leadRepo  repository.LeadRepository
	eventRepo repository.EventRepository
}

// NewLeadHandler creates a new LeadHandler
func NewLeadHandler(leadRepo repository.LeadRepository, eventRepo repository.EventRepository) *LeadHandler {
	return &LeadHandler{
		leadRepo:  leadRepo,
		eventRepo: eventRepo,
	}
}

// HandleRescore handles POST /leads/{id}/rescore. The lead is scored
// synchronously, the qualification persisted, and the full breakdown
// returned.
func (h *LeadHandler) HandleRescore(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	leadID, ok := idFromRequest(r)
	if !ok {
		respondError(w, ctx, http.StatusBadRequest, "invalid lead ID")
		return
	}

	ctx = context.WithValue(ctx, logger.LeadIDKey, leadID)
	logger.Info(ctx, "Rescoring lead")

	lead, err := h.leadRepo.GetLeadByID(ctx, leadID)
	if err != nil {
		logger.LogError(ctx, "Failed to load lead", err)
		respondError(w, ctx, http.StatusNotFound, "lead not found")
		return
	}

	communications, err := h.eventRepo.ListCommunicationsByLead(ctx, leadID)
	if err != nil {
		logger.LogError(ctx, "Failed to load communications", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	views, err := h.eventRepo.ListPropertyViewsByContact(ctx, leadID)
	if err != nil {
		logger.LogError(ctx, "Failed to load property views", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	now := time.Now()
	result := scoring.Score(lead, communications, views, now)

	if err := h.leadRepo.UpdateLeadQualification(ctx, leadID, result.Score, result.Status, now); err != nil {
		logger.LogError(ctx, "Failed to persist qualification", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info(ctx, "Lead rescored", "score", result.Score, "status", result.Status)
	respondJSON(w, ctx, http.StatusOK, result)
}

// StatusUpdateRequest is the body for lead status changes
type StatusUpdateRequest struct {
	Status models.LeadStatus `json:"status"`
}

// HandleUpdateStatus handles PATCH /leads/{id}/status
func (h *LeadHandler) HandleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	leadID, ok := idFromRequest(r)
	if !ok {
		respondError(w, ctx, http.StatusBadRequest, "invalid lead ID")
		return
	}

	var req StatusUpdateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	defer r.Body.Close()

	if !req.Status.IsValid() {
		respondError(w, ctx, http.StatusBadRequest, "invalid lead status")
		return
	}

	ctx = context.WithValue(ctx, logger.LeadIDKey, leadID)

	lead, err := h.leadRepo.GetLeadByID(ctx, leadID)
	if err != nil {
		logger.LogError(ctx, "Failed to load lead", err)
		respondError(w, ctx, http.StatusNotFound, "lead not found")
		return
	}

	if err := h.leadRepo.UpdateLeadStatus(ctx, leadID, req.Status); err != nil {
		logger.LogError(ctx, "Failed to update lead status", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.LogStatusTransition(ctx, "lead", leadID, string(lead.Status), string(req.Status))
	respondJSON(w, ctx, http.StatusOK, map[string]interface{}{
		"lead_id": leadID,
		"status":  req.Status,
	})
}

// CommunicationRequest is the body for logging an interaction with a lead
type CommunicationRequest struct {
	Direction string `json:"direction"`
}

// HandleCreateCommunication handles POST /leads/{id}/communications
func (h *LeadHandler) HandleCreateCommunication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	leadID, ok := idFromRequest(r)
	if !ok {
		respondError(w, ctx, http.StatusBadRequest, "invalid lead ID")
		return
	}

	var req CommunicationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	defer r.Body.Close()

	if req.Direction != "inbound" && req.Direction != "outbound" {
		respondError(w, ctx, http.StatusBadRequest, "direction must be inbound or outbound")
		return
	}

	event := &models.CommunicationEvent{
		LeadID:     leadID,
		Direction:  req.Direction,
		OccurredAt: time.Now(),
	}

	if err := h.eventRepo.CreateCommunication(ctx, event); err != nil {
		logger.LogError(ctx, "Failed to record communication", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	respondJSON(w, ctx, http.StatusCreated, event)
}

// idFromRequest extracts the {id} route variable
func idFromRequest(r *http.Request) (int64, bool) {
	idStr, ok := mux.Vars(r)["id"]
	if !ok {
		return 0, false
	}
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
