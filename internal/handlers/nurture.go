package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/models"
	"github.com/checkfox/go_crm/internal/nurture"
	"github.com/checkfox/go_crm/internal/repository"
)

// NurtureHandler exposes nurturing passes and sequence management
type NurtureHandler struct {
	runner       *nurture.Runner
	sequenceRepo repository.SequenceRepository
}

// NewNurtureHandler creates a new NurtureHandler
func NewNurtureHandler(runner *nurture.Runner, sequenceRepo repository.SequenceRepository) *NurtureHandler {
	return &NurtureHandler{
		runner:       runner,
		sequenceRepo: sequenceRepo,
	}
}

// HandleRunPass handles POST /nurture/run: it runs one full pass immediately
// and returns the summary
func (h *NurtureHandler) HandleRunPass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger.Info(ctx, "Manual nurturing pass requested")

	summary, err := h.runner.Run(ctx, time.Now())
	if err != nil {
		logger.LogError(ctx, "Nurturing pass failed", err)
		respondError(w, ctx, http.StatusInternalServerError, "nurturing pass failed")
		return
	}

	respondJSON(w, ctx, http.StatusOK, summary)
}

// HandleCreateSequence handles POST /sequences
func (h *NurtureHandler) HandleCreateSequence(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var seq models.NurturingSequence
	if err := json.NewDecoder(r.Body).Decode(&seq); err != nil {
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	defer r.Body.Close()

	if err := seq.Validate(); err != nil {
		respondError(w, ctx, http.StatusBadRequest, err.Error())
		return
	}

	if err := h.sequenceRepo.CreateSequence(ctx, &seq); err != nil {
		logger.LogError(ctx, "Failed to create sequence", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info(ctx, "Sequence created",
		"sequence_id", seq.ID, "name", seq.Name, "trigger", seq.TriggerType)
	respondJSON(w, ctx, http.StatusCreated, seq)
}

// SequenceActiveRequest is the body for toggling a sequence
type SequenceActiveRequest struct {
	Active bool `json:"active"`
}

// HandleSetSequenceActive handles PUT /sequences/{id}/active
func (h *NurtureHandler) HandleSetSequenceActive(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	sequenceID, ok := idFromRequest(r)
	if !ok {
		respondError(w, ctx, http.StatusBadRequest, "invalid sequence ID")
		return
	}

	var req SequenceActiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, ctx, http.StatusBadRequest, "malformed JSON payload")
		return
	}
	defer r.Body.Close()

	if err := h.sequenceRepo.SetSequenceActive(ctx, sequenceID, req.Active); err != nil {
		logger.LogError(ctx, "Failed to toggle sequence", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	logger.Info(ctx, "Sequence toggled", "sequence_id", sequenceID, "active", req.Active)
	respondJSON(w, ctx, http.StatusOK, map[string]interface{}{
		"sequence_id": sequenceID,
		"active":      req.Active,
	})
}
