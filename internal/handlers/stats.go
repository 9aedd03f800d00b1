package handlers

import (
	"net/http"
	"time"

	"github.com/checkfox/go_crm/internal/logger"
	"github.com/checkfox/go_crm/internal/repository"
)

// StatsHandler handles statistics and observability endpoints
type StatsHandler struct {
	leadRepo repository.LeadRepository
}

// NewStatsHandler creates a new StatsHandler
func NewStatsHandler(leadRepo repository.LeadRepository) *StatsHandler {
	return &StatsHandler{
		leadRepo: leadRepo,
	}
}

// QualificationCounts represents lead counts grouped by qualification status
type QualificationCounts struct {
	Hot         int `json:"hot"`
	Warm        int `json:"warm"`
	Cold        int `json:"cold"`
	Unqualified int `json:"unqualified"`
	Total       int `json:"total"`
}

// RecentLeadSummary represents a summary of a recent lead
type RecentLeadSummary struct {
	ID                  int64   `json:"id"`
	BuyerName           *string `json:"buyer_name,omitempty"`
	Status              string  `json:"status"`
	QualificationScore  *int    `json:"qualification_score,omitempty"`
	QualificationStatus *string `json:"qualification_status,omitempty"`
	CreatedAt           string  `json:"created_at"`
}

// HandleQualificationCounts handles GET /stats/leads/qualification
func (h *StatsHandler) HandleQualificationCounts(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger.Info(ctx, "Fetching qualification counts")

	counts, err := h.leadRepo.GetQualificationCounts(ctx)
	if err != nil {
		logger.LogError(ctx, "Failed to get qualification counts", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	total := 0
	for _, count := range counts {
		total += count
	}

	respondJSON(w, ctx, http.StatusOK, QualificationCounts{
		Hot:         counts["hot"],
		Warm:        counts["warm"],
		Cold:        counts["cold"],
		Unqualified: counts["unqualified"],
		Total:       total,
	})
}

// HandleRecentLeads handles GET /stats/leads/recent
func (h *StatsHandler) HandleRecentLeads(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	logger.Info(ctx, "Fetching recent leads")

	leads, err := h.leadRepo.GetRecentLeads(ctx, 50)
	if err != nil {
		logger.LogError(ctx, "Failed to get recent leads", err)
		respondError(w, ctx, http.StatusInternalServerError, "internal server error")
		return
	}

	response := make([]RecentLeadSummary, 0, len(leads))
	for _, lead := range leads {
		summary := RecentLeadSummary{
			ID:                 lead.ID,
			BuyerName:          lead.BuyerName,
			Status:             string(lead.Status),
			QualificationScore: lead.QualificationScore,
			CreatedAt:          lead.CreatedAt.Format(time.RFC3339),
		}
		if lead.QualificationStatus != nil {
			status := string(*lead.QualificationStatus)
			summary.QualificationStatus = &status
		}
		response = append(response, summary)
	}

	respondJSON(w, ctx, http.StatusOK, response)
}
