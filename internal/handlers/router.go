package handlers

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/checkfox/go_crm/internal/config"
)

// RouterDeps bundles everything the HTTP surface needs
type RouterDeps struct {
	Config  *config.Config
	Webhook *WebhookHandler
	Leads   *LeadHandler
	Nurture *NurtureHandler
	Stats   *StatsHandler
	Health  func() error
}

// NewRouter builds the full route table. Write endpoints get recovery, auth,
// and rate limiting; read endpoints get recovery only.
func NewRouter(deps RouterDeps) *mux.Router {
	auth := NewAuthMiddleware(deps.Config)
	recovery := NewRecoveryMiddleware()
	rateLimit := NewRateLimitMiddleware(deps.Config)

	guarded := func(h http.HandlerFunc) http.HandlerFunc {
		return recovery.Recover(rateLimit.Limit(auth.Authenticate(h)))
	}
	open := func(h http.HandlerFunc) http.HandlerFunc {
		return recovery.Recover(h)
	}

	r := mux.NewRouter()

	r.HandleFunc("/webhooks/leads", guarded(deps.Webhook.HandleLeadWebhook)).Methods(http.MethodPost)

	r.HandleFunc("/leads/{id}/rescore", guarded(deps.Leads.HandleRescore)).Methods(http.MethodPost)
	r.HandleFunc("/leads/{id}/status", guarded(deps.Leads.HandleUpdateStatus)).Methods(http.MethodPatch)
	r.HandleFunc("/leads/{id}/communications", guarded(deps.Leads.HandleCreateCommunication)).Methods(http.MethodPost)

	r.HandleFunc("/nurture/run", guarded(deps.Nurture.HandleRunPass)).Methods(http.MethodPost)
	r.HandleFunc("/sequences", guarded(deps.Nurture.HandleCreateSequence)).Methods(http.MethodPost)
	r.HandleFunc("/sequences/{id}/active", guarded(deps.Nurture.HandleSetSequenceActive)).Methods(http.MethodPut)

	r.HandleFunc("/stats/leads/qualification", open(deps.Stats.HandleQualificationCounts)).Methods(http.MethodGet)
	r.HandleFunc("/stats/leads/recent", open(deps.Stats.HandleRecentLeads)).Methods(http.MethodGet)

	r.HandleFunc("/health", func(w http.ResponseWriter, req *http.Request) {
		if deps.Health != nil {
			if err := deps.Health(); err != nil {
				http.Error(w, "unhealthy", http.StatusServiceUnavailable)
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods(http.MethodGet)

	return r
}
