package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/checkfox/go_crm/internal/models"
	"github.com/checkfox/go_crm/internal/nurture"
	"github.com/checkfox/go_crm/internal/queue"
)

// newTestRunner wires a Runner entirely against one stub backend
func newTestRunner(backend *stubBackend) *nurture.Runner {
	engine := nurture.NewEngine(backend)
	return nurture.NewRunner(engine, backend, backend, backend, backend)
}

func postJSON(t *testing.T, handler http.HandlerFunc, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	payloadBytes, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("Failed to marshal payload: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, target, bytes.NewReader(payloadBytes))
	req.Header.Set("Content-Type", "application/json")

	rr := httptest.NewRecorder()
	handler(rr, req)
	return rr
}

// Test successful lead acceptance
func TestHandleLeadWebhook_Success(t *testing.T) {
	backend := newStubBackend()
	q := &stubQueue{}
	handler := NewWebhookHandler(backend, q, newTestRunner(backend))

	payload := map[string]interface{}{
		"buyer_name":  "Ana Silva",
		"buyer_email": "buyer@example.com",
		"buyer_phone": "+351911234567",
		"budget":      250000,
		"lead_source": "website",
	}

	rr := postJSON(t, handler.HandleLeadWebhook, "/webhooks/leads", payload)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	var response WebhookResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.LeadID == 0 {
		t.Error("Expected a non-zero lead_id")
	}
	if response.Status != string(models.LeadStatusNew) {
		t.Errorf("Expected status %s, got %s", models.LeadStatusNew, response.Status)
	}
	if response.CorrelationID == "" {
		t.Error("Expected a correlation ID in the response")
	}
	if rr.Header().Get("X-Correlation-ID") != response.CorrelationID {
		t.Error("Expected X-Correlation-ID header to match the response body")
	}

	lead, ok := backend.leads[response.LeadID]
	if !ok {
		t.Fatal("Expected the lead to be persisted")
	}
	if lead.BuyerName == nil || *lead.BuyerName != "Ana Silva" {
		t.Error("Expected buyer_name to be stored on the lead")
	}
	if lead.Status != models.LeadStatusNew {
		t.Errorf("Expected new lead status, got %s", lead.Status)
	}

	if len(q.enqueued) != 1 || q.enqueued[0] != queue.JobTypeScoreLead {
		t.Errorf("Expected one %s job enqueued, got %v", queue.JobTypeScoreLead, q.enqueued)
	}
}

// Test that a matching new_lead sequence enrolls the lead immediately
func TestHandleLeadWebhook_EnrollsInNewLeadSequence(t *testing.T) {
	backend := newStubBackend()
	backend.sequences = []*models.NurturingSequence{
		{
			ID:          1,
			Name:        "Buyer welcome",
			TriggerType: models.TriggerNewLead,
			IsActive:    true,
			Steps: models.StepList{
				{StepNumber: 1, DelayDays: 1, ActionType: models.ActionTypeEmail, Subject: "Welcome"},
			},
		},
	}
	handler := NewWebhookHandler(backend, &stubQueue{}, newTestRunner(backend))

	payload := map[string]interface{}{
		"buyer_email": "buyer@example.com",
		"lead_source": "website",
	}

	rr := postJSON(t, handler.HandleLeadWebhook, "/webhooks/leads", payload)

	if rr.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", rr.Code)
	}

	var response WebhookResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}

	if response.Enrollments != 1 {
		t.Errorf("Expected 1 enrollment, got %d", response.Enrollments)
	}
	if len(backend.enrollments) != 1 {
		t.Errorf("Expected 1 enrollment persisted, got %d", len(backend.enrollments))
	}
}

// Test malformed JSON payload
func TestHandleLeadWebhook_MalformedJSON(t *testing.T) {
	backend := newStubBackend()
	handler := NewWebhookHandler(backend, &stubQueue{}, newTestRunner(backend))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/leads", strings.NewReader("{not json"))
	rr := httptest.NewRecorder()
	handler.HandleLeadWebhook(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", rr.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Error != "malformed JSON payload" {
		t.Errorf("Expected error 'malformed JSON payload', got %q", response.Error)
	}
	if len(backend.leads) != 0 {
		t.Error("Expected no lead to be created")
	}
}

// Test database failure during lead creation
func TestHandleLeadWebhook_DatabaseError(t *testing.T) {
	backend := newStubBackend()
	backend.createLeadErr = errors.New("connection refused")
	q := &stubQueue{}
	handler := NewWebhookHandler(backend, q, newTestRunner(backend))

	rr := postJSON(t, handler.HandleLeadWebhook, "/webhooks/leads", map[string]interface{}{
		"buyer_email": "buyer@example.com",
	})

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Error != "database error" {
		t.Errorf("Expected error 'database error', got %q", response.Error)
	}
	if len(q.enqueued) != 0 {
		t.Error("Expected no job to be enqueued")
	}
}

// Test queue failure after the lead is stored
func TestHandleLeadWebhook_QueueError(t *testing.T) {
	backend := newStubBackend()
	q := &stubQueue{enqueueErr: queue.ErrQueueUnavailable}
	handler := NewWebhookHandler(backend, q, newTestRunner(backend))

	rr := postJSON(t, handler.HandleLeadWebhook, "/webhooks/leads", map[string]interface{}{
		"buyer_email": "buyer@example.com",
	})

	if rr.Code != http.StatusServiceUnavailable {
		t.Errorf("Expected status 503, got %d", rr.Code)
	}

	var response ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&response); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if response.Error != "queue unavailable" {
		t.Errorf("Expected error 'queue unavailable', got %q", response.Error)
	}

	// The lead itself was accepted before the queue failed
	if len(backend.leads) != 1 {
		t.Errorf("Expected the lead to remain stored, got %d leads", len(backend.leads))
	}
}
