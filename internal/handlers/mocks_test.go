package handlers

import (
	"context"
	"errors"
	"time"

	"github.com/checkfox/go_crm/internal/models"
	"github.com/checkfox/go_crm/internal/queue"
)

// stubBackend implements every repository interface plus the dispatcher so
// one instance can back a whole handler under test. Behavior is driven by
// its fields.
type stubBackend struct {
	leads          map[int64]*models.Lead
	nextLeadID     int64
	createLeadErr  error
	communications []*models.CommunicationEvent
	sequences      []*models.NurturingSequence
	enrollments    map[int64]*models.Enrollment
	nextEnrollID   int64
	qualScore      int
	qualStatus     models.QualificationStatus
	statusUpdates  map[int64]models.LeadStatus
	emailsSent     int
}

func newStubBackend() *stubBackend {
	return &stubBackend{
		leads:         map[int64]*models.Lead{},
		nextLeadID:    100,
		enrollments:   map[int64]*models.Enrollment{},
		nextEnrollID:  1,
		statusUpdates: map[int64]models.LeadStatus{},
	}
}

// LeadRepository

func (s *stubBackend) CreateLead(ctx context.Context, lead *models.Lead) error {
	if s.createLeadErr != nil {
		return s.createLeadErr
	}
	s.nextLeadID++
	lead.ID = s.nextLeadID
	s.leads[lead.ID] = lead
	return nil
}

func (s *stubBackend) GetLeadByID(ctx context.Context, id int64) (*models.Lead, error) {
	lead, ok := s.leads[id]
	if !ok {
		return nil, errors.New("lead not found")
	}
	return lead, nil
}

func (s *stubBackend) UpdateLeadQualification(ctx context.Context, id int64, score int, status models.QualificationStatus, qualifiedAt time.Time) error {
	s.qualScore = score
	s.qualStatus = status
	return nil
}

func (s *stubBackend) UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error {
	s.statusUpdates[id] = status
	return nil
}

func (s *stubBackend) ListOpenLeads(ctx context.Context) ([]*models.Lead, error) {
	var out []*models.Lead
	for _, lead := range s.leads {
		if !lead.Status.IsClosed() {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (s *stubBackend) GetQualificationCounts(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	for _, lead := range s.leads {
		if lead.QualificationStatus == nil {
			counts["unqualified"]++
		} else {
			counts[string(*lead.QualificationStatus)]++
		}
	}
	return counts, nil
}

func (s *stubBackend) GetRecentLeads(ctx context.Context, limit int) ([]*models.Lead, error) {
	var out []*models.Lead
	for _, lead := range s.leads {
		out = append(out, lead)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// EventRepository

func (s *stubBackend) CreateCommunication(ctx context.Context, event *models.CommunicationEvent) error {
	event.ID = int64(len(s.communications) + 1)
	s.communications = append(s.communications, event)
	return nil
}

func (s *stubBackend) ListCommunicationsByLead(ctx context.Context, leadID int64) ([]models.CommunicationEvent, error) {
	var out []models.CommunicationEvent
	for _, event := range s.communications {
		if event.LeadID == leadID {
			out = append(out, *event)
		}
	}
	return out, nil
}

func (s *stubBackend) ListPropertyViewsByContact(ctx context.Context, contactID int64) ([]models.PropertyViewEvent, error) {
	return nil, nil
}

func (s *stubBackend) CountCommunicationsSince(ctx context.Context, leadID int64, direction string, since time.Time) (int, error) {
	return 0, nil
}

func (s *stubBackend) HasAppointmentSince(ctx context.Context, leadID int64, since time.Time) (bool, error) {
	return false, nil
}

// SequenceRepository

func (s *stubBackend) CreateSequence(ctx context.Context, seq *models.NurturingSequence) error {
	seq.ID = int64(len(s.sequences) + 1)
	s.sequences = append(s.sequences, seq)
	return nil
}

func (s *stubBackend) GetSequenceByID(ctx context.Context, id int64) (*models.NurturingSequence, error) {
	for _, seq := range s.sequences {
		if seq.ID == id {
			return seq, nil
		}
	}
	return nil, errors.New("sequence not found")
}

func (s *stubBackend) ListActiveSequences(ctx context.Context) ([]*models.NurturingSequence, error) {
	var active []*models.NurturingSequence
	for _, seq := range s.sequences {
		if seq.IsActive {
			active = append(active, seq)
		}
	}
	return active, nil
}

func (s *stubBackend) SetSequenceActive(ctx context.Context, id int64, active bool) error {
	seq, err := s.GetSequenceByID(ctx, id)
	if err != nil {
		return err
	}
	seq.IsActive = active
	return nil
}

// EnrollmentRepository

func (s *stubBackend) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	enrollment.ID = s.nextEnrollID
	s.nextEnrollID++
	s.enrollments[enrollment.ID] = enrollment
	return nil
}

func (s *stubBackend) GetEnrollmentByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	enrollment, ok := s.enrollments[id]
	if !ok {
		return nil, errors.New("enrollment not found")
	}
	return enrollment, nil
}

func (s *stubBackend) UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	s.enrollments[enrollment.ID] = enrollment
	return nil
}

func (s *stubBackend) ListDueEnrollments(ctx context.Context, now time.Time) ([]*models.Enrollment, error) {
	var due []*models.Enrollment
	for _, enrollment := range s.enrollments {
		if enrollment.IsDue(now) {
			due = append(due, enrollment)
		}
	}
	return due, nil
}

func (s *stubBackend) ListActiveEnrollments(ctx context.Context) ([]*models.Enrollment, error) {
	var active []*models.Enrollment
	for _, enrollment := range s.enrollments {
		if enrollment.Status == models.EnrollmentStatusActive {
			active = append(active, enrollment)
		}
	}
	return active, nil
}

func (s *stubBackend) HasActiveEnrollment(ctx context.Context, leadID, sequenceID int64) (bool, error) {
	for _, enrollment := range s.enrollments {
		if enrollment.LeadID == leadID && enrollment.SequenceID == sequenceID &&
			enrollment.Status == models.EnrollmentStatusActive {
			return true, nil
		}
	}
	return false, nil
}

// Dispatcher

func (s *stubBackend) SendEmail(ctx context.Context, to, subject, body string) error {
	s.emailsSent++
	return nil
}

func (s *stubBackend) CreateTask(ctx context.Context, leadID int64, title, detail string) error {
	return nil
}

func (s *stubBackend) Notify(ctx context.Context, leadID int64, message string) error {
	return nil
}

// stubQueue records enqueued jobs in memory
type stubQueue struct {
	enqueued   []string
	enqueueErr error
}

func (q *stubQueue) Enqueue(ctx context.Context, jobType string, payload map[string]interface{}) error {
	if q.enqueueErr != nil {
		return q.enqueueErr
	}
	q.enqueued = append(q.enqueued, jobType)
	return nil
}

func (q *stubQueue) EnqueueWithDelay(ctx context.Context, jobType string, payload map[string]interface{}, delay time.Duration) error {
	return q.Enqueue(ctx, jobType, payload)
}

func (q *stubQueue) Dequeue(ctx context.Context) (*queue.Job, error) { return nil, nil }

func (q *stubQueue) Complete(ctx context.Context, jobID int64) error { return nil }

func (q *stubQueue) Retry(ctx context.Context, jobID int64, delay time.Duration) error { return nil }

func (q *stubQueue) Fail(ctx context.Context, jobID int64, errorMsg string) error { return nil }

func (q *stubQueue) HealthCheck(ctx context.Context) error { return nil }

func (q *stubQueue) Close() error { return nil }
