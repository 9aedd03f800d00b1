package nurture

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/checkfox/go_crm/internal/models"
)

// fakeLeadRepo serves leads from memory
type fakeLeadRepo struct {
	leads      map[int64]*models.Lead
	getErr     error
	listErr    error
	statusUpds int
}

func (f *fakeLeadRepo) CreateLead(ctx context.Context, lead *models.Lead) error { return nil }

func (f *fakeLeadRepo) GetLeadByID(ctx context.Context, id int64) (*models.Lead, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	lead, ok := f.leads[id]
	if !ok {
		return nil, errors.New("lead not found")
	}
	return lead, nil
}

func (f *fakeLeadRepo) UpdateLeadQualification(ctx context.Context, id int64, score int, status models.QualificationStatus, qualifiedAt time.Time) error {
	return nil
}

func (f *fakeLeadRepo) UpdateLeadStatus(ctx context.Context, id int64, status models.LeadStatus) error {
	f.statusUpds++
	return nil
}

func (f *fakeLeadRepo) ListOpenLeads(ctx context.Context) ([]*models.Lead, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var out []*models.Lead
	for _, lead := range f.leads {
		if !lead.Status.IsClosed() {
			out = append(out, lead)
		}
	}
	return out, nil
}

func (f *fakeLeadRepo) GetQualificationCounts(ctx context.Context) (map[string]int, error) {
	return map[string]int{}, nil
}

func (f *fakeLeadRepo) GetRecentLeads(ctx context.Context, limit int) ([]*models.Lead, error) {
	return nil, nil
}

// fakeEventRepo returns fixed activity counts
type fakeEventRepo struct {
	inbound      int
	outbound     int
	appointments bool
	countErr     error
}

func (f *fakeEventRepo) CreateCommunication(ctx context.Context, event *models.CommunicationEvent) error {
	return nil
}

func (f *fakeEventRepo) ListCommunicationsByLead(ctx context.Context, leadID int64) ([]models.CommunicationEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) ListPropertyViewsByContact(ctx context.Context, contactID int64) ([]models.PropertyViewEvent, error) {
	return nil, nil
}

func (f *fakeEventRepo) CountCommunicationsSince(ctx context.Context, leadID int64, direction string, since time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	if direction == "inbound" {
		return f.inbound, nil
	}
	return f.outbound, nil
}

func (f *fakeEventRepo) HasAppointmentSince(ctx context.Context, leadID int64, since time.Time) (bool, error) {
	return f.appointments, nil
}

// fakeSequenceRepo serves a fixed set of sequences
type fakeSequenceRepo struct {
	sequences []*models.NurturingSequence
	listErr   error
}

func (f *fakeSequenceRepo) CreateSequence(ctx context.Context, seq *models.NurturingSequence) error {
	return nil
}

func (f *fakeSequenceRepo) GetSequenceByID(ctx context.Context, id int64) (*models.NurturingSequence, error) {
	for _, seq := range f.sequences {
		if seq.ID == id {
			return seq, nil
		}
	}
	return nil, errors.New("sequence not found")
}

func (f *fakeSequenceRepo) ListActiveSequences(ctx context.Context) ([]*models.NurturingSequence, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	var active []*models.NurturingSequence
	for _, seq := range f.sequences {
		if seq.IsActive {
			active = append(active, seq)
		}
	}
	return active, nil
}

func (f *fakeSequenceRepo) SetSequenceActive(ctx context.Context, id int64, active bool) error {
	return nil
}

// fakeEnrollmentRepo keeps enrollments in memory
type fakeEnrollmentRepo struct {
	enrollments map[int64]*models.Enrollment
	nextID      int64
	createErr   error
	updateErr   error
}

func newFakeEnrollmentRepo() *fakeEnrollmentRepo {
	return &fakeEnrollmentRepo{enrollments: map[int64]*models.Enrollment{}, nextID: 1}
}

func (f *fakeEnrollmentRepo) CreateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if f.createErr != nil {
		return f.createErr
	}
	enrollment.ID = f.nextID
	f.nextID++
	f.enrollments[enrollment.ID] = enrollment
	return nil
}

func (f *fakeEnrollmentRepo) GetEnrollmentByID(ctx context.Context, id int64) (*models.Enrollment, error) {
	enrollment, ok := f.enrollments[id]
	if !ok {
		return nil, errors.New("enrollment not found")
	}
	return enrollment, nil
}

func (f *fakeEnrollmentRepo) UpdateEnrollment(ctx context.Context, enrollment *models.Enrollment) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.enrollments[enrollment.ID] = enrollment
	return nil
}

func (f *fakeEnrollmentRepo) ListDueEnrollments(ctx context.Context, now time.Time) ([]*models.Enrollment, error) {
	var due []*models.Enrollment
	for _, enrollment := range f.enrollments {
		if enrollment.IsDue(now) {
			due = append(due, enrollment)
		}
	}
	return due, nil
}

func (f *fakeEnrollmentRepo) ListActiveEnrollments(ctx context.Context) ([]*models.Enrollment, error) {
	var active []*models.Enrollment
	for _, enrollment := range f.enrollments {
		if enrollment.Status == models.EnrollmentStatusActive {
			active = append(active, enrollment)
		}
	}
	return active, nil
}

func (f *fakeEnrollmentRepo) HasActiveEnrollment(ctx context.Context, leadID, sequenceID int64) (bool, error) {
	for _, enrollment := range f.enrollments {
		if enrollment.LeadID == leadID && enrollment.SequenceID == sequenceID &&
			enrollment.Status == models.EnrollmentStatusActive {
			return true, nil
		}
	}
	return false, nil
}

type runnerFixture struct {
	runner         *Runner
	dispatcher     *fakeDispatcher
	leadRepo       *fakeLeadRepo
	eventRepo      *fakeEventRepo
	sequenceRepo   *fakeSequenceRepo
	enrollmentRepo *fakeEnrollmentRepo
}

func newRunnerFixture(sequences ...*models.NurturingSequence) *runnerFixture {
	dispatcher := &fakeDispatcher{}
	leadRepo := &fakeLeadRepo{leads: map[int64]*models.Lead{}}
	eventRepo := &fakeEventRepo{}
	sequenceRepo := &fakeSequenceRepo{sequences: sequences}
	enrollmentRepo := newFakeEnrollmentRepo()

	return &runnerFixture{
		runner:         NewRunner(NewEngine(dispatcher), leadRepo, eventRepo, sequenceRepo, enrollmentRepo),
		dispatcher:     dispatcher,
		leadRepo:       leadRepo,
		eventRepo:      eventRepo,
		sequenceRepo:   sequenceRepo,
		enrollmentRepo: enrollmentRepo,
	}
}

func TestRunner_EnrollsEligibleLeads(t *testing.T) {
	seq := testSequence(emailStep(1))
	seq.TriggerType = models.TriggerNoContact
	seq.TriggerConditions = models.TriggerConditions{DaysWithoutContact: 3}

	fixture := newRunnerFixture(seq)
	lead := testLead()
	lead.CreatedAt = engineNow.AddDate(0, 0, -5)
	fixture.leadRepo.leads[lead.ID] = lead

	summary, err := fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if summary.EnrollmentsCreated != 1 {
		t.Errorf("Expected 1 enrollment created, got %d", summary.EnrollmentsCreated)
	}
	if len(fixture.enrollmentRepo.enrollments) != 1 {
		t.Fatalf("Expected 1 stored enrollment, got %d", len(fixture.enrollmentRepo.enrollments))
	}

	// A second pass must not enroll the same lead again.
	summary, err = fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.EnrollmentsCreated != 0 {
		t.Errorf("Expected no duplicate enrollment, got %d created", summary.EnrollmentsCreated)
	}
}

func TestRunner_SkipsNewLeadTriggersInBatch(t *testing.T) {
	seq := testSequence(emailStep(1))
	seq.TriggerType = models.TriggerNewLead

	fixture := newRunnerFixture(seq)
	fixture.leadRepo.leads[9] = testLead()

	summary, err := fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if summary.EnrollmentsCreated != 0 {
		t.Errorf("Expected batch pass to leave new_lead triggers alone, got %d", summary.EnrollmentsCreated)
	}
}

func TestRunner_ProcessesDueEnrollments(t *testing.T) {
	seq := testSequence(emailStep(1), emailStep(2))
	fixture := newRunnerFixture(seq)
	lead := testLead()
	fixture.leadRepo.leads[lead.ID] = lead

	enrollment := dueEnrollment(seq, 0)
	fixture.enrollmentRepo.enrollments[enrollment.ID] = enrollment

	summary, err := fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if summary.EmailsSent != 1 {
		t.Errorf("Expected 1 email sent, got %d", summary.EmailsSent)
	}
	if len(summary.Errors) != 0 {
		t.Errorf("Expected no errors, got %v", summary.Errors)
	}

	stored := fixture.enrollmentRepo.enrollments[enrollment.ID]
	if stored.CurrentStep != 1 {
		t.Errorf("Expected persisted cursor at 1, got %d", stored.CurrentStep)
	}
}

func TestRunner_EmailStepWithoutAddressCountsAsSkip(t *testing.T) {
	seq := testSequence(emailStep(1), emailStep(2))
	fixture := newRunnerFixture(seq)

	lead := testLead()
	lead.BuyerEmail = nil
	fixture.leadRepo.leads[lead.ID] = lead

	enrollment := dueEnrollment(seq, 0)
	fixture.enrollmentRepo.enrollments[enrollment.ID] = enrollment

	summary, err := fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if summary.EmailsSent != 0 {
		t.Errorf("Expected no emails counted for a lead without an address, got %d", summary.EmailsSent)
	}
	if summary.StepsSkipped != 1 {
		t.Errorf("Expected unsendable step counted as skipped, got %d", summary.StepsSkipped)
	}
	if len(fixture.dispatcher.emails) != 0 {
		t.Errorf("Expected no email dispatched, got %v", fixture.dispatcher.emails)
	}

	stored := fixture.enrollmentRepo.enrollments[enrollment.ID]
	if stored.CurrentStep != 1 {
		t.Errorf("Expected cursor advanced past the unsendable step, got %d", stored.CurrentStep)
	}
}

func TestRunner_FailureIsolation(t *testing.T) {
	seq := testSequence(emailStep(1))
	fixture := newRunnerFixture(seq)

	healthy := testLead()
	fixture.leadRepo.leads[healthy.ID] = healthy

	// One enrollment points at a lead the repo cannot load.
	broken := dueEnrollment(seq, 0)
	broken.ID = 50
	broken.LeadID = 404
	fixture.enrollmentRepo.enrollments[broken.ID] = broken

	good := dueEnrollment(seq, 0)
	good.ID = 51
	fixture.enrollmentRepo.enrollments[good.ID] = good

	summary, err := fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Expected per-enrollment failures to stay in the summary, got %v", err)
	}

	if summary.EmailsSent != 1 {
		t.Errorf("Expected healthy enrollment to still dispatch, got %d emails", summary.EmailsSent)
	}
	if len(summary.Errors) != 1 {
		t.Fatalf("Expected 1 isolated error, got %v", summary.Errors)
	}
	if summary.Errors[0].Stage != "load_lead" || summary.Errors[0].EnrollmentID != 50 {
		t.Errorf("Expected load_lead error for enrollment 50, got %+v", summary.Errors[0])
	}
}

func TestRunner_DispatchFailureReported(t *testing.T) {
	seq := testSequence(emailStep(1))
	fixture := newRunnerFixture(seq)
	fixture.dispatcher.failWith = models.NewDispatchError(models.ActionTypeEmail, 502, "bad gateway", true, nil)

	lead := testLead()
	fixture.leadRepo.leads[lead.ID] = lead
	enrollment := dueEnrollment(seq, 0)
	fixture.enrollmentRepo.enrollments[enrollment.ID] = enrollment

	summary, err := fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if len(summary.Errors) != 1 || summary.Errors[0].Stage != "dispatch" {
		t.Fatalf("Expected dispatch error in summary, got %v", summary.Errors)
	}
	wantMsg := fmt.Sprintf("enrollment %d (lead %d) failed at dispatch", enrollment.ID, enrollment.LeadID)
	if !strings.Contains(summary.Errors[0].Message, wantMsg) {
		t.Errorf("Expected error message with enrollment context, got %q", summary.Errors[0].Message)
	}
	if enrollment.CurrentStep != 0 {
		t.Errorf("Expected cursor unchanged after dispatch failure, got %d", enrollment.CurrentStep)
	}
}

func TestRunner_ExitOnReply(t *testing.T) {
	seq := testSequence(emailStep(1))
	seq.ExitConditions = models.ExitConditions{OnReply: true}
	fixture := newRunnerFixture(seq)
	fixture.eventRepo.inbound = 1

	lead := testLead()
	fixture.leadRepo.leads[lead.ID] = lead
	enrollment := dueEnrollment(seq, 0)
	fixture.enrollmentRepo.enrollments[enrollment.ID] = enrollment

	summary, err := fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if summary.Exited != 1 {
		t.Errorf("Expected 1 exit, got %d", summary.Exited)
	}
	if summary.EmailsSent != 0 {
		t.Errorf("Expected no email on exit, got %d", summary.EmailsSent)
	}
	if enrollment.Status != models.EnrollmentStatusExited {
		t.Errorf("Expected exited enrollment, got %s", enrollment.Status)
	}
}

func TestRunner_SequenceListFailureIsHardError(t *testing.T) {
	fixture := newRunnerFixture()
	fixture.sequenceRepo.listErr = errors.New("db down")

	if _, err := fixture.runner.Run(context.Background(), engineNow); err == nil {
		t.Fatal("Expected hard error when active sequences cannot be listed")
	}
}

func TestRunner_MissingSequenceLeavesEnrollment(t *testing.T) {
	seq := testSequence(emailStep(1))
	fixture := newRunnerFixture(seq)
	lead := testLead()
	fixture.leadRepo.leads[lead.ID] = lead

	enrollment := dueEnrollment(seq, 0)
	enrollment.SequenceID = 999
	fixture.enrollmentRepo.enrollments[enrollment.ID] = enrollment

	summary, err := fixture.runner.Run(context.Background(), engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if len(summary.Errors) != 0 {
		t.Errorf("Expected no errors for orphaned enrollment, got %v", summary.Errors)
	}
	if enrollment.CurrentStep != 0 || enrollment.Status != models.EnrollmentStatusActive {
		t.Error("Expected orphaned enrollment left untouched")
	}
}

func TestRunner_EnrollNewLead(t *testing.T) {
	newLeadSeq := testSequence(emailStep(1))
	newLeadSeq.ID = 1
	newLeadSeq.TriggerType = models.TriggerNewLead

	inactivitySeq := testSequence(emailStep(1))
	inactivitySeq.ID = 2
	inactivitySeq.TriggerType = models.TriggerInactivity
	inactivitySeq.TriggerConditions = models.TriggerConditions{DaysWithoutContact: 7}

	fixture := newRunnerFixture(newLeadSeq, inactivitySeq)
	lead := testLead()
	lead.CreatedAt = engineNow

	created, err := fixture.runner.EnrollNewLead(context.Background(), lead, engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created != 1 {
		t.Errorf("Expected enrollment only in the new_lead sequence, got %d", created)
	}

	// Calling again must be a no-op while the enrollment is active.
	created, err = fixture.runner.EnrollNewLead(context.Background(), lead, engineNow)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if created != 0 {
		t.Errorf("Expected duplicate enrollment suppressed, got %d", created)
	}
}
