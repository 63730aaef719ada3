package automation

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/roofline/roofline-backend/internal/model"
)

// memStore is an in-memory stand-in for every repository interface the
// engine consumes. Errors can be injected per method name.
type memStore struct {
	campaigns     map[uuid.UUID]*model.Campaign
	steps         map[uuid.UUID]*model.Step
	enrollments   map[uuid.UUID]*model.Enrollment
	executions    map[uuid.UUID]*model.StepExecution
	contacts      map[uuid.UUID]*model.Contact
	projects      map[uuid.UUID]*model.Project
	users         map[uuid.UUID]*model.InternalUser
	tasks         []*model.Task
	notifications []*model.Notification

	failOn map[string]error
}

func newMemStore() *memStore {
	return &memStore{
		campaigns:   map[uuid.UUID]*model.Campaign{},
		steps:       map[uuid.UUID]*model.Step{},
		enrollments: map[uuid.UUID]*model.Enrollment{},
		executions:  map[uuid.UUID]*model.StepExecution{},
		contacts:    map[uuid.UUID]*model.Contact{},
		projects:    map[uuid.UUID]*model.Project{},
		users:       map[uuid.UUID]*model.InternalUser{},
		failOn:      map[string]error{},
	}
}

func (s *memStore) err(method string) error { return s.failOn[method] }

// ---- CampaignRepositoryInterface ----

func (s *memStore) Create(c *model.Campaign) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	s.campaigns[c.ID] = c
	return nil
}

func (s *memStore) GetByID(id uuid.UUID) (*model.Campaign, error) {
	if err := s.err("GetByID"); err != nil {
		return nil, err
	}
	c, ok := s.campaigns[id]
	if !ok {
		return nil, fmt.Errorf("campaign %s not found", id)
	}
	return c, nil
}

func (s *memStore) ListCampaigns(tenantID uuid.UUID, offset, limit int, status string) ([]*model.Campaign, int, error) {
	var out []*model.Campaign
	for _, c := range s.campaigns {
		if c.TenantID == tenantID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (s *memStore) ListActiveByTrigger(tenantID uuid.UUID, triggerType string) ([]*model.Campaign, error) {
	if err := s.err("ListActiveByTrigger"); err != nil {
		return nil, err
	}
	var out []*model.Campaign
	for _, c := range s.campaigns {
		if c.TenantID == tenantID && c.TriggerType == triggerType && c.Status == model.CampaignStatusActive {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) UpdateStatus(id uuid.UUID, status model.CampaignStatus) error {
	s.campaigns[id].Status = status
	return nil
}

func (s *memStore) IncrementEnrolledCount(id uuid.UUID) error {
	if c, ok := s.campaigns[id]; ok {
		c.EnrolledCount++
	}
	return nil
}

func (s *memStore) CreateStep(st *model.Step) error {
	if st.ID == uuid.Nil {
		st.ID = uuid.New()
	}
	s.steps[st.ID] = st
	return nil
}

func (s *memStore) GetStep(id uuid.UUID) (*model.Step, error) {
	return s.steps[id], nil
}

func (s *memStore) ListSteps(campaignID uuid.UUID) ([]*model.Step, error) {
	var out []*model.Step
	for _, st := range s.steps {
		if st.CampaignID == campaignID {
			out = append(out, st)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StepOrder < out[j].StepOrder })
	return out, nil
}

func (s *memStore) GetFirstStep(campaignID uuid.UUID) (*model.Step, error) {
	steps, _ := s.ListSteps(campaignID)
	if len(steps) == 0 {
		return nil, nil
	}
	return steps[0], nil
}

func (s *memStore) GetNextStep(campaignID uuid.UUID, afterOrder int) (*model.Step, error) {
	steps, _ := s.ListSteps(campaignID)
	for _, st := range steps {
		if st.StepOrder > afterOrder {
			return st, nil
		}
	}
	return nil, nil
}

func (s *memStore) IncrementStepAttempted(id uuid.UUID) error {
	if st, ok := s.steps[id]; ok {
		st.TotalAttempted++
	}
	return nil
}

func (s *memStore) IncrementStepFailed(id uuid.UUID) error {
	if st, ok := s.steps[id]; ok {
		st.TotalFailed++
	}
	return nil
}

// ---- EnrollmentRepositoryInterface ----

func (s *memStore) CreateEnrollment(e *model.Enrollment) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	if e.Status == "" {
		e.Status = model.EnrollmentActive
	}
	e.EnrolledAt = time.Now()
	s.enrollments[e.ID] = e
	return nil
}

func (s *memStore) GetEnrollment(id uuid.UUID) (*model.Enrollment, error) {
	return s.enrollments[id], nil
}

func (s *memStore) FindActiveOrPaused(campaignID, contactID uuid.UUID) (*model.Enrollment, error) {
	for _, e := range s.enrollments {
		if e.CampaignID == campaignID && e.ContactID == contactID &&
			(e.Status == model.EnrollmentActive || e.Status == model.EnrollmentPaused) {
			return e, nil
		}
	}
	return nil, nil
}

func (s *memStore) ListActiveByContact(tenantID, contactID uuid.UUID) ([]*model.Enrollment, error) {
	if err := s.err("ListActiveByContact"); err != nil {
		return nil, err
	}
	var out []*model.Enrollment
	for _, e := range s.enrollments {
		if e.TenantID == tenantID && e.ContactID == contactID && e.Status == model.EnrollmentActive {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *memStore) AdvancePointer(id, stepID uuid.UUID, stepOrder int) error {
	e := s.enrollments[id]
	e.CurrentStepID = &stepID
	e.CurrentStepOrder = stepOrder
	return nil
}

func (s *memStore) RecordStepCompleted(id uuid.UUID, stepType model.StepType, at time.Time) error {
	e := s.enrollments[id]
	e.StepsCompleted++
	e.LastStepAt = &at
	switch stepType {
	case model.StepSendEmail:
		e.EmailsSent++
	case model.StepSendSMS:
		e.SMSSent++
	}
	return nil
}

func (s *memStore) MarkCompleted(id uuid.UUID, at time.Time) error {
	e := s.enrollments[id]
	if e.Status == model.EnrollmentActive {
		e.Status = model.EnrollmentCompleted
		e.CompletedAt = &at
	}
	return nil
}

func (s *memStore) MarkExited(id uuid.UUID, reason string, at time.Time) error {
	if err := s.err("MarkExited"); err != nil {
		return err
	}
	e := s.enrollments[id]
	if e.Status == model.EnrollmentActive || e.Status == model.EnrollmentPaused {
		e.Status = model.EnrollmentExited
		e.ExitReason = reason
		e.CompletedAt = &at
	}
	return nil
}

func (s *memStore) SetStatus(id uuid.UUID, status model.EnrollmentStatus) error {
	s.enrollments[id].Status = status
	return nil
}

func (s *memStore) CountByCampaign(campaignID uuid.UUID) (map[string]int, error) {
	stats := map[string]int{}
	for _, e := range s.enrollments {
		if e.CampaignID == campaignID {
			stats[string(e.Status)]++
		}
	}
	return stats, nil
}

// ---- ExecutionRepositoryInterface ----

func (s *memStore) CreateExecution(x *model.StepExecution) error {
	if x.ID == uuid.Nil {
		x.ID = uuid.New()
	}
	if x.Status == "" {
		x.Status = model.ExecutionPending
	}
	x.CreatedAt = time.Now()
	s.executions[x.ID] = x
	return nil
}

func (s *memStore) GetExecution(id uuid.UUID) (*model.StepExecution, error) {
	return s.executions[id], nil
}

func (s *memStore) ListDue(now time.Time, limit int) ([]*model.StepExecution, error) {
	var out []*model.StepExecution
	for _, x := range s.executions {
		if x.Status != model.ExecutionPending || x.ScheduledAt.After(now) {
			continue
		}
		e := s.enrollments[x.EnrollmentID]
		if e == nil || e.Status != model.EnrollmentActive {
			continue
		}
		out = append(out, x)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ScheduledAt.Before(out[j].ScheduledAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *memStore) ListByStatus(status model.ExecutionStatus, limit int) ([]*model.StepExecution, error) {
	var out []*model.StepExecution
	for _, x := range s.executions {
		if x.Status == status {
			out = append(out, x)
		}
	}
	return out, nil
}

func (s *memStore) ListByEnrollment(enrollmentID uuid.UUID) ([]*model.StepExecution, error) {
	var out []*model.StepExecution
	for _, x := range s.executions {
		if x.EnrollmentID == enrollmentID {
			out = append(out, x)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *memStore) MarkRunning(id uuid.UUID, at time.Time) error {
	x := s.executions[id]
	if x.Status == model.ExecutionPending {
		x.Status = model.ExecutionRunning
		x.StartedAt = &at
	}
	return nil
}

func (s *memStore) MarkCompletedExecution(id uuid.UUID, at time.Time, result []byte) error {
	x := s.executions[id]
	x.Status = model.ExecutionCompleted
	x.CompletedAt = &at
	x.Result = result
	return nil
}

func (s *memStore) MarkFailed(id uuid.UUID, at time.Time, errMsg string) error {
	x := s.executions[id]
	x.Status = model.ExecutionFailed
	x.CompletedAt = &at
	x.LastError = errMsg
	return nil
}

// ---- ContactRepositoryInterface ----

func (s *memStore) GetContact(id uuid.UUID) (*model.Contact, error) {
	return s.contacts[id], nil
}

func (s *memStore) UpdateField(id uuid.UUID, field, value string) error {
	c := s.contacts[id]
	switch field {
	case "first_name":
		c.FirstName = value
	case "last_name":
		c.LastName = value
	case "email":
		c.Email = value
	case "phone":
		c.Phone = value
	default:
		if c.CustomFields == nil {
			c.CustomFields = map[string]string{}
		}
		c.CustomFields[field] = value
	}
	return nil
}

func (s *memStore) SetTags(id uuid.UUID, tags []string) error {
	s.contacts[id].Tags = tags
	return nil
}

// ---- ProjectRepositoryInterface ----

func (s *memStore) GetProject(id uuid.UUID) (*model.Project, error) {
	return s.projects[id], nil
}

func (s *memStore) GetContactID(projectID uuid.UUID) (uuid.UUID, error) {
	if err := s.err("GetContactID"); err != nil {
		return uuid.Nil, err
	}
	p, ok := s.projects[projectID]
	if !ok {
		return uuid.Nil, nil
	}
	return p.ContactID, nil
}

func (s *memStore) GetLatestOpenByContact(contactID uuid.UUID) (*model.Project, error) {
	var latest *model.Project
	for _, p := range s.projects {
		if p.ContactID != contactID || p.Stage == "completed" || p.Stage == "lost" {
			continue
		}
		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			latest = p
		}
	}
	return latest, nil
}

func (s *memStore) UpdateStage(id uuid.UUID, stage string) error {
	s.projects[id].Stage = stage
	return nil
}

func (s *memStore) UpdateProjectField(id uuid.UUID, field, value string) error {
	p := s.projects[id]
	switch field {
	case "name":
		p.Name = value
	case "stage":
		p.Stage = value
	default:
		return fmt.Errorf("project has no writable field %q", field)
	}
	return nil
}

// ---- ActivityRepositoryInterface ----

func (s *memStore) CreateTask(t *model.Task) error {
	if err := s.err("CreateTask"); err != nil {
		return err
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	s.tasks = append(s.tasks, t)
	return nil
}

func (s *memStore) CreateNotification(n *model.Notification) error {
	if err := s.err("CreateNotification"); err != nil {
		return err
	}
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	s.notifications = append(s.notifications, n)
	return nil
}

func (s *memStore) GetUser(id uuid.UUID) (*model.InternalUser, error) {
	return s.users[id], nil
}

// Adapter views expose the memStore under each repository interface
// with the method names the interfaces expect.

type campaignView struct{ *memStore }

type enrollmentView struct{ *memStore }

func (v enrollmentView) Create(e *model.Enrollment) error          { return v.CreateEnrollment(e) }
func (v enrollmentView) GetByID(id uuid.UUID) (*model.Enrollment, error) { return v.GetEnrollment(id) }

type executionView struct{ *memStore }

func (v executionView) Create(x *model.StepExecution) error { return v.CreateExecution(x) }
func (v executionView) GetByID(id uuid.UUID) (*model.StepExecution, error) {
	return v.GetExecution(id)
}
func (v executionView) MarkCompleted(id uuid.UUID, at time.Time, result []byte) error {
	return v.MarkCompletedExecution(id, at, result)
}

type contactView struct{ *memStore }

func (v contactView) GetByID(id uuid.UUID) (*model.Contact, error) { return v.GetContact(id) }

type projectView struct{ *memStore }

func (v projectView) GetByID(id uuid.UUID) (*model.Project, error) { return v.GetProject(id) }
func (v projectView) UpdateField(id uuid.UUID, field, value string) error {
	return v.UpdateProjectField(id, field, value)
}

type activityView struct{ *memStore }

// ---- fake senders ----

type fakeEmailSender struct {
	configured bool
	fail       error
	sent       []string // recipients
}

func (f *fakeEmailSender) IsConfigured() bool { return f.configured }
func (f *fakeEmailSender) SendEmail(ctx context.Context, to, subject, html string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.sent = append(f.sent, to)
	return "email-" + fmt.Sprint(len(f.sent)), nil
}

type fakeSMSSender struct {
	configured bool
	fail       error
	sent       []string
}

func (f *fakeSMSSender) IsConfigured() bool { return f.configured }
func (f *fakeSMSSender) SendSMS(ctx context.Context, to, body string) (string, error) {
	if f.fail != nil {
		return "", f.fail
	}
	f.sent = append(f.sent, body)
	return "sms-" + fmt.Sprint(len(f.sent)), nil
}

type fakeWebhookCaller struct {
	status int
	err    error

	calls       int
	lastMethod  string
	lastURL     string
	lastPayload []byte
}

func (f *fakeWebhookCaller) Call(ctx context.Context, method, url string, headers map[string]string, payload []byte) (int, error) {
	f.calls++
	f.lastMethod = method
	f.lastURL = url
	f.lastPayload = payload
	return f.status, f.err
}

// buildHarness wires an engine over a memStore with fake providers.
func buildHarness(store *memStore, email *fakeEmailSender, sms *fakeSMSSender, webhook *fakeWebhookCaller) *Engine {
	if email == nil {
		email = &fakeEmailSender{configured: true}
	}
	if sms == nil {
		sms = &fakeSMSSender{configured: true}
	}
	if webhook == nil {
		webhook = &fakeWebhookCaller{status: 200}
	}

	events := NewEventQueue(8)
	executor := &Executor{
		Contacts:    contactView{store},
		Projects:    projectView{store},
		Enrollments: enrollmentView{store},
		Activity:    activityView{store},
		Email:       email,
		SMS:         sms,
		Webhook:     webhook,
		Events:      events,
	}
	scheduler := &Scheduler{
		Campaigns:   campaignView{store},
		Enrollments: enrollmentView{store},
		Executions:  executionView{store},
	}
	manager := &EnrollmentManager{
		Campaigns:   campaignView{store},
		Enrollments: enrollmentView{store},
		Projects:    projectView{store},
		Executions:  executionView{store},
	}
	dispatcher := &TriggerDispatcher{
		Campaigns:   campaignView{store},
		Enrollments: enrollmentView{store},
		Projects:    projectView{store},
		Manager:     manager,
	}
	return &Engine{
		Campaigns:   campaignView{store},
		Enrollments: enrollmentView{store},
		Executions:  executionView{store},
		Contacts:    contactView{store},
		Executor:    executor,
		Scheduler:   scheduler,
		Dispatcher:  dispatcher,
		Events:      events,
		PollLimit:   100,
	}
}
