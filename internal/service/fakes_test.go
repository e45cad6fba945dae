package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sakif/coursemarket/internal/apperror"
	"github.com/sakif/coursemarket/internal/mail"
	"github.com/sakif/coursemarket/internal/model"
	"github.com/sakif/coursemarket/internal/payment"
	"github.com/sakif/coursemarket/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// memStore implements every repository interface the services use. It
// mirrors the sqlite constraints that matter to service logic: unique
// email, one purchase per (student, course), and cascade on course delete.

var (
	_ repository.AccountRepository        = (*memStore)(nil)
	_ repository.CourseRepository         = (*memStore)(nil)
	_ repository.ContentRepository        = (*memStore)(nil)
	_ repository.PurchaseRepository       = (*memStore)(nil)
	_ repository.PendingRegistrationStore = (*memStore)(nil)
)

type memStore struct {
	mu     sync.Mutex
	nextID int
	now    time.Time

	accounts  map[string]*model.Account
	students  map[string]*model.StudentProfile // keyed by account id
	teachers  map[string]*model.TeacherProfile // keyed by account id
	courses   map[string]*model.Course
	contents  map[string]*model.CourseContent
	purchases map[string]*model.Purchase
	pending   map[string]*model.PendingRegistration

	// failPurchaseList makes purchase lookups used by notifications fail.
	failPurchaseList error
	// skipFindPurchase hides existing purchases from FindPurchase, which
	// simulates a concurrent insert slipping past the idempotency check.
	skipFindPurchase bool
}

func newMemStore() *memStore {
	return &memStore{
		now:       time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC),
		accounts:  map[string]*model.Account{},
		students:  map[string]*model.StudentProfile{},
		teachers:  map[string]*model.TeacherProfile{},
		courses:   map[string]*model.Course{},
		contents:  map[string]*model.CourseContent{},
		purchases: map[string]*model.Purchase{},
		pending:   map[string]*model.PendingRegistration{},
	}
}

func (m *memStore) id(prefix string) string {
	m.nextID++
	return fmt.Sprintf("%s-%d", prefix, m.nextID)
}

// tick returns a strictly increasing timestamp so ordering by creation
// time is deterministic.
func (m *memStore) tick() time.Time {
	m.now = m.now.Add(time.Second)
	return m.now
}

// --- accounts ---

func (m *memStore) CreateAccount(_ context.Context, a *model.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if a.IsStudent == a.IsTeacher {
		return apperror.InvalidState("account must have exactly one role")
	}
	for _, existing := range m.accounts {
		if strings.EqualFold(existing.Email, a.Email) {
			return apperror.Conflict("email already registered")
		}
	}

	a.ID = m.id("acc")
	a.CreatedAt = m.tick()
	stored := *a
	m.accounts[a.ID] = &stored

	if a.IsTeacher {
		m.teachers[a.ID] = &model.TeacherProfile{ID: m.id("tch"), AccountID: a.ID, Email: a.Email, Name: a.Name}
	} else {
		m.students[a.ID] = &model.StudentProfile{ID: m.id("stu"), AccountID: a.ID, Email: a.Email, Name: a.Name}
	}
	return nil
}

func (m *memStore) GetAccountByID(_ context.Context, id string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[id]
	if !ok {
		return nil, apperror.NotFound("account", id)
	}
	out := *a
	return &out, nil
}

func (m *memStore) GetAccountByEmail(_ context.Context, email string) (*model.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.accounts {
		if strings.EqualFold(a.Email, email) {
			out := *a
			return &out, nil
		}
	}
	return nil, apperror.NotFound("account", email)
}

func (m *memStore) EmailExists(ctx context.Context, email string) (bool, error) {
	_, err := m.GetAccountByEmail(ctx, email)
	return err == nil, nil
}

func (m *memStore) GetStudentProfile(_ context.Context, accountID string) (*model.StudentProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.students[accountID]
	if !ok {
		return nil, apperror.NotFound("student profile", accountID)
	}
	out := *p
	return &out, nil
}

func (m *memStore) GetTeacherProfile(_ context.Context, accountID string) (*model.TeacherProfile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.teachers[accountID]
	if !ok {
		return nil, apperror.NotFound("teacher profile", accountID)
	}
	out := *p
	return &out, nil
}

// --- courses ---

func (m *memStore) CreateCourse(_ context.Context, c *model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id("crs")
	c.CreatedAt = m.tick()
	c.UpdatedAt = c.CreatedAt
	stored := *c
	m.courses[c.ID] = &stored
	return nil
}

func (m *memStore) GetCourse(_ context.Context, id string) (*model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return nil, apperror.NotFound("course", id)
	}
	out := *c
	return &out, nil
}

func (m *memStore) ListCourses(_ context.Context, f repository.CourseFilter) ([]model.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Course{}
	for _, c := range m.courses {
		if f.TeacherID != "" && c.TeacherID != f.TeacherID {
			continue
		}
		if f.TitleSearch != "" && !strings.Contains(strings.ToLower(c.Title), strings.ToLower(f.TitleSearch)) {
			continue
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateCourse(_ context.Context, c *model.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.courses[c.ID]
	if !ok {
		return apperror.NotFound("course", c.ID)
	}
	c.TeacherID = existing.TeacherID
	c.UpdatedAt = m.tick()
	stored := *c
	m.courses[c.ID] = &stored
	return nil
}

func (m *memStore) DeleteCourse(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.courses[id]; !ok {
		return apperror.NotFound("course", id)
	}
	delete(m.courses, id)
	for cid, c := range m.contents {
		if c.CourseID == id {
			delete(m.contents, cid)
		}
	}
	for pid, p := range m.purchases {
		if p.CourseID == id {
			delete(m.purchases, pid)
		}
	}
	return nil
}

// --- contents ---

func (m *memStore) CreateContent(_ context.Context, c *model.CourseContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c.ID = m.id("cnt")
	c.CreatedAt = m.tick()
	stored := *c
	m.contents[c.ID] = &stored
	return nil
}

func (m *memStore) GetContent(_ context.Context, courseID, id string) (*model.CourseContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contents[id]
	if !ok || c.CourseID != courseID {
		return nil, apperror.NotFound("course content", id)
	}
	out := *c
	return &out, nil
}

func (m *memStore) ListContents(_ context.Context, courseID string) ([]model.CourseContent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.CourseContent{}
	for _, c := range m.contents {
		if c.CourseID == courseID {
			out = append(out, *c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) UpdateContent(_ context.Context, c *model.CourseContent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.contents[c.ID]
	if !ok || existing.CourseID != c.CourseID {
		return apperror.NotFound("course content", c.ID)
	}
	stored := *c
	m.contents[c.ID] = &stored
	return nil
}

func (m *memStore) DeleteContent(_ context.Context, courseID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.contents[id]
	if !ok || c.CourseID != courseID {
		return apperror.NotFound("course content", id)
	}
	delete(m.contents, id)
	return nil
}

// --- purchases ---

func (m *memStore) CreatePurchase(_ context.Context, p *model.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.purchases {
		if existing.StudentID == p.StudentID && existing.CourseID == p.CourseID {
			return apperror.Conflict("purchase already exists")
		}
	}
	if p.ID == "" {
		p.ID = m.id("pur")
	}
	p.CreatedAt = m.tick()
	stored := *p
	m.purchases[p.ID] = &stored
	return nil
}

func (m *memStore) FindPurchase(_ context.Context, studentID, courseID string) (*model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.skipFindPurchase {
		for _, p := range m.purchases {
			if p.StudentID == studentID && p.CourseID == courseID {
				out := *p
				return &out, nil
			}
		}
	}
	return nil, apperror.NotFound("purchase", courseID)
}

func (m *memStore) ListPurchasesByStudent(_ context.Context, studentID string) ([]model.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []model.Purchase{}
	for _, p := range m.purchases {
		if p.StudentID == studentID {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memStore) ConfirmPurchase(_ context.Context, purchaseID, txID string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.purchases[purchaseID]
	if !ok || p.TransactionID != nil {
		return false, nil
	}
	p.TransactionID = &txID
	p.PurchasedAt = &at
	return true, nil
}

func (m *memStore) ConfirmPendingForCourse(_ context.Context, courseID, txID string, at time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for _, p := range m.purchases {
		if p.CourseID == courseID && p.TransactionID == nil {
			tx := txID
			stamp := at
			p.TransactionID = &tx
			p.PurchasedAt = &stamp
			n++
		}
	}
	return n, nil
}

func (m *memStore) studentByProfileID(id string) *model.StudentProfile {
	for _, s := range m.students {
		if s.ID == id {
			return s
		}
	}
	return nil
}

func (m *memStore) StudentNamesForCourse(_ context.Context, courseID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := []string{}
	for _, p := range m.purchases {
		if p.CourseID == courseID {
			if s := m.studentByProfileID(p.StudentID); s != nil {
				names = append(names, s.Name)
			}
		}
	}
	sort.Strings(names)
	return names, nil
}

func (m *memStore) StudentEmailsForCourse(_ context.Context, courseID string) ([]string, error) {
	return m.studentEmails(func(p *model.Purchase) bool { return p.CourseID == courseID })
}

func (m *memStore) StudentEmailsForTeacher(_ context.Context, teacherID string) ([]string, error) {
	return m.studentEmails(func(p *model.Purchase) bool { return p.TeacherID == teacherID })
}

func (m *memStore) studentEmails(match func(*model.Purchase) bool) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failPurchaseList != nil {
		return nil, m.failPurchaseList
	}
	seen := map[string]bool{}
	emails := []string{}
	for _, p := range m.purchases {
		if !match(p) {
			continue
		}
		s := m.studentByProfileID(p.StudentID)
		if s == nil || seen[s.Email] {
			continue
		}
		seen[s.Email] = true
		emails = append(emails, s.Email)
	}
	sort.Strings(emails)
	return emails, nil
}

func (m *memStore) purchaseCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.purchases)
}

// --- pending registrations ---

func (m *memStore) SavePending(_ context.Context, p *model.PendingRegistration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := *p
	m.pending[p.SessionID] = &stored
	return nil
}

func (m *memStore) GetPending(_ context.Context, sessionID string) (*model.PendingRegistration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.pending[sessionID]
	if !ok {
		return nil, apperror.NotFound("pending registration", sessionID)
	}
	out := *p
	return &out, nil
}

func (m *memStore) DeletePending(_ context.Context, sessionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, sessionID)
	return nil
}

// =========================================================================
// FAKE MAILER
// =========================================================================

type fakeMailer struct {
	mu   sync.Mutex
	sent []mail.Message
	err  error
}

func (f *fakeMailer) Send(_ context.Context, msg mail.Message) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, msg)
	return nil
}

func (f *fakeMailer) messages() []mail.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]mail.Message(nil), f.sent...)
}

// =========================================================================
// FAKE PAYMENT PROVIDER
// =========================================================================

type fakeProvider struct {
	mu       sync.Mutex
	sessions map[string]*payment.Session
	requests []payment.SessionRequest
	next     int

	createErr  error
	findErr    error
	executeErr error
	// dropPurchaseID strips the purchase id from stored metadata to
	// exercise the course-wide confirmation fallback.
	dropPurchaseID bool
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{sessions: map[string]*payment.Session{}}
}

func (f *fakeProvider) CreateSession(_ context.Context, req payment.SessionRequest) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, req)
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.next++
	id := fmt.Sprintf("PAY-%d", f.next)
	meta := req.Metadata
	if f.dropPurchaseID {
		meta.PurchaseID = ""
	}
	s := &payment.Session{
		ID:          id,
		Status:      payment.StatusCreated,
		ApprovalURL: "https://provider.test/approve?token=" + id,
		Metadata:    meta,
	}
	f.sessions[id] = s
	out := *s
	return &out, nil
}

func (f *fakeProvider) FindSession(_ context.Context, id string) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.findErr != nil {
		return nil, f.findErr
	}
	s, ok := f.sessions[id]
	if !ok {
		return nil, payment.ErrSessionNotFound
	}
	out := *s
	return &out, nil
}

func (f *fakeProvider) Execute(_ context.Context, session *payment.Session, payerID string) (*payment.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.executeErr != nil {
		return nil, f.executeErr
	}
	s := f.sessions[session.ID]
	if s.Status != payment.StatusCompleted {
		s.Status = payment.StatusCompleted
		s.PayerID = payerID
		s.TransactionID = "TX-" + session.ID
	}
	out := *s
	return &out, nil
}

func (f *fakeProvider) createCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

// =========================================================================
// HELPERS
// =========================================================================

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
