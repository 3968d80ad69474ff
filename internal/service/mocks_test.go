package service_test

import (
	"context"
	"sort"
	"time"

	"github.com/nammaooru/civic-reports/internal/domain"
)

// ---------- Mocks ----------

type mockUserRepo struct {
	nextID   int64
	byEmail  map[string]*domain.User
	findErr  error
	verified map[int64]bool
}

func newMockUserRepo() *mockUserRepo {
	return &mockUserRepo{
		nextID:   1,
		byEmail:  make(map[string]*domain.User),
		verified: make(map[int64]bool),
	}
}

func (m *mockUserRepo) add(email string, role domain.Role, emailVerified bool) *domain.User {
	u := &domain.User{
		ID:            m.nextID,
		Email:         email,
		FirstName:     "Test",
		LastName:      "User",
		Role:          role,
		EmailVerified: emailVerified,
		Active:        true,
	}
	m.nextID++
	m.byEmail[email] = u
	return u
}

func (m *mockUserRepo) Create(_ context.Context, req *domain.RegisterRequest, passwordHash string) (*domain.User, error) {
	u := &domain.User{
		ID:           m.nextID,
		Email:        req.Email,
		PasswordHash: passwordHash,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Role:         domain.RoleCitizen,
		Active:       true,
	}
	m.nextID++
	m.byEmail[req.Email] = u
	return u, nil
}

func (m *mockUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.byEmail[email], nil
}

func (m *mockUserRepo) FindByID(_ context.Context, id int64) (*domain.User, error) {
	for _, u := range m.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, nil
}

func (m *mockUserRepo) MarkVerified(_ context.Context, userID int64) error {
	m.verified[userID] = true
	for _, u := range m.byEmail {
		if u.ID == userID {
			u.EmailVerified = true
		}
	}
	return nil
}

func (m *mockUserRepo) UpdateRole(_ context.Context, userID int64, role domain.Role) error {
	for _, u := range m.byEmail {
		if u.ID == userID {
			u.Role = role
		}
	}
	return nil
}

type mockOtpRepo struct {
	nextID     int64
	challenges []*domain.OtpChallenge
	deleteCh   chan int64 // notified with the count of each DeleteExpired sweep
}

func newMockOtpRepo() *mockOtpRepo {
	return &mockOtpRepo{nextID: 1}
}

func (m *mockOtpRepo) InvalidateUnused(_ context.Context, email string) error {
	now := time.Now()
	for _, c := range m.challenges {
		if c.Email == email && c.UsedAt == nil {
			t := now
			c.UsedAt = &t
		}
	}
	return nil
}

func (m *mockOtpRepo) Create(_ context.Context, email, codeHash string, userID *int64, expiresAt time.Time) (*domain.OtpChallenge, error) {
	c := &domain.OtpChallenge{
		ID:        m.nextID,
		Email:     email,
		CodeHash:  codeHash,
		UserID:    userID,
		CreatedAt: time.Now(),
		ExpiresAt: expiresAt,
	}
	m.nextID++
	m.challenges = append(m.challenges, c)
	return c, nil
}

func (m *mockOtpRepo) FindLatestUnused(_ context.Context, email string) (*domain.OtpChallenge, error) {
	var live []*domain.OtpChallenge
	for _, c := range m.challenges {
		if c.Email == email && c.UsedAt == nil {
			live = append(live, c)
		}
	}
	if len(live) == 0 {
		return nil, nil
	}
	sort.Slice(live, func(i, j int) bool { return live[i].CreatedAt.After(live[j].CreatedAt) })
	cp := *live[0]
	return &cp, nil
}

func (m *mockOtpRepo) Consume(_ context.Context, id int64) (bool, error) {
	for _, c := range m.challenges {
		if c.ID == id && c.UsedAt == nil {
			now := time.Now()
			c.UsedAt = &now
			return true, nil
		}
	}
	return false, nil
}

func (m *mockOtpRepo) DeleteExpired(_ context.Context) (int64, error) {
	now := time.Now()
	var kept []*domain.OtpChallenge
	var removed int64
	for _, c := range m.challenges {
		if c.ExpiresAt.Before(now) {
			removed++
			continue
		}
		kept = append(kept, c)
	}
	m.challenges = kept
	if m.deleteCh != nil {
		select {
		case m.deleteCh <- removed:
		default:
		}
	}
	return removed, nil
}

// expireAll backdates every challenge so Verify sees them as stale.
func (m *mockOtpRepo) expireAll() {
	for _, c := range m.challenges {
		c.ExpiresAt = time.Now().Add(-time.Minute)
	}
}

type enqueuedTask struct {
	recipientEmail string
	recipientName  string
	subject        string
	body           string
}

type mockOutboxRepo struct {
	nextID     int64
	enqueued   []enqueuedTask
	enqueueErr error
}

func newMockOutboxRepo() *mockOutboxRepo {
	return &mockOutboxRepo{nextID: 1}
}

func (m *mockOutboxRepo) Enqueue(_ context.Context, recipientEmail, recipientName, subject, body string) (int64, error) {
	if m.enqueueErr != nil {
		return 0, m.enqueueErr
	}
	m.enqueued = append(m.enqueued, enqueuedTask{recipientEmail, recipientName, subject, body})
	id := m.nextID
	m.nextID++
	return id, nil
}

func (m *mockOutboxRepo) ClaimDue(_ context.Context, _ int) ([]domain.NotificationTask, error) {
	return nil, nil
}
func (m *mockOutboxRepo) MarkSent(_ context.Context, _ int64) error                      { return nil }
func (m *mockOutboxRepo) MarkRetry(_ context.Context, _ int64, _ int, _ time.Time) error { return nil }
func (m *mockOutboxRepo) MarkFailed(_ context.Context, _ int64, _ int) error             { return nil }
func (m *mockOutboxRepo) Release(_ context.Context, _ []int64) error                     { return nil }
func (m *mockOutboxRepo) RecoverStale(_ context.Context, _ time.Duration) (int64, error) { return 0, nil }
func (m *mockOutboxRepo) GetByID(_ context.Context, _ int64) (*domain.NotificationTask, error) {
	return nil, nil
}

type mockReportRepo struct {
	nextID  int64
	reports map[int64]*domain.Report
}

func newMockReportRepo() *mockReportRepo {
	return &mockReportRepo{nextID: 1, reports: make(map[int64]*domain.Report)}
}

func (m *mockReportRepo) add(createdBy int64, status domain.ReportStatus) *domain.Report {
	rep := &domain.Report{
		ID:              m.nextID,
		Title:           "Broken street light",
		Description:     "Light out near the bus stop",
		Category:        "infrastructure",
		Status:          status,
		Priority:        domain.DefaultPriority,
		CreatedByUserID: createdBy,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	m.nextID++
	m.reports[rep.ID] = rep
	return rep
}

func (m *mockReportRepo) Create(_ context.Context, userID int64, req *domain.CreateReportRequest) (*domain.Report, error) {
	rep := &domain.Report{
		ID:              m.nextID,
		Title:           req.Title,
		Description:     req.Description,
		Category:        req.Category,
		LocationAddress: req.LocationAddress,
		Status:          domain.StatusSubmitted,
		Priority:        req.Priority,
		CreatedByUserID: userID,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	m.nextID++
	m.reports[rep.ID] = rep
	return rep, nil
}

func (m *mockReportRepo) GetByID(_ context.Context, id int64) (*domain.Report, error) {
	rep, ok := m.reports[id]
	if !ok {
		return nil, nil
	}
	cp := *rep
	return &cp, nil
}

func (m *mockReportRepo) List(_ context.Context, filter domain.ReportFilter) ([]domain.Report, int64, error) {
	var out []domain.Report
	for _, rep := range m.reports {
		if filter.Status != nil && rep.Status != *filter.Status {
			continue
		}
		if filter.Category != "" && rep.Category != filter.Category {
			continue
		}
		out = append(out, *rep)
	}
	return out, int64(len(out)), nil
}

func (m *mockReportRepo) UpdateStatus(_ context.Context, id int64, status domain.ReportStatus, actorID int64, setResolvedAt bool) (*domain.Report, error) {
	rep, ok := m.reports[id]
	if !ok || rep.Status == domain.StatusClosed {
		return nil, nil
	}
	rep.Status = status
	rep.UpdatedAt = time.Now()
	rep.UpdatedByUserID = &actorID
	if setResolvedAt && rep.ResolvedAt == nil {
		now := time.Now()
		rep.ResolvedAt = &now
	}
	cp := *rep
	return &cp, nil
}
