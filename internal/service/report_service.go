package service

import (
	"context"
	"fmt"
	"time"

	"github.com/nammaooru/civic-reports/internal/domain"
	"github.com/nammaooru/civic-reports/internal/repo/postgres"
	"github.com/nammaooru/civic-reports/pkg/auth"
	"github.com/nammaooru/civic-reports/pkg/events"
	"github.com/nammaooru/civic-reports/pkg/logger"
)

type ReportService interface {
	Create(ctx context.Context, userID int64, req *domain.CreateReportRequest) (*domain.Report, error)
	Get(ctx context.Context, id int64) (*domain.Report, error)
	List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, int64, error)
	// Transition moves a report to newStatus on behalf of the actor and
	// queues exactly one notification to the report's author. Closed is
	// terminal; citizens, including the author, may never transition.
	Transition(ctx context.Context, reportID int64, newStatus string, actor *auth.Claims) (*domain.Report, error)
}

type reportService struct {
	reportRepo postgres.ReportRepository
	userRepo   postgres.UserRepository
	outboxRepo postgres.OutboxRepository
	publisher  events.Publisher
}

func NewReportService(
	reportRepo postgres.ReportRepository,
	userRepo postgres.UserRepository,
	outboxRepo postgres.OutboxRepository,
	publisher events.Publisher,
) ReportService {
	return &reportService{
		reportRepo: reportRepo,
		userRepo:   userRepo,
		outboxRepo: outboxRepo,
		publisher:  publisher,
	}
}

func (s *reportService) Create(ctx context.Context, userID int64, req *domain.CreateReportRequest) (*domain.Report, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	report, err := s.reportRepo.Create(ctx, userID, req)
	if err != nil {
		return nil, fmt.Errorf("failed to create report: %w", err)
	}

	if err := s.publisher.Publish(ctx, events.ReportCreated, events.ReportCreatedEvent{
		ReportID:  report.ID,
		Category:  report.Category,
		CreatedBy: report.CreatedByUserID,
		CreatedAt: report.CreatedAt,
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish report created event", "error", err, "report_id", report.ID)
	}

	return report, nil
}

func (s *reportService) Get(ctx context.Context, id int64) (*domain.Report, error) {
	report, err := s.reportRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	if report == nil {
		return nil, domain.ErrNotFound
	}
	return report, nil
}

func (s *reportService) List(ctx context.Context, filter domain.ReportFilter) ([]domain.Report, int64, error) {
	return s.reportRepo.List(ctx, filter)
}

func (s *reportService) Transition(ctx context.Context, reportID int64, newStatus string, actor *auth.Claims) (*domain.Report, error) {
	status, ok := domain.ParseReportStatus(newStatus)
	if !ok {
		return nil, fmt.Errorf("%w: %q", domain.ErrInvalidStatus, newStatus)
	}

	report, err := s.reportRepo.GetByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("failed to load report: %w", err)
	}
	if report == nil {
		return nil, domain.ErrNotFound
	}

	if !actor.Role.CanTransitionReports() {
		return nil, domain.ErrForbidden
	}
	if actor.Sub == report.CreatedByUserID {
		// The author never moves their own report, whatever their role.
		return nil, domain.ErrForbidden
	}

	if report.Status.Terminal() {
		return nil, domain.ErrAlreadyClosed
	}

	oldStatus := report.Status
	updated, err := s.reportRepo.UpdateStatus(ctx, reportID, status, actor.Sub, status == domain.StatusResolved)
	if err != nil {
		return nil, fmt.Errorf("failed to update report status: %w", err)
	}
	if updated == nil {
		// Someone closed it between our read and the guarded write.
		return nil, domain.ErrAlreadyClosed
	}

	s.queueStatusNotification(ctx, updated, oldStatus)

	if err := s.publisher.Publish(ctx, events.ReportStatusChanged, events.ReportStatusChangedEvent{
		ReportID:  updated.ID,
		OldStatus: string(oldStatus),
		NewStatus: string(updated.Status),
		ChangedBy: actor.Sub,
		ChangedAt: time.Now(),
	}); err != nil {
		logger.WarnContext(ctx, "Failed to publish status changed event", "error", err, "report_id", updated.ID)
	}

	return updated, nil
}

// queueStatusNotification enqueues one outbox task addressed to the report's
// author. A missing or email-less author is logged and skipped; it never
// fails the transition.
func (s *reportService) queueStatusNotification(ctx context.Context, report *domain.Report, oldStatus domain.ReportStatus) {
	author, err := s.userRepo.FindByID(ctx, report.CreatedByUserID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to load report author for notification",
			"error", err, "report_id", report.ID, "user_id", report.CreatedByUserID)
		return
	}
	if author == nil || author.Email == "" {
		logger.WarnContext(ctx, "Report author has no resolvable email; skipping notification",
			"report_id", report.ID, "user_id", report.CreatedByUserID)
		return
	}

	subject, body := renderStatusEmail(author.FirstName, report.ID, report.Title,
		oldStatus.DisplayText(), report.Status.DisplayText())

	taskID, err := s.outboxRepo.Enqueue(ctx, author.Email, author.FirstName, subject, body)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to enqueue status notification",
			"error", err, "report_id", report.ID, "recipient", author.Email)
		return
	}

	logger.InfoContext(ctx, "Queued status change notification",
		"report_id", report.ID, "task_id", taskID, "recipient", author.Email)
}
