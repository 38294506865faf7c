package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/bidconnect/notification-service/internal/domain"
	"github.com/bidconnect/notification-service/internal/repository"
)

// NotificationService backs the administrative API. Reads go straight to the
// repository; a manual send reuses the Processor's delivery path.
type NotificationService struct {
	repo      repository.NotificationRepository
	processor *Processor
	logger    *zap.Logger
}

func NewNotificationService(
	repo repository.NotificationRepository,
	processor *Processor,
	logger *zap.Logger,
) *NotificationService {
	return &NotificationService{repo: repo, processor: processor, logger: logger}
}

func (s *NotificationService) GetByID(ctx context.Context, id int64) (*domain.Notification, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *NotificationService) List(ctx context.Context) ([]*domain.Notification, error) {
	return s.repo.List(ctx, domain.ListFilter{})
}

func (s *NotificationService) ListByUser(ctx context.Context, userID string) ([]*domain.Notification, error) {
	return s.repo.List(ctx, domain.ListFilter{UserID: &userID})
}

func (s *NotificationService) ListByStatus(ctx context.Context, status domain.Status) ([]*domain.Notification, error) {
	if !status.IsValid() {
		return nil, domain.ErrInvalidStatus
	}
	return s.repo.List(ctx, domain.ListFilter{Status: &status})
}

func (s *NotificationService) ListByEventType(ctx context.Context, eventType domain.EventType) ([]*domain.Notification, error) {
	if !eventType.IsValid() {
		return nil, domain.ErrInvalidEventType
	}
	return s.repo.List(ctx, domain.ListFilter{EventType: &eventType})
}

// Send validates req and delivers it synchronously to a single recipient.
//
// A validation failure returns *domain.ValidationError and creates no record.
// A transmit failure is not an error: the returned record is FAILED.
func (s *NotificationService) Send(ctx context.Context, req domain.SendRequest) (*domain.Notification, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	event := req.Event(time.Now().UTC())
	n, err := s.processor.DeliverOne(ctx, event, event.Recipients[0])
	if err != nil {
		return nil, fmt.Errorf("manual send: %w", err)
	}

	s.logger.Info("manual notification processed",
		zap.Int64("notification_id", n.ID),
		zap.String("user_id", n.UserID),
		zap.String("status", string(n.Status)),
	)
	return n, nil
}

// Stats aggregates record counts by status.
func (s *NotificationService) Stats(ctx context.Context) (domain.Stats, error) {
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return domain.Stats{}, fmt.Errorf("count by status: %w", err)
	}
	return domain.NewStats(counts), nil
}
