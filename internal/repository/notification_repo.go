package repository

import (
	"context"
	"time"

	"github.com/bidconnect/notification-service/internal/domain"
)

// NotificationRepository defines all persistence operations for delivery records.
// The pgx implementation is in pg_notification_repo.go.
// Tests use a hand-written mock (mock_notification_repo.go).
//
// Create assigns ID and CreatedAt and always stores status PENDING.
// MarkSent and MarkFailed only touch records that are still PENDING, so a
// record that reached SENT or FAILED is never mutated again.
type NotificationRepository interface {
	Create(ctx context.Context, n *domain.Notification) error
	MarkSent(ctx context.Context, id int64, sentAt time.Time) error
	MarkFailed(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*domain.Notification, error)
	List(ctx context.Context, filter domain.ListFilter) ([]*domain.Notification, error)
	CountByStatus(ctx context.Context) (map[domain.Status]int64, error)
}
