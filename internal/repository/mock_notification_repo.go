package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/bidconnect/notification-service/internal/domain"
)

// MockNotificationRepository is a hand-written, in-memory implementation of
// NotificationRepository used in unit tests. No mock-generation library needed.
type MockNotificationRepository struct {
	mu            sync.RWMutex
	nextID        int64
	notifications map[int64]*domain.Notification

	// Optional error overrides, set in tests to simulate failure paths.
	CreateErr error
	MarkErr   error
	ListErr   error

	// CreateErrFor fails Create only for the given recipient email.
	CreateErrFor map[string]error
}

func NewMockNotificationRepository() *MockNotificationRepository {
	return &MockNotificationRepository{
		notifications: make(map[int64]*domain.Notification),
	}
}

func (m *MockNotificationRepository) Create(_ context.Context, n *domain.Notification) error {
	if m.CreateErr != nil {
		return m.CreateErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.CreateErrFor[n.Email]; err != nil {
		return err
	}
	m.nextID++
	n.ID = m.nextID
	n.Status = domain.StatusPending
	n.SentAt = nil
	n.CreatedAt = time.Now().UTC()
	clone := *n
	m.notifications[n.ID] = &clone
	return nil
}

func (m *MockNotificationRepository) MarkSent(_ context.Context, id int64, sentAt time.Time) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok && n.Status == domain.StatusPending {
		n.Status = domain.StatusSent
		n.SentAt = &sentAt
	}
	return nil
}

func (m *MockNotificationRepository) MarkFailed(_ context.Context, id int64) error {
	if m.MarkErr != nil {
		return m.MarkErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if n, ok := m.notifications[id]; ok && n.Status == domain.StatusPending {
		n.Status = domain.StatusFailed
		n.SentAt = nil
	}
	return nil
}

func (m *MockNotificationRepository) GetByID(_ context.Context, id int64) (*domain.Notification, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n, ok := m.notifications[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	clone := *n
	return &clone, nil
}

func (m *MockNotificationRepository) List(_ context.Context, f domain.ListFilter) ([]*domain.Notification, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		if f.UserID != nil && n.UserID != *f.UserID {
			continue
		}
		if f.Status != nil && n.Status != *f.Status {
			continue
		}
		if f.EventType != nil && n.EventType != *f.EventType {
			continue
		}
		clone := *n
		result = append(result, &clone)
	}
	// Newest first, matching the SQL ORDER BY.
	sort.Slice(result, func(i, j int) bool { return result[i].ID > result[j].ID })
	return result, nil
}

func (m *MockNotificationRepository) CountByStatus(_ context.Context) (map[domain.Status]int64, error) {
	if m.ListErr != nil {
		return nil, m.ListErr
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	counts := make(map[domain.Status]int64)
	for _, n := range m.notifications {
		counts[n.Status]++
	}
	return counts, nil
}

// All returns every stored record, oldest first. Test helper.
func (m *MockNotificationRepository) All() []*domain.Notification {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]*domain.Notification, 0, len(m.notifications))
	for _, n := range m.notifications {
		clone := *n
		result = append(result, &clone)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result
}

var _ NotificationRepository = (*MockNotificationRepository)(nil)
