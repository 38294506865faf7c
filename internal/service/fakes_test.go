package service_test

import (
	"context"
	"errors"
	"sync"

	"github.com/bidconnect/notification-service/internal/domain"
	"github.com/bidconnect/notification-service/internal/provider"
)

// fakeRenderer returns a fixed body built from the title variable.
type fakeRenderer struct {
	err    error
	panics bool
	vars   []map[string]string
}

func (r *fakeRenderer) Render(templateID string, vars map[string]string) (string, error) {
	if r.panics {
		panic("renderer exploded")
	}
	if r.err != nil {
		return "", r.err
	}
	r.vars = append(r.vars, vars)
	return "<h1>" + vars["title"] + "</h1>" + templateID, nil
}

// fakeMailer records every message and fails for addresses in failFor.
type fakeMailer struct {
	mu      sync.Mutex
	failFor map[string]bool
	block   bool
	sent    []provider.Message
}

func (m *fakeMailer) Name() string { return "fake" }

func (m *fakeMailer) Send(ctx context.Context, msg provider.Message) error {
	if m.block {
		<-ctx.Done()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[msg.To] {
		return errors.New("mailbox unavailable")
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *fakeMailer) sentTo() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.sent))
	for i, msg := range m.sent {
		out[i] = msg.To
	}
	return out
}

type nopLimiter struct{}

func (nopLimiter) Wait(context.Context) error { return nil }

// memGuard is an in-memory idempotency guard.
type memGuard struct {
	mu        sync.Mutex
	claims    map[string]bool
	err       error
	confirmed []string
	released  []string
}

func newMemGuard() *memGuard { return &memGuard{claims: map[string]bool{}} }

func (g *memGuard) Claim(_ context.Context, key string) (bool, error) {
	if g.err != nil {
		return false, g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.claims[key] {
		return false, nil
	}
	g.claims[key] = true
	return true, nil
}

func (g *memGuard) Confirm(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.confirmed = append(g.confirmed, key)
	return nil
}

func (g *memGuard) Release(_ context.Context, key string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.claims, key)
	g.released = append(g.released, key)
	return nil
}

func submissionReceived(recipients ...domain.Recipient) domain.NotificationEvent {
	return domain.NotificationEvent{
		EventID:    "7d0c5d3e-2f7a-4c3e-9a51-0f0b7c1e9d11",
		EventType:  domain.EventSubmissionReceived,
		Recipients: recipients,
		Data:       map[string]string{"title": "T", "message": "M"},
	}
}
