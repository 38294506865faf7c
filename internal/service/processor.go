package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/bidconnect/notification-service/internal/domain"
	"github.com/bidconnect/notification-service/internal/idempotency"
	"github.com/bidconnect/notification-service/internal/provider"
	"github.com/bidconnect/notification-service/internal/repository"
	"github.com/bidconnect/notification-service/internal/template"
)

// MetricHooks carries the metric callbacks injected by main.
// Nil fields are no-ops.
type MetricHooks struct {
	OnSent   func(eventType domain.EventType, latency time.Duration)
	OnFailed func(eventType domain.EventType)
}

// Limiter throttles outbound transmissions.
type Limiter interface {
	Wait(ctx context.Context) error
}

// Outcome is the result of delivering one event to one recipient.
// A skipped duplicate carries ErrDuplicateDelivery. Record is nil when the
// record could not be created, and set alongside Err when only the final
// status write failed.
type Outcome struct {
	Recipient domain.Recipient
	Record    *domain.Notification
	Skipped   bool
	Err       error
}

// Processor runs the per-recipient delivery state machine shared by the
// consumer and the manual send endpoint.
type Processor struct {
	repo     repository.NotificationRepository
	renderer template.Renderer
	mailer   provider.Mailer
	limiter  Limiter
	guard    idempotency.Guard
	timeout  time.Duration
	logger   *zap.Logger
	onSent   func(domain.EventType, time.Duration)
	onFailed func(domain.EventType)
	now      func() time.Time
}

// NewProcessor constructs a Processor. guard may be nil, in which case every
// delivery is attempted.
func NewProcessor(
	repo repository.NotificationRepository,
	renderer template.Renderer,
	mailer provider.Mailer,
	limiter Limiter,
	guard idempotency.Guard,
	transmitTimeout time.Duration,
	logger *zap.Logger,
	hooks MetricHooks,
) *Processor {
	if guard == nil {
		guard = idempotency.NopGuard{}
	}
	if hooks.OnSent == nil {
		hooks.OnSent = func(domain.EventType, time.Duration) {}
	}
	if hooks.OnFailed == nil {
		hooks.OnFailed = func(domain.EventType) {}
	}
	return &Processor{
		repo: repo, renderer: renderer, mailer: mailer, limiter: limiter,
		guard: guard, timeout: transmitTimeout, logger: logger,
		onSent: hooks.OnSent, onFailed: hooks.OnFailed,
		now: time.Now,
	}
}

// ProcessEvent delivers event to each recipient in order. A failure for one
// recipient never stops delivery to the next.
func (p *Processor) ProcessEvent(ctx context.Context, event domain.NotificationEvent) []Outcome {
	outcomes := make([]Outcome, 0, len(event.Recipients))
	for i, r := range event.Recipients {
		outcomes = append(outcomes, p.processRecipient(ctx, event, i, r))
	}
	return outcomes
}

func (p *Processor) processRecipient(ctx context.Context, event domain.NotificationEvent, position int, r domain.Recipient) Outcome {
	if event.EventID == "" {
		n, err := p.DeliverOne(ctx, event, r)
		return Outcome{Recipient: r, Record: n, Err: err}
	}

	log := p.logger.With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.String("user_id", r.UserID),
		zap.Int("position", position),
	)
	key := idempotency.Key(event.EventID, position, r.Email)

	claimed := false
	ok, err := p.guard.Claim(ctx, key)
	switch {
	case err != nil:
		log.Warn("idempotency guard unavailable, delivering anyway", zap.Error(err))
	case !ok:
		log.Info("duplicate delivery skipped")
		return Outcome{Recipient: r, Skipped: true, Err: domain.ErrDuplicateDelivery}
	default:
		claimed = true
	}

	n, err := p.DeliverOne(ctx, event, r)
	if claimed {
		// No record means nothing was attempted; let a redelivery retry.
		guardCtx := context.WithoutCancel(ctx)
		if n == nil {
			if rerr := p.guard.Release(guardCtx, key); rerr != nil {
				log.Warn("failed to release delivery claim", zap.Error(rerr))
			}
		} else if cerr := p.guard.Confirm(guardCtx, key); cerr != nil {
			log.Warn("failed to confirm delivery claim", zap.Error(cerr))
		}
	}
	return Outcome{Recipient: r, Record: n, Err: err}
}

// DeliverOne records, renders and transmits a single delivery.
//
// The PENDING record is written before any transmission is attempted. A
// render or transmit failure ends in a FAILED record and a nil error; an
// error is returned only when the record store itself fails. In that case
// the returned record is nil if it was never created, or holds the last
// persisted state if only the final status write failed.
func (p *Processor) DeliverOne(ctx context.Context, event domain.NotificationEvent, r domain.Recipient) (*domain.Notification, error) {
	start := p.now()
	log := p.logger.With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
		zap.String("user_id", r.UserID),
	)

	n := &domain.Notification{
		UserID:    r.UserID,
		Email:     r.Email,
		EventType: event.EventType,
		Subject:   event.Subject(),
		Content:   event.Content(),
		Status:    domain.StatusPending,
	}
	if event.EventID != "" {
		id := event.EventID
		n.EventID = &id
	}

	// Status writes must land even if the caller goes away mid-delivery.
	storeCtx := context.WithoutCancel(ctx)

	if err := p.repo.Create(storeCtx, n); err != nil {
		log.Error("failed to persist notification", zap.Error(err))
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	log = log.With(zap.Int64("notification_id", n.ID))

	if err := p.transmit(ctx, n, templateVars(event, r)); err != nil {
		log.Warn("delivery failed", zap.Error(err))
		p.onFailed(event.EventType)
		if err := p.repo.MarkFailed(storeCtx, n.ID); err != nil {
			log.Error("failed to mark as failed", zap.Error(err))
			return n, fmt.Errorf("mark failed: %w", err)
		}
		n.Status = domain.StatusFailed
		return n, nil
	}

	sentAt := p.now().UTC()
	if err := p.repo.MarkSent(storeCtx, n.ID, sentAt); err != nil {
		log.Error("failed to mark as sent", zap.Error(err))
		return n, fmt.Errorf("mark sent: %w", err)
	}
	n.Status = domain.StatusSent
	n.SentAt = &sentAt

	latency := sentAt.Sub(start)
	p.onSent(event.EventType, latency)
	log.Info("notification sent", zap.String("provider", p.mailer.Name()), zap.Duration("latency", latency))
	return n, nil
}

// transmit renders and sends n. Every failure, including a panic inside the
// renderer or mailer, comes back as an error.
func (p *Processor) transmit(ctx context.Context, n *domain.Notification, vars map[string]string) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("transmit panic: %v", rec)
		}
	}()

	if err := domain.ValidateEmail(n.Email); err != nil {
		return err
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	body, err := p.renderer.Render(n.EventType.TemplateName(), vars)
	if err != nil {
		return fmt.Errorf("render: %w", err)
	}

	if err := p.mailer.Send(ctx, provider.Message{
		To:       n.Email,
		Subject:  n.Subject,
		HTMLBody: body,
		TextBody: n.Content,
	}); err != nil {
		return fmt.Errorf("%w via %s: %w", domain.ErrTransmitRejected, p.mailer.Name(), err)
	}
	return nil
}

// templateVars builds the variable set for a recipient. Keys from the event
// data are applied last and win over the derived values.
func templateVars(event domain.NotificationEvent, r domain.Recipient) map[string]string {
	vars := map[string]string{
		"recipientName": localPart(r.Email),
		"title":         event.Data["title"],
		"message":       event.Data["message"],
		"eventType":     string(event.EventType),
	}
	for k, v := range event.Data {
		vars[k] = v
	}
	return vars
}

func localPart(email string) string {
	name, _, _ := strings.Cut(email, "@")
	return name
}
