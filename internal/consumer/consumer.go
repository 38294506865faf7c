package consumer

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/bidconnect/notification-service/internal/config"
	"github.com/bidconnect/notification-service/internal/domain"
	"github.com/bidconnect/notification-service/internal/metrics"
	"github.com/bidconnect/notification-service/internal/service"
)

//go:embed event.schema.json
var eventSchema string

// MessageReader is the slice of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Dispatcher hands a fetched message to a worker.
type Dispatcher interface {
	Submit(ctx context.Context, msg kafka.Message) error
}

// EventProcessor delivers a decoded event to its recipients.
type EventProcessor interface {
	ProcessEvent(ctx context.Context, event domain.NotificationEvent) []service.Outcome
}

// NewKafkaReader builds a consumer-group reader that starts from the earliest
// offset when the group has no committed position yet.
func NewKafkaReader(cfg *config.Config) *kafka.Reader {
	return kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.KafkaBrokers,
		GroupID:     cfg.KafkaGroupID,
		Topic:       cfg.KafkaTopic,
		StartOffset: kafka.FirstOffset,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
}

// Consumer pulls notification events from the transport and feeds them to
// the processor. No event, however broken, stops the loop.
type Consumer struct {
	reader     MessageReader
	proc       EventProcessor
	schema     *gojsonschema.Schema
	logger     *zap.Logger
	observe    func(outcome string)
	retryPause time.Duration
}

// New compiles the event schema and returns a Consumer. observe may be nil.
func New(reader MessageReader, proc EventProcessor, logger *zap.Logger, observe func(string)) (*Consumer, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(eventSchema))
	if err != nil {
		return nil, fmt.Errorf("compile event schema: %w", err)
	}
	if observe == nil {
		observe = func(string) {}
	}
	return &Consumer{
		reader:     reader,
		proc:       proc,
		schema:     schema,
		logger:     logger,
		observe:    observe,
		retryPause: time.Second,
	}, nil
}

// Run fetches messages until ctx is cancelled or the reader is closed.
// Fetch errors are logged and retried after a short pause.
func (c *Consumer) Run(ctx context.Context, d Dispatcher) error {
	c.logger.Info("consumer started")
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, io.EOF) {
				c.logger.Info("consumer stopping")
				return nil
			}
			c.logger.Error("fetch failed", zap.Error(err))
			select {
			case <-time.After(c.retryPause):
				continue
			case <-ctx.Done():
				c.logger.Info("consumer stopping")
				return nil
			}
		}

		if err := d.Submit(ctx, msg); err != nil {
			c.logger.Info("consumer stopping", zap.Int("partition", msg.Partition), zap.Int64("offset", msg.Offset))
			return nil
		}
	}
}

// Handle decodes msg and processes the event. It never fails: malformed
// events and panics are logged and the message counts as handled.
func (c *Consumer) Handle(ctx context.Context, msg kafka.Message) {
	log := c.logger.With(
		zap.String("topic", msg.Topic),
		zap.Int("partition", msg.Partition),
		zap.Int64("offset", msg.Offset),
	)
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while handling event", zap.Any("panic", r), zap.Stack("stack"))
			c.observe(metrics.OutcomeFailed)
		}
	}()

	event, err := c.decode(msg.Value)
	if err != nil {
		log.Error("dropping malformed event", zap.Error(err))
		c.observe(metrics.OutcomeMalformed)
		return
	}
	log = log.With(
		zap.String("event_id", event.EventID),
		zap.String("event_type", string(event.EventType)),
	)

	var sent, failed, skipped, errored int
	for _, o := range c.proc.ProcessEvent(ctx, event) {
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			errored++
		case o.Record != nil && o.Record.Status == domain.StatusSent:
			sent++
		default:
			failed++
		}
	}

	log.Info("event processed",
		zap.Int("recipients", len(event.Recipients)),
		zap.Int("sent", sent),
		zap.Int("failed", failed),
		zap.Int("skipped", skipped),
		zap.Int("store_errors", errored),
	)

	if skipped == len(event.Recipients) {
		c.observe(metrics.OutcomeSkippedDuplicate)
		return
	}
	c.observe(metrics.OutcomeProcessed)
}

func (c *Consumer) decode(raw []byte) (domain.NotificationEvent, error) {
	var event domain.NotificationEvent

	result, err := c.schema.Validate(gojsonschema.NewBytesLoader(raw))
	if err != nil {
		return event, fmt.Errorf("parse event: %w", err)
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, re := range result.Errors() {
			msgs = append(msgs, re.String())
		}
		return event, fmt.Errorf("schema: %s", strings.Join(msgs, "; "))
	}

	if err := json.Unmarshal(raw, &event); err != nil {
		return event, fmt.Errorf("decode event: %w", err)
	}
	if err := event.Validate(); err != nil {
		return event, err
	}
	return event, nil
}

// Close releases the underlying reader.
func (c *Consumer) Close() error {
	return c.reader.Close()
}
