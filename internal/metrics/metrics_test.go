package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/bidconnect/notification-service/internal/domain"
)

func TestProcessorHooks(t *testing.T) {
	m := New(prometheus.NewRegistry())
	onSent, onFailed := m.ProcessorHooks()

	onSent(domain.EventTenderPublished, 150*time.Millisecond)
	onSent(domain.EventTenderPublished, 50*time.Millisecond)
	onFailed(domain.EventSubmissionRejected)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.NotificationsSent.WithLabelValues("TENDER_PUBLISHED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsFailed.WithLabelValues("SUBMISSION_REJECTED")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.DeliveryLatency))
}

func TestObserveEvent(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.ObserveEvent(OutcomeProcessed)
	m.ObserveEvent(OutcomeProcessed)
	m.ObserveEvent(OutcomeMalformed)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.EventsConsumed.WithLabelValues(OutcomeProcessed)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.EventsConsumed.WithLabelValues(OutcomeMalformed)))
}

func TestNew_PanicsOnDoubleRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)
	assert.Panics(t, func() { New(reg) })
}
