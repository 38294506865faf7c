package domain

import (
	"strings"
	"time"
)

// EventType identifies the upstream fact a notification is about.
type EventType string

const (
	EventTenderPublished    EventType = "TENDER_PUBLISHED"
	EventSubmissionReceived EventType = "SUBMISSION_RECEIVED"
	EventSubmissionAccepted EventType = "SUBMISSION_ACCEPTED"
	EventSubmissionRejected EventType = "SUBMISSION_REJECTED"
)

type eventTypeInfo struct {
	templateName   string
	defaultSubject string
}

// eventTypes is the fixed event type -> template/subject table.
var eventTypes = map[EventType]eventTypeInfo{
	EventTenderPublished:    {"tender-published", "New Tender Published"},
	EventSubmissionReceived: {"submission-received", "Submission Received"},
	EventSubmissionAccepted: {"submission-accepted", "Submission Accepted"},
	EventSubmissionRejected: {"submission-rejected", "Submission Rejected"},
}

// EventTypes returns every known event type in declaration order.
func EventTypes() []EventType {
	return []EventType{
		EventTenderPublished,
		EventSubmissionReceived,
		EventSubmissionAccepted,
		EventSubmissionRejected,
	}
}

func (e EventType) IsValid() bool {
	_, ok := eventTypes[e]
	return ok
}

// TemplateName is the email template rendered for this event type.
func (e EventType) TemplateName() string {
	return eventTypes[e].templateName
}

// DefaultSubject is used when the event carries no "title".
func (e EventType) DefaultSubject() string {
	return eventTypes[e].defaultSubject
}

// ParseEventType accepts the wire name case-insensitively.
func ParseEventType(s string) (EventType, error) {
	e := EventType(strings.ToUpper(strings.TrimSpace(s)))
	if !e.IsValid() {
		return "", ErrInvalidEventType
	}
	return e, nil
}

// Status tracks the delivery outcome of a single record.
type Status string

const (
	StatusPending Status = "PENDING"
	StatusSent    Status = "SENT"
	StatusFailed  Status = "FAILED"
)

func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusSent, StatusFailed:
		return true
	}
	return false
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToUpper(strings.TrimSpace(s)))
	if !st.IsValid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

// Role is informational only; it never affects routing.
type Role string

const (
	RoleSupplier Role = "SUPPLIER"
	RoleOwner    Role = "OWNER"
	RoleAdmin    Role = "ADMIN"
)

func (r Role) IsValid() bool {
	switch r {
	case RoleSupplier, RoleOwner, RoleAdmin:
		return true
	}
	return false
}

// Recipient is one addressee embedded in an event.
type Recipient struct {
	UserID string `json:"userId"`
	Email  string `json:"email"`
	Role   Role   `json:"role"`
}

// NotificationEvent is the message published by the tender and submission services.
type NotificationEvent struct {
	EventID    string            `json:"eventId" validate:"required,uuid"`
	EventType  EventType         `json:"eventType" validate:"required,eventtype"`
	Timestamp  Instant           `json:"timestamp"`
	Recipients []Recipient       `json:"recipients" validate:"min=1"`
	Data       map[string]string `json:"data"`
}

// Subject is data["title"], falling back to the event type's default subject.
func (e *NotificationEvent) Subject() string {
	if title, ok := e.Data["title"]; ok {
		return title
	}
	return e.EventType.DefaultSubject()
}

// Content is data["message"] or "".
func (e *NotificationEvent) Content() string {
	return e.Data["message"]
}

// Notification is the persisted per-recipient delivery record.
// SentAt is non-nil if and only if Status is SENT.
type Notification struct {
	ID        int64      `json:"id"`
	EventID   *string    `json:"eventId,omitempty"`
	UserID    string     `json:"userId"`
	Email     string     `json:"email"`
	EventType EventType  `json:"eventType"`
	Subject   string     `json:"subject"`
	Content   string     `json:"content"`
	Status    Status     `json:"status"`
	CreatedAt time.Time  `json:"createdAt"`
	SentAt    *time.Time `json:"sentAt"`
}

// SendRequest is the payload of the manual send endpoint.
type SendRequest struct {
	UserID    string    `json:"userId" validate:"required"`
	Email     string    `json:"email" validate:"required,email"`
	EventType EventType `json:"eventType" validate:"required,eventtype"`
	Title     string    `json:"title" validate:"notblank"`
	Message   string    `json:"message" validate:"notblank"`
}

// Event turns a manual request into a single-recipient event so that it
// goes through the same delivery path as consumed events. The event has no
// EventID, so the resulting record carries none either.
func (r *SendRequest) Event(now time.Time) NotificationEvent {
	return NotificationEvent{
		EventType: r.EventType,
		Timestamp: Instant{Time: now},
		Recipients: []Recipient{
			{UserID: r.UserID, Email: r.Email},
		},
		Data: map[string]string{
			"title":   r.Title,
			"message": r.Message,
		},
	}
}

// Stats is the aggregate delivery statistic served by the admin API.
type Stats struct {
	Total       int64   `json:"total"`
	Sent        int64   `json:"sent"`
	Failed      int64   `json:"failed"`
	Pending     int64   `json:"pending"`
	SuccessRate float64 `json:"successRate"`
}

// NewStats computes totals and success rate from per-status counts.
func NewStats(counts map[Status]int64) Stats {
	s := Stats{
		Sent:    counts[StatusSent],
		Failed:  counts[StatusFailed],
		Pending: counts[StatusPending],
	}
	for _, n := range counts {
		s.Total += n
	}
	if s.Total > 0 {
		s.SuccessRate = float64(s.Sent) * 100 / float64(s.Total)
	}
	return s
}

// ListFilter narrows a record listing. Nil fields are not applied.
type ListFilter struct {
	UserID    *string
	Status    *Status
	EventType *EventType
}
