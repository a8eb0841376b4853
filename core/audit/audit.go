// Package audit defines the append-only event log that follows every engine mutation.
// Delivery is best-effort: a Sink never reports failures to its caller.
package audit

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
)

type EventType string

const (
	LectureMarked    EventType = "lecture_marked"
	LectureRemoved   EventType = "lecture_removed"
	LectureVerified  EventType = "lecture_verified"
	AdvanceGranted   EventType = "advance_granted"
	AdvanceDeducted  EventType = "advance_deducted"
	PaymentRecorded  EventType = "payment_recorded"
	RoundingOverflow EventType = "rounding_overflow"
)

type Event struct {
	ID          string           `json:"id" db:"id"`
	Type        EventType        `json:"type" db:"type"`
	ActorLabel  string           `json:"actor" db:"actor_label"`
	TeacherID   string           `json:"teacher_id" db:"teacher_id"`
	RefID       string           `json:"ref_id,omitempty" db:"ref_id"` // the record the event is about
	Description string           `json:"description" db:"description"`
	Amount      *decimal.Decimal `json:"amount,omitempty" db:"amount"`
	At          time.Time        `json:"at" db:"at"`
}

func Amount(d decimal.Decimal) *decimal.Decimal { return &d }

// Stamped fills in the id and time of an event that has none yet.
func (e Event) Stamped() Event {
	if e.ID == "" {
		e.ID = uuid.New().String()
	}
	if e.At.IsZero() {
		e.At = core.Now()
	}
	return e
}

type Sink interface {
	LogEvent(ctx context.Context, evt Event)
}

// Repository persists events.
type Repository interface {
	AppendEvent(ctx context.Context, evt Event) error
	QueryEvents(ctx context.Context, teacherID string, limit int) ([]Event, error)
}

type nopSink struct{}

func (nopSink) LogEvent(context.Context, Event) {}

// Discard is a Sink that drops every event.
var Discard Sink = nopSink{}
