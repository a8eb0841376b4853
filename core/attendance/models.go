package attendance

import (
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
)

type Status string

const (
	StatusSubmitted Status = "submitted"
	StatusVerified  Status = "verified"
	StatusPaid      Status = "paid"
)

var statusRanks = map[Status]int{
	StatusSubmitted: 1,
	StatusVerified:  2,
	StatusPaid:      3,
}

func (s Status) IsValid() bool {
	_, ok := statusRanks[s]
	return ok
}

// CheckTransition reports whether a stored record in status from may be rewritten with status to.
// Status only moves forward and paid records never change.
func CheckTransition(from, to Status) error {
	if from == StatusPaid {
		return ErrPaidRecordLocked
	}
	if statusRanks[to] < statusRanks[from] {
		return core.NewFieldValidationError("status", "cannot go from "+string(from)+" back to "+string(to))
	}
	return nil
}

// Key is the natural identity of a Record: one mark per teacher, class and day.
type Key struct {
	TeacherID string
	ClassID   string
	Date      time.Time
}

func (k Key) String() string {
	return k.TeacherID + "/" + k.ClassID + "/" + core.FormatDay(k.Date)
}

type Record struct {
	ID         string     `json:"id" validate:"required"`
	TeacherID  string     `json:"teacher_id" validate:"required,id"`
	ClassID    string     `json:"class_id" validate:"required,id"`
	Date       time.Time  `json:"date" validate:"required,day"`
	Status     Status     `json:"status" validate:"required,oneof=submitted verified paid"`
	PaymentID  string     `json:"payment_id,omitempty"`
	MarkedBy   string     `json:"marked_by" validate:"required"`
	MarkedAt   time.Time  `json:"marked_at" validate:"required"`
	VerifiedAt *time.Time `json:"verified_at,omitempty"`
	Version    int64      `json:"version"`
}

var _ core.Record = Record{}

func (r Record) RecordKind() core.RecordKind { return core.KindAttendance }
func (r Record) RecordID() string            { return r.ID }
func (r Record) RecordVersion() int64        { return r.Version }

func (r Record) Key() Key {
	return Key{TeacherID: r.TeacherID, ClassID: r.ClassID, Date: r.Date}
}

// Validate checks the record shape, including that payment_id is set iff the record is paid.
func (r Record) Validate() error {
	if err := core.Validate.Struct(r); err != nil {
		return core.TranslateValidationErrors(err)
	}
	if (r.Status == StatusPaid) != (r.PaymentID != "") {
		return core.NewFieldValidationError("payment_id", "must be set exactly when the record is paid")
	}
	if r.Status != StatusSubmitted && r.VerifiedAt == nil {
		return core.NewFieldValidationError("verified_at", "must be set once the record is verified")
	}
	return nil
}

// CheckToggle decides whether a toggle may remove r.
func (r Record) CheckToggle(asAdmin bool) error {
	if r.Status == StatusPaid {
		return ErrPaidRecordLocked
	}
	if r.Status != StatusSubmitted && !asAdmin {
		return ErrVerifiedRecordImmutable
	}
	return nil
}

// Filter selects records; zero fields match everything. From and To are inclusive days.
type Filter struct {
	TeacherID string
	ClassID   string
	Statuses  []Status
	PaymentID string
	From      time.Time
	To        time.Time
}

func (f Filter) Match(r Record) bool {
	if f.TeacherID != "" && r.TeacherID != f.TeacherID {
		return false
	}
	if f.ClassID != "" && r.ClassID != f.ClassID {
		return false
	}
	if f.PaymentID != "" && r.PaymentID != f.PaymentID {
		return false
	}
	if len(f.Statuses) > 0 {
		var ok bool
		for _, s := range f.Statuses {
			if r.Status == s {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if !f.From.IsZero() && r.Date.Before(core.Day(f.From)) {
		return false
	}
	if !f.To.IsZero() && r.Date.After(core.Day(f.To)) {
		return false
	}
	return true
}

func (f *Filter) Clean() error {
	f.TeacherID = core.CleanString(f.TeacherID)
	f.ClassID = core.CleanString(f.ClassID)
	f.PaymentID = core.CleanString(f.PaymentID)
	for _, s := range f.Statuses {
		if !s.IsValid() {
			return core.NewFieldValidationError("status", "unknown status "+string(s))
		}
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return core.NewFieldValidationError("to", "must not be before from")
	}
	return nil
}

// OrderingFields are the fields records can be ordered by.
var OrderingFields = map[string]bool{"date": true, "marked_at": true, "status": true, "class_id": true, "id": true}

// OldestFirst orders records the way settlement consumes them.
var OldestFirst = []core.DBOrdering{{Field: "date", Ascending: true}, {Field: "id", Ascending: true}}

func CheckOrdering(ords []core.DBOrdering) error {
	for _, ord := range ords {
		if !OrderingFields[ord.Field] {
			return core.NewFieldValidationError("ordering", "unknown field "+ord.Field)
		}
	}
	return nil
}

var (
	// errors
	ErrNotFound                = errors.New("attendance record not found")
	ErrPaidRecordLocked        = errors.New("attendance record is paid and locked")
	ErrVerifiedRecordImmutable = errors.New("attendance record is verified and can only be changed by an admin")
)
