package advance

import (
	"sort"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
)

type Source string

const (
	SourceGrant    Source = "grant"
	SourceOverflow Source = "overflow" // cash paid above a settlement's net, banked for later
)

var (
	// errors
	ErrNotFound = errors.New("advance entry not found")
)

// Entry is money advanced to a teacher. Remaining drains towards zero as settlements deduct it.
type Entry struct {
	ID        string          `json:"id" validate:"required"`
	TeacherID string          `json:"teacher_id" validate:"required,id"`
	Amount    decimal.Decimal `json:"amount" validate:"gt=0"`
	Remaining decimal.Decimal `json:"remaining_amount" validate:"gte=0"`
	Date      time.Time       `json:"date" validate:"required"`
	Notes     string          `json:"notes" validate:"max=500"`
	Source    Source          `json:"source" validate:"required,oneof=grant overflow"`
	CreatedBy string          `json:"created_by" validate:"required"`
	Version   int64           `json:"version"`
}

var _ core.Record = Entry{}

func (e Entry) RecordKind() core.RecordKind { return core.KindAdvance }
func (e Entry) RecordID() string            { return e.ID }
func (e Entry) RecordVersion() int64        { return e.Version }

func (e Entry) Validate() error {
	if err := core.Validate.Struct(e); err != nil {
		return core.TranslateValidationErrors(err)
	}
	if e.Remaining.GreaterThan(e.Amount) {
		return core.NewFieldValidationError("remaining_amount", "cannot exceed amount")
	}
	return nil
}

// CheckDrain reports whether stored may be rewritten as updated: only Remaining may change, and only downwards.
func CheckDrain(stored, updated Entry) error {
	if updated.Remaining.GreaterThan(stored.Remaining) {
		return core.NewFieldValidationError("remaining_amount", "can only decrease")
	}
	if !updated.Amount.Equal(stored.Amount) || updated.TeacherID != stored.TeacherID || updated.Source != stored.Source {
		return core.NewFieldValidationError("amount", "only remaining_amount can change")
	}
	return nil
}

func NewEntry(teacherID string, amount decimal.Decimal, src Source, notes, createdBy string) Entry {
	return Entry{
		ID:        newID(),
		TeacherID: teacherID,
		Amount:    amount,
		Remaining: amount,
		Date:      core.Now(),
		Notes:     core.CleanString(notes),
		Source:    src,
		CreatedBy: createdBy,
	}
}

// Balance sums what is still owed across entries.
func Balance(entries []Entry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Remaining)
	}
	return total
}

// SortOldestFirst orders entries by date, then id for entries created in the same instant.
func SortOldestFirst(entries []Entry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return entries[i].ID < entries[j].ID
	})
}

// PlanDeduction drains entries oldest debt first until requested is covered or the entries run out.
// It returns the entries it changed and the amount actually deducted, min(requested, Balance(entries)).
// entries is not modified.
func PlanDeduction(entries []Entry, requested decimal.Decimal) ([]Entry, decimal.Decimal) {
	if !requested.IsPositive() {
		return nil, decimal.Zero
	}
	ordered := make([]Entry, len(entries))
	copy(ordered, entries)
	SortOldestFirst(ordered)

	var touched []Entry
	left := requested
	for _, e := range ordered {
		if !left.IsPositive() {
			break
		}
		if !e.Remaining.IsPositive() {
			continue
		}
		take := decimal.Min(e.Remaining, left)
		e.Remaining = e.Remaining.Sub(take)
		left = left.Sub(take)
		touched = append(touched, e)
	}
	return touched, requested.Sub(left)
}

// Filter selects entries of one teacher.
type Filter struct {
	TeacherID     string
	OnlyRemaining bool // skip entries drained to zero
}

func (f Filter) Match(e Entry) bool {
	if f.TeacherID != "" && e.TeacherID != f.TeacherID {
		return false
	}
	if f.OnlyRemaining && !e.Remaining.IsPositive() {
		return false
	}
	return true
}

var OrderingFields = map[string]bool{"date": true, "amount": true, "remaining_amount": true, "id": true}

var OldestFirst = []core.DBOrdering{{Field: "date", Ascending: true}, {Field: "id", Ascending: true}}
