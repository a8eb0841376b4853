package settlement

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
)

var (
	// errors
	ErrNotFound                    = errors.New("payment not found")
	ErrInsufficientVerifiedRecords = errors.New("not enough verified lectures to settle")
	ErrEmptySettlement             = core.NewValidationError(errors.New("nothing to settle"))
)

// InsufficientError says which request asked for more lectures than are verified right now.
type InsufficientError struct {
	ClassID   string
	Requested int
	Available int
}

func (e *InsufficientError) Error() string {
	return fmt.Sprintf("%s: class %s has %d verified lectures, %d requested",
		ErrInsufficientVerifiedRecords, e.ClassID, e.Available, e.Requested)
}

func (e *InsufficientError) Is(target error) bool { return target == ErrInsufficientVerifiedRecords }

// Payment settles LectureCount lectures of one class. It is never changed once created.
type Payment struct {
	ID               string          `json:"id" validate:"required"`
	TeacherID        string          `json:"teacher_id" validate:"required,id"`
	ClassID          string          `json:"class_id" validate:"required,id"`
	GrossAmount      decimal.Decimal `json:"gross_amount" validate:"gt=0"`
	AdvanceDeduction decimal.Decimal `json:"advance_deduction" validate:"gte=0"`
	NetDisbursement  decimal.Decimal `json:"net_disbursement" validate:"gte=0"`
	LectureCount     int             `json:"lecture_count" validate:"gt=0"`
	DatePaid         time.Time       `json:"date_paid" validate:"required"`
	StartDateCovered time.Time       `json:"start_date_covered" validate:"required,day"`
	EndDateCovered   time.Time       `json:"end_date_covered" validate:"required,day"`
	PaidBy           string          `json:"paid_by" validate:"required"`
}

var _ core.Record = Payment{}

func (p Payment) RecordKind() core.RecordKind { return core.KindPayment }
func (p Payment) RecordID() string            { return p.ID }
func (p Payment) RecordVersion() int64        { return 0 }

func (p Payment) Validate() error {
	if err := core.Validate.Struct(p); err != nil {
		return core.TranslateValidationErrors(err)
	}
	if !p.NetDisbursement.Equal(p.GrossAmount.Sub(p.AdvanceDeduction)) {
		return core.NewFieldValidationError("net_disbursement", "must equal gross_amount - advance_deduction")
	}
	if p.EndDateCovered.Before(p.StartDateCovered) {
		return core.NewFieldValidationError("end_date_covered", "must not be before start_date_covered")
	}
	return nil
}

// Request asks to pay LectureCount of the oldest verified lectures of a class for Amount.
type Request struct {
	ClassID      string          `json:"class_id" validate:"required"`
	LectureCount int             `json:"lecture_count" validate:"gte=0"`
	Amount       decimal.Decimal `json:"amount"`
}

type CommitRequest struct {
	TeacherID             string           `json:"teacher_id" validate:"required"`
	Requests              []Request        `json:"requests" validate:"dive"`
	AdvanceDeductionTotal decimal.Decimal  `json:"advance_deduction_total" validate:"gte=0"`
	CashPayout            *decimal.Decimal `json:"cash_payout,omitempty"` // what was actually handed over, if it differs
}

// Clean validates the request and drops lines with no lectures.
// Order is kept: the deduction pool drains in the order given.
func (cr *CommitRequest) Clean() error {
	cr.TeacherID = core.CleanString(cr.TeacherID)
	if err := core.Validate.Struct(cr); err != nil {
		return core.TranslateValidationErrors(err)
	}
	if cr.CashPayout != nil && cr.CashPayout.IsNegative() {
		return core.NewFieldValidationError("cash_payout", "must be greater than or equal to 0")
	}

	reqs := make([]Request, 0, len(cr.Requests))
	seen := make(map[string]bool, len(cr.Requests))
	for i, req := range cr.Requests {
		req.ClassID = core.CleanString(req.ClassID)
		if req.LectureCount == 0 {
			continue
		}
		fld := fmt.Sprintf("requests[%d]", i)
		if !req.Amount.IsPositive() {
			return core.NewFieldValidationError(fld+".amount", "must be greater than 0")
		}
		if seen[req.ClassID] {
			return core.NewFieldValidationError(fld+".class_id", "class requested more than once")
		}
		seen[req.ClassID] = true
		reqs = append(reqs, req)
	}
	cr.Requests = reqs

	if len(cr.Requests) == 0 && (cr.CashPayout == nil || !cr.CashPayout.IsPositive()) {
		return ErrEmptySettlement
	}
	return nil
}

func (cr CommitRequest) GrossTotal() decimal.Decimal {
	total := decimal.Zero
	for _, req := range cr.Requests {
		total = total.Add(req.Amount)
	}
	return total
}

// Candidate is what a teacher could be paid for one class right now. Advisory only.
type Candidate struct {
	ClassID               string          `json:"class_id"`
	ClassName             string          `json:"class_name"`
	BatchSize             int             `json:"batch_size"`
	Rate                  decimal.Decimal `json:"rate"`
	RatePerLecture        decimal.Decimal `json:"rate_per_lecture"`
	PendingCount          int             `json:"pending_count"`
	SuggestedLectureCount int             `json:"suggested_lecture_count"`
	SuggestedAmount       decimal.Decimal `json:"suggested_amount"`
	OldestPending         *time.Time      `json:"oldest_pending,omitempty"`
	NewestPending         *time.Time      `json:"newest_pending,omitempty"`
}

type Proposal struct {
	TeacherID      string          `json:"teacher_id"`
	Candidates     []Candidate     `json:"candidates"`
	AdvanceBalance decimal.Decimal `json:"advance_balance"`
}

type CommitResult struct {
	Payments        []Payment       `json:"payments"`
	AdvanceDeducted decimal.Decimal `json:"advance_deducted"`
	NetTotal        decimal.Decimal `json:"net_total"`
	Overflow        *advance.Entry  `json:"overflow,omitempty"`
}

// Allocation is the deduction and net of one request.
type Allocation struct {
	Deduction decimal.Decimal
	Net       decimal.Decimal
}

// AllocateDeduction drains pool across amounts in the given order; a later request only gets
// a deduction once every earlier one is fully covered.
func AllocateDeduction(amounts []decimal.Decimal, pool decimal.Decimal) []Allocation {
	allocs := make([]Allocation, len(amounts))
	for i, amount := range amounts {
		this := decimal.Min(amount, pool)
		if this.IsNegative() {
			this = decimal.Zero
		}
		pool = pool.Sub(this)
		allocs[i] = Allocation{Deduction: this, Net: amount.Sub(this)}
	}
	return allocs
}

// Filter selects payments.
type Filter struct {
	TeacherID string
	ClassID   string
}

func (f Filter) Match(p Payment) bool {
	if f.TeacherID != "" && p.TeacherID != f.TeacherID {
		return false
	}
	if f.ClassID != "" && p.ClassID != f.ClassID {
		return false
	}
	return true
}

var OrderingFields = map[string]bool{"date_paid": true, "class_id": true, "gross_amount": true, "id": true}

var NewestFirst = []core.DBOrdering{{Field: "date_paid", Ascending: false}, {Field: "id", Ascending: true}}
