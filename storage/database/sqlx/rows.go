package sqlxrepos

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/settlement"
)

// Days are stored as YYYY-MM-DD text and instants as unix microseconds, which both engines
// compare and sort the same way.

func micros(t time.Time) int64 { return t.UnixMicro() }

func fromMicros(us int64) time.Time { return time.UnixMicro(us).UTC() }

type attendanceRow struct {
	ID         string      `db:"id"`
	TeacherID  string      `db:"teacher_id"`
	ClassID    string      `db:"class_id"`
	Date       string      `db:"date"`
	Status     string      `db:"status"`
	PaymentID  null.String `db:"payment_id"`
	MarkedBy   string      `db:"marked_by"`
	MarkedAt   int64       `db:"marked_at"`
	VerifiedAt null.Int64  `db:"verified_at"`
	Version    int64       `db:"version"`
}

func newAttendanceRow(r attendance.Record) attendanceRow {
	row := attendanceRow{
		ID:        r.ID,
		TeacherID: r.TeacherID,
		ClassID:   r.ClassID,
		Date:      core.FormatDay(r.Date),
		Status:    string(r.Status),
		PaymentID: null.NewString(r.PaymentID, r.PaymentID != ""),
		MarkedBy:  r.MarkedBy,
		MarkedAt:  micros(r.MarkedAt),
		Version:   r.Version,
	}
	if r.VerifiedAt != nil {
		row.VerifiedAt = null.Int64From(micros(*r.VerifiedAt))
	}
	return row
}

func (row attendanceRow) record() (attendance.Record, error) {
	day, err := core.ParseDay(row.Date)
	if err != nil {
		return attendance.Record{}, err
	}
	r := attendance.Record{
		ID:        row.ID,
		TeacherID: row.TeacherID,
		ClassID:   row.ClassID,
		Date:      day,
		Status:    attendance.Status(row.Status),
		PaymentID: row.PaymentID.String,
		MarkedBy:  row.MarkedBy,
		MarkedAt:  fromMicros(row.MarkedAt),
		Version:   row.Version,
	}
	if row.VerifiedAt.Valid {
		at := fromMicros(row.VerifiedAt.Int64)
		r.VerifiedAt = &at
	}
	return r, nil
}

type advanceRow struct {
	ID        string          `db:"id"`
	TeacherID string          `db:"teacher_id"`
	Amount    decimal.Decimal `db:"amount"`
	Remaining decimal.Decimal `db:"remaining_amount"`
	Date      int64           `db:"date"`
	Notes     string          `db:"notes"`
	Source    string          `db:"source"`
	CreatedBy string          `db:"created_by"`
	Version   int64           `db:"version"`
}

func newAdvanceRow(e advance.Entry) advanceRow {
	return advanceRow{
		ID:        e.ID,
		TeacherID: e.TeacherID,
		Amount:    e.Amount,
		Remaining: e.Remaining,
		Date:      micros(e.Date),
		Notes:     e.Notes,
		Source:    string(e.Source),
		CreatedBy: e.CreatedBy,
		Version:   e.Version,
	}
}

func (row advanceRow) entry() advance.Entry {
	return advance.Entry{
		ID:        row.ID,
		TeacherID: row.TeacherID,
		Amount:    row.Amount,
		Remaining: row.Remaining,
		Date:      fromMicros(row.Date),
		Notes:     row.Notes,
		Source:    advance.Source(row.Source),
		CreatedBy: row.CreatedBy,
		Version:   row.Version,
	}
}

type paymentRow struct {
	ID               string          `db:"id"`
	TeacherID        string          `db:"teacher_id"`
	ClassID          string          `db:"class_id"`
	GrossAmount      decimal.Decimal `db:"gross_amount"`
	AdvanceDeduction decimal.Decimal `db:"advance_deduction"`
	NetDisbursement  decimal.Decimal `db:"net_disbursement"`
	LectureCount     int             `db:"lecture_count"`
	DatePaid         int64           `db:"date_paid"`
	StartDateCovered string          `db:"start_date_covered"`
	EndDateCovered   string          `db:"end_date_covered"`
	PaidBy           string          `db:"paid_by"`
}

func newPaymentRow(p settlement.Payment) paymentRow {
	return paymentRow{
		ID:               p.ID,
		TeacherID:        p.TeacherID,
		ClassID:          p.ClassID,
		GrossAmount:      p.GrossAmount,
		AdvanceDeduction: p.AdvanceDeduction,
		NetDisbursement:  p.NetDisbursement,
		LectureCount:     p.LectureCount,
		DatePaid:         micros(p.DatePaid),
		StartDateCovered: core.FormatDay(p.StartDateCovered),
		EndDateCovered:   core.FormatDay(p.EndDateCovered),
		PaidBy:           p.PaidBy,
	}
}

func (row paymentRow) payment() (settlement.Payment, error) {
	start, err := core.ParseDay(row.StartDateCovered)
	if err != nil {
		return settlement.Payment{}, err
	}
	end, err := core.ParseDay(row.EndDateCovered)
	if err != nil {
		return settlement.Payment{}, err
	}
	return settlement.Payment{
		ID:               row.ID,
		TeacherID:        row.TeacherID,
		ClassID:          row.ClassID,
		GrossAmount:      row.GrossAmount,
		AdvanceDeduction: row.AdvanceDeduction,
		NetDisbursement:  row.NetDisbursement,
		LectureCount:     row.LectureCount,
		DatePaid:         fromMicros(row.DatePaid),
		StartDateCovered: start,
		EndDateCovered:   end,
		PaidBy:           row.PaidBy,
	}, nil
}

type eventRow struct {
	ID          string              `db:"id"`
	Type        string              `db:"type"`
	ActorLabel  string              `db:"actor_label"`
	TeacherID   string              `db:"teacher_id"`
	RefID       null.String         `db:"ref_id"`
	Description string              `db:"description"`
	Amount      decimal.NullDecimal `db:"amount"`
	At          int64               `db:"at"`
}

func newEventRow(evt audit.Event) eventRow {
	row := eventRow{
		ID:          evt.ID,
		Type:        string(evt.Type),
		ActorLabel:  evt.ActorLabel,
		TeacherID:   evt.TeacherID,
		RefID:       null.NewString(evt.RefID, evt.RefID != ""),
		Description: evt.Description,
		At:          micros(evt.At),
	}
	if evt.Amount != nil {
		row.Amount = decimal.NullDecimal{Decimal: *evt.Amount, Valid: true}
	}
	return row
}

func (row eventRow) event() audit.Event {
	evt := audit.Event{
		ID:          row.ID,
		Type:        audit.EventType(row.Type),
		ActorLabel:  row.ActorLabel,
		TeacherID:   row.TeacherID,
		RefID:       row.RefID.String,
		Description: row.Description,
		At:          fromMicros(row.At),
	}
	if row.Amount.Valid {
		evt.Amount = audit.Amount(row.Amount.Decimal)
	}
	return evt
}
