package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/user"
)

type Repository interface {
	CreatePayment(ctx context.Context, p Payment) (Payment, error)
	GetPayment(ctx context.Context, id string) (Payment, error)
	QueryPayments(ctx context.Context, f Filter, opts core.QueryOptions) ([]Payment, error)
}

type Service struct {
	repo       Repository
	attendance attendance.Repository
	ledger     *advance.Service
	roster     *roster.Service
	committer  core.Committer
	audit      audit.Sink
	metrics    core.Metrics
}

type Deps struct {
	Payments   Repository
	Attendance attendance.Repository
	Ledger     *advance.Service
	Roster     *roster.Service
	Committer  core.Committer
	Audit      audit.Sink
	Metrics    core.Metrics
}

func NewService(deps Deps) *Service {
	svc := &Service{
		repo:       deps.Payments,
		attendance: deps.Attendance,
		ledger:     deps.Ledger,
		roster:     deps.Roster,
		committer:  deps.Committer,
		audit:      deps.Audit,
		metrics:    deps.Metrics,
	}
	if svc.audit == nil {
		svc.audit = audit.Discard
	}
	if svc.metrics == nil {
		svc.metrics = core.NopMetrics
	}
	return svc
}

// Propose lists, per class of the teacher, the verified lectures waiting to be paid and a
// suggested settlement of at most one billing cycle.
func (svc *Service) Propose(ctx context.Context, actor user.Actor, teacherID string) (Proposal, error) {
	teacherID = core.CleanString(teacherID)
	if !actor.CanActFor(teacherID) {
		return Proposal{}, core.ErrForbidden
	}
	pays, err := svc.roster.Pays(ctx, teacherID)
	if err != nil {
		return Proposal{}, err
	}

	cands := make([]Candidate, 0, len(pays))
	for _, pay := range pays {
		recs, err := svc.verified(ctx, teacherID, pay.ClassID)
		if err != nil {
			return Proposal{}, err
		}
		cands = append(cands, candidate(pay, recs))
	}

	balance, err := svc.ledger.Balance(ctx, teacherID)
	if err != nil {
		return Proposal{}, err
	}
	return Proposal{TeacherID: teacherID, Candidates: cands, AdvanceBalance: balance}, nil
}

func candidate(pay roster.Pay, recs []attendance.Record) Candidate {
	suggested := len(recs)
	if suggested > pay.Class.BatchSize {
		suggested = pay.Class.BatchSize
	}
	c := Candidate{
		ClassID:               pay.ClassID,
		ClassName:             pay.Class.Name,
		BatchSize:             pay.Class.BatchSize,
		Rate:                  pay.Rate,
		RatePerLecture:        pay.RatePerLecture(),
		PendingCount:          len(recs),
		SuggestedLectureCount: suggested,
		SuggestedAmount:       pay.AmountFor(suggested),
	}
	if len(recs) > 0 {
		oldest, newest := recs[0].Date, recs[len(recs)-1].Date
		c.OldestPending, c.NewestPending = &oldest, &newest
	}
	return c
}

// verified returns the teacher's verified records of a class, oldest first.
func (svc *Service) verified(ctx context.Context, teacherID, classID string) ([]attendance.Record, error) {
	recs, err := svc.attendance.QueryRecords(ctx, attendance.Filter{
		TeacherID: teacherID,
		ClassID:   classID,
		Statuses:  []attendance.Status{attendance.StatusVerified},
	}, core.QueryOptions{Ordering: attendance.OldestFirst})
	return recs, errors.Wrap(err, "querying verified attendance")
}

// Commit pays the requested lectures, deducting advances, in one atomic batch.
// Either every payment, ledger deduction, record flip and overflow entry is stored, or none is.
func (svc *Service) Commit(ctx context.Context, actor user.Actor, cr CommitRequest) (res CommitResult, err error) {
	start := time.Now()
	defer func() {
		svc.metrics.SettlementCommitted(outcome(err), time.Since(start).Seconds())
	}()

	if !actor.IsAdmin() {
		return CommitResult{}, core.ErrForbidden
	}
	if err := cr.Clean(); err != nil {
		return CommitResult{}, err
	}
	teacher, err := svc.roster.Teacher(ctx, cr.TeacherID)
	if err != nil {
		return CommitResult{}, err
	}
	for i, req := range cr.Requests {
		if _, err := svc.roster.Pay(ctx, teacher.ID, req.ClassID); err != nil {
			if core.IsValidationError(err) {
				return CommitResult{}, core.NewFieldValidationError(fmt.Sprintf("requests[%d].class_id", i), err.Error())
			}
			return CommitResult{}, err
		}
	}

	unlock, err := svc.committer.Lock(ctx, teacher.ID)
	if err != nil {
		return CommitResult{}, errors.Wrap(err, "locking teacher")
	}
	defer unlock()

	// 1. fresh read of what is payable now
	selected := make([][]attendance.Record, len(cr.Requests))
	for i, req := range cr.Requests {
		recs, err := svc.verified(ctx, teacher.ID, req.ClassID)
		if err != nil {
			return CommitResult{}, err
		}
		if req.LectureCount > len(recs) {
			return CommitResult{}, &InsufficientError{ClassID: req.ClassID, Requested: req.LectureCount, Available: len(recs)}
		}
		selected[i] = recs[:req.LectureCount]
	}

	b := core.NewBatch()

	// 2. ledger deduction, clamped to the gross and to the balance
	gross := cr.GrossTotal()
	deducted, err := svc.ledger.StageDeduction(ctx, b, teacher.ID, decimal.Min(cr.AdvanceDeductionTotal, gross))
	if err != nil {
		return CommitResult{}, err
	}

	// 3. - 5. payments and record flips
	amounts := make([]decimal.Decimal, len(cr.Requests))
	for i, req := range cr.Requests {
		amounts[i] = req.Amount
	}
	allocs := AllocateDeduction(amounts, deducted)

	now := core.Now()
	res = CommitResult{AdvanceDeducted: deducted, NetTotal: decimal.Zero}
	for i, req := range cr.Requests {
		recs := selected[i]
		p := Payment{
			ID:               uuid.New().String(),
			TeacherID:        teacher.ID,
			ClassID:          req.ClassID,
			GrossAmount:      req.Amount,
			AdvanceDeduction: allocs[i].Deduction,
			NetDisbursement:  allocs[i].Net,
			LectureCount:     req.LectureCount,
			DatePaid:         now,
			StartDateCovered: recs[0].Date,
			EndDateCovered:   recs[len(recs)-1].Date,
			PaidBy:           actor.ID,
		}
		b.Create(p)
		for _, rec := range recs {
			rec.Status = attendance.StatusPaid
			rec.PaymentID = p.ID
			b.Update(rec)
		}
		res.Payments = append(res.Payments, p)
		res.NetTotal = res.NetTotal.Add(p.NetDisbursement)
	}

	// 6. cash handed over above the net is banked as a new advance
	if cr.CashPayout != nil && cr.CashPayout.GreaterThan(res.NetTotal) {
		e := advance.NewEntry(teacher.ID, cr.CashPayout.Sub(res.NetTotal), advance.SourceOverflow,
			"rounding overflow of settlement on "+core.FormatDay(now), actor.ID)
		e.Date = now
		b.Create(e)
		res.Overflow = &e
	}

	// 7. all or nothing
	if err := svc.committer.CommitBatch(ctx, b); err != nil {
		if errors.Is(err, core.ErrConflict) {
			return CommitResult{}, svc.classifyConflict(ctx, teacher.ID, cr, err)
		}
		return CommitResult{}, errors.Wrap(err, "committing settlement")
	}

	svc.logCommit(ctx, actor, teacher, res)
	return res, nil
}

// classifyConflict explains a batch that lost a race against fresh state: if the lectures are
// gone the caller gets ErrInsufficientVerifiedRecords like any stale proposal would.
func (svc *Service) classifyConflict(ctx context.Context, teacherID string, cr CommitRequest, cause error) error {
	for _, req := range cr.Requests {
		recs, err := svc.verified(ctx, teacherID, req.ClassID)
		if err != nil {
			return errors.Wrap(cause, "committing settlement")
		}
		if req.LectureCount > len(recs) {
			return &InsufficientError{ClassID: req.ClassID, Requested: req.LectureCount, Available: len(recs)}
		}
	}
	return errors.Wrap(cause, "committing settlement")
}

func (svc *Service) logCommit(ctx context.Context, actor user.Actor, teacher roster.Teacher, res CommitResult) {
	for _, p := range res.Payments {
		gross, _ := p.GrossAmount.Float64()
		ded, _ := p.AdvanceDeduction.Float64()
		svc.metrics.PaymentRecorded(gross, ded)
		svc.audit.LogEvent(ctx, audit.Event{
			Type:       audit.PaymentRecorded,
			ActorLabel: actor.Label(),
			TeacherID:  teacher.ID,
			RefID:      p.ID,
			Description: fmt.Sprintf("paid %s for %d lectures of %s (%s to %s), advance deducted %s, net %s",
				teacher.Name, p.LectureCount, p.ClassID, core.FormatDay(p.StartDateCovered),
				core.FormatDay(p.EndDateCovered), p.AdvanceDeduction, p.NetDisbursement),
			Amount: audit.Amount(p.GrossAmount),
		})
	}
	if res.Overflow != nil {
		svc.audit.LogEvent(ctx, audit.Event{
			Type:        audit.RoundingOverflow,
			ActorLabel:  actor.Label(),
			TeacherID:   teacher.ID,
			RefID:       res.Overflow.ID,
			Description: "cash paid to " + teacher.Name + " above the settlement net, banked as advance",
			Amount:      audit.Amount(res.Overflow.Amount),
		})
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "committed"
	case errors.Is(err, ErrInsufficientVerifiedRecords):
		return "insufficient"
	case errors.Is(err, core.ErrConflict):
		return "conflict"
	case core.IsValidationError(err), errors.Is(err, core.ErrForbidden):
		return "rejected"
	default:
		return "error"
	}
}

func (svc *Service) ListPayments(ctx context.Context, actor user.Actor, teacherID string, opts core.QueryOptions) ([]Payment, error) {
	teacherID = core.CleanString(teacherID)
	if !actor.CanActFor(teacherID) {
		return nil, core.ErrForbidden
	}
	for _, ord := range opts.Ordering {
		if !OrderingFields[ord.Field] {
			return nil, core.NewFieldValidationError("ordering", "unknown field "+ord.Field)
		}
	}
	if len(opts.Ordering) == 0 {
		opts.Ordering = NewestFirst
	}
	ps, err := svc.repo.QueryPayments(ctx, Filter{TeacherID: teacherID}, opts)
	return ps, errors.Wrap(err, "querying payments")
}

type PaymentDetail struct {
	Payment
	Lectures []attendance.Record `json:"lectures"`
}

// GetPayment returns a payment with the lectures it settled.
func (svc *Service) GetPayment(ctx context.Context, actor user.Actor, id string) (PaymentDetail, error) {
	p, err := svc.repo.GetPayment(ctx, core.CleanString(id))
	if err != nil {
		return PaymentDetail{}, err
	}
	if !actor.CanActFor(p.TeacherID) {
		return PaymentDetail{}, ErrNotFound
	}
	recs, err := svc.attendance.QueryRecords(ctx, attendance.Filter{TeacherID: p.TeacherID, PaymentID: p.ID},
		core.QueryOptions{Ordering: attendance.OldestFirst})
	if err != nil {
		return PaymentDetail{}, errors.Wrap(err, "querying paid lectures")
	}
	return PaymentDetail{Payment: p, Lectures: recs}, nil
}
