package advance

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/user"
)

var newID = func() string { return uuid.New().String() }

type Repository interface {
	CreateEntry(ctx context.Context, e Entry) (Entry, error)
	GetEntry(ctx context.Context, id string) (Entry, error)
	QueryEntries(ctx context.Context, f Filter, opts core.QueryOptions) ([]Entry, error)
	// UpdateEntry fails with core.ErrConflict unless e.Version is the stored version.
	UpdateEntry(ctx context.Context, e Entry) (Entry, error)
}

type Service struct {
	repo      Repository
	roster    *roster.Service
	committer core.Committer
	audit     audit.Sink
	metrics   core.Metrics
}

func NewService(repo Repository, rosterSvc *roster.Service, committer core.Committer, sink audit.Sink, metrics core.Metrics) *Service {
	if sink == nil {
		sink = audit.Discard
	}
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &Service{
		repo:      repo,
		roster:    rosterSvc,
		committer: committer,
		audit:     sink,
		metrics:   metrics,
	}
}

// Grant advances amount to the teacher.
func (svc *Service) Grant(ctx context.Context, actor user.Actor, teacherID string, amount decimal.Decimal, notes string) (Entry, error) {
	if !actor.IsAdmin() {
		return Entry{}, core.ErrForbidden
	}
	if !amount.IsPositive() {
		return Entry{}, core.NewFieldValidationError("amount", "must be greater than 0")
	}
	t, err := svc.roster.Teacher(ctx, teacherID)
	if err != nil {
		return Entry{}, err
	}

	e, err := svc.repo.CreateEntry(ctx, NewEntry(t.ID, amount, SourceGrant, notes, actor.ID))
	if err != nil {
		return Entry{}, errors.Wrap(err, "creating advance entry")
	}

	f, _ := amount.Float64()
	svc.metrics.AdvanceGranted(f)
	svc.audit.LogEvent(ctx, audit.Event{
		Type:        audit.AdvanceGranted,
		ActorLabel:  actor.Label(),
		TeacherID:   t.ID,
		RefID:       e.ID,
		Description: "advance granted to " + t.Name,
		Amount:      audit.Amount(amount),
	})
	return e, nil
}

// Balance is what the teacher still owes across all entries.
func (svc *Service) Balance(ctx context.Context, teacherID string) (decimal.Decimal, error) {
	t, err := svc.roster.Teacher(ctx, teacherID)
	if err != nil {
		return decimal.Zero, err
	}
	entries, err := svc.repo.QueryEntries(ctx, Filter{TeacherID: t.ID, OnlyRemaining: true}, core.QueryOptions{})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "querying advance entries")
	}
	return Balance(entries), nil
}

func (svc *Service) List(ctx context.Context, actor user.Actor, teacherID string) ([]Entry, error) {
	teacherID = core.CleanString(teacherID)
	if !actor.CanActFor(teacherID) {
		return nil, core.ErrForbidden
	}
	t, err := svc.roster.Teacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	entries, err := svc.repo.QueryEntries(ctx, Filter{TeacherID: t.ID}, core.QueryOptions{Ordering: OldestFirst})
	return entries, errors.Wrap(err, "querying advance entries")
}

// StageDeduction plans an oldest-first deduction of up to requested and stages the entry updates in b.
// Nothing is written until b is committed; the caller must hold the teacher lock.
func (svc *Service) StageDeduction(ctx context.Context, b *core.Batch, teacherID string, requested decimal.Decimal) (decimal.Decimal, error) {
	if !requested.IsPositive() {
		return decimal.Zero, nil
	}
	entries, err := svc.repo.QueryEntries(ctx, Filter{TeacherID: teacherID, OnlyRemaining: true}, core.QueryOptions{Ordering: OldestFirst})
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "querying advance entries")
	}
	touched, deducted := PlanDeduction(entries, requested)
	for _, e := range touched {
		b.Update(e)
	}
	return deducted, nil
}

// Deduct takes up to requested off the teacher's advances on its own, e.g. for a cash repayment.
// The amount actually deducted is min(requested, balance).
func (svc *Service) Deduct(ctx context.Context, actor user.Actor, teacherID string, requested decimal.Decimal) (decimal.Decimal, error) {
	if !actor.IsAdmin() {
		return decimal.Zero, core.ErrForbidden
	}
	if !requested.IsPositive() {
		return decimal.Zero, core.NewFieldValidationError("amount", "must be greater than 0")
	}
	t, err := svc.roster.Teacher(ctx, teacherID)
	if err != nil {
		return decimal.Zero, err
	}

	unlock, err := svc.committer.Lock(ctx, t.ID)
	if err != nil {
		return decimal.Zero, errors.Wrap(err, "locking teacher")
	}
	defer unlock()

	b := core.NewBatch()
	deducted, err := svc.StageDeduction(ctx, b, t.ID, requested)
	if err != nil {
		return decimal.Zero, err
	}
	if b.Len() == 0 {
		return decimal.Zero, nil
	}
	if err := svc.committer.CommitBatch(ctx, b); err != nil {
		return decimal.Zero, errors.Wrap(err, "committing deduction")
	}

	svc.audit.LogEvent(ctx, audit.Event{
		Type:        audit.AdvanceDeducted,
		ActorLabel:  actor.Label(),
		TeacherID:   t.ID,
		Description: "advance repaid by " + t.Name,
		Amount:      audit.Amount(deducted),
	})
	return deducted, nil
}
