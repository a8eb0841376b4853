package core

import (
	"context"

	"github.com/pkg/errors"
)

type RecordKind string

const (
	KindAttendance RecordKind = "attendance"
	KindAdvance    RecordKind = "advance"
	KindPayment    RecordKind = "payment"
)

// Record is a validated row of one of the engine's record kinds.
type Record interface {
	RecordKind() RecordKind
	RecordID() string
	// RecordVersion is the version the record was read at; updates and deletes only apply
	// if the stored version still matches.
	RecordVersion() int64
	Validate() error
}

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

type Mutation struct {
	Op     Op
	Record Record
}

// Batch stages writes that must be applied together.
type Batch struct {
	mutations []Mutation
}

func NewBatch() *Batch { return &Batch{} }

func (b *Batch) Create(r Record) { b.add(OpCreate, r) }
func (b *Batch) Update(r Record) { b.add(OpUpdate, r) }
func (b *Batch) Delete(r Record) { b.add(OpDelete, r) }

func (b *Batch) add(op Op, r Record) {
	b.mutations = append(b.mutations, Mutation{Op: op, Record: r})
}

func (b *Batch) Mutations() []Mutation {
	muts := make([]Mutation, len(b.mutations))
	copy(muts, b.mutations)
	return muts
}

func (b *Batch) Len() int { return len(b.mutations) }

// Validate checks the shape of every staged record and that no record is staged twice.
func (b *Batch) Validate() error {
	seen := make(map[string]struct{}, len(b.mutations))
	for _, m := range b.mutations {
		key := string(m.Record.RecordKind()) + ":" + m.Record.RecordID()
		if _, dup := seen[key]; dup {
			return errors.Errorf("batch: %s staged more than once", key)
		}
		seen[key] = struct{}{}
		if m.Op == OpDelete {
			continue
		}
		if err := m.Record.Validate(); err != nil {
			return errors.Wrapf(err, "batch: invalid %s %s", m.Record.RecordKind(), m.Record.RecordID())
		}
	}
	return nil
}

// Locker serialises callers sharing scope (a teacher id) until unlock is called.
type Locker interface {
	Lock(ctx context.Context, scope string) (unlock func(), err error)
}

// Committer is the transactional surface every storage backend provides.
type Committer interface {
	Locker
	// CommitBatch applies every mutation of b or none of them.
	// A failed precondition (stale version, duplicate key, immutable record) returns ErrConflict.
	CommitBatch(ctx context.Context, b *Batch) error
}

// Metrics records engine outcomes; see services/metrics.
type Metrics interface {
	AttendanceToggled(action string)
	AttendanceVerified()
	AdvanceGranted(amount float64)
	SettlementCommitted(outcome string, seconds float64)
	PaymentRecorded(gross, deduction float64)
}

type nopMetrics struct{}

func (nopMetrics) AttendanceToggled(string) {}
func (nopMetrics) AttendanceVerified() {}
func (nopMetrics) AdvanceGranted(float64) {}
func (nopMetrics) SettlementCommitted(string, float64) {}
func (nopMetrics) PaymentRecorded(float64, float64) {}

// NopMetrics discards everything.
var NopMetrics Metrics = nopMetrics{}
