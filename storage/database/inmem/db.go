// Package inmemdb is the local, single-process backend. Batches are applied in two phases:
// every mutation is checked against the current state first, then all of them are applied.
package inmemdb

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/storage/database"
)

type (
	DB struct {
		*core.ScopeLocks

		mu      sync.RWMutex
		records map[core.RecordKind]map[string]core.Record
		keys    map[string]string // attendance.Key -> record id

		teachers    map[string]roster.Teacher
		classes     map[string]roster.Class
		assignments map[string]roster.Assignment // teacherID/classID

		events []audit.Event
	}
)

var _ core.Committer = (*DB)(nil)

func Open() *DB {
	return &DB{
		ScopeLocks: core.NewScopeLocks(),
		records: map[core.RecordKind]map[string]core.Record{
			core.KindAttendance: make(map[string]core.Record),
			core.KindAdvance:    make(map[string]core.Record),
			core.KindPayment:    make(map[string]core.Record),
		},
		keys:        make(map[string]string),
		teachers:    make(map[string]roster.Teacher),
		classes:     make(map[string]roster.Class),
		assignments: make(map[string]roster.Assignment),
	}
}

// CommitBatch applies every mutation of b or none of them.
func (db *DB) CommitBatch(ctx context.Context, b *core.Batch) error {
	_, err := db.commit(ctx, b)
	return err
}

// commit returns the records as stored by b, in batch order (nil for deletes).
func (db *DB) commit(ctx context.Context, b *core.Batch) ([]core.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	muts := b.Mutations()

	// phase 1: every precondition must hold
	staged := make(map[string]string) // keys claimed by this batch
	for _, m := range muts {
		stored := db.records[m.Record.RecordKind()][m.Record.RecordID()]
		if err := database.CheckMutation(stored, m); err != nil {
			return nil, err
		}
		if rec, ok := m.Record.(attendance.Record); ok && m.Op == core.OpCreate {
			k := rec.Key().String()
			if _, taken := db.keys[k]; taken {
				return nil, errors.Wrapf(core.ErrConflict, "attendance %s already marked", k)
			}
			if _, taken := staged[k]; taken {
				return nil, errors.Wrapf(core.ErrConflict, "attendance %s staged twice", k)
			}
			staged[k] = rec.ID
		}
	}

	// phase 2: apply; nothing here can fail
	stored := make([]core.Record, len(muts))
	for i, m := range muts {
		stored[i] = db.apply(m)
	}
	return stored, nil
}

func (db *DB) apply(m core.Mutation) core.Record {
	kind, id := m.Record.RecordKind(), m.Record.RecordID()
	table := db.records[kind]
	switch m.Op {
	case core.OpCreate:
		table[id] = database.WithVersion(m.Record, 1)
		if rec, ok := m.Record.(attendance.Record); ok {
			db.keys[rec.Key().String()] = id
		}
	case core.OpUpdate:
		table[id] = database.WithVersion(m.Record, m.Record.RecordVersion()+1)
	case core.OpDelete:
		if rec, ok := table[id].(attendance.Record); ok {
			delete(db.keys, rec.Key().String())
		}
		delete(table, id)
	}
	return table[id]
}

// commitOne runs a single mutation through the batch path and returns the stored record.
func (db *DB) commitOne(ctx context.Context, op core.Op, r core.Record) (core.Record, error) {
	b := core.NewBatch()
	switch op {
	case core.OpCreate:
		b.Create(r)
	case core.OpUpdate:
		b.Update(r)
	case core.OpDelete:
		b.Delete(r)
	}
	stored, err := db.commit(ctx, b)
	if err != nil {
		return nil, err
	}
	return stored[0], nil
}

// Reset drops everything, for tests.
func (db *DB) Reset() {
	fresh := Open()
	db.mu.Lock()
	defer db.mu.Unlock()
	db.records = fresh.records
	db.keys = fresh.keys
	db.teachers = fresh.teachers
	db.classes = fresh.classes
	db.assignments = fresh.assignments
	db.events = nil
}
