// Package sqlxrepos stores the engine in postgres or sqlite. Batches run in one transaction;
// every update is conditioned on the version read, so a concurrent writer makes the batch fail
// with core.ErrConflict instead of being overwritten.
package sqlxrepos

import (
	"context"
	"database/sql"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"github.com/pkg/errors"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/settlement"
	"github.com/trezcool/lecturepay/storage/database"
)

type Store struct {
	core.Locker
	db *sqlx.DB
}

var _ core.Committer = (*Store)(nil)

// NewStore uses locker to serialise settlements per teacher, or an in-process lock when nil.
func NewStore(db *sqlx.DB, locker core.Locker) *Store {
	if locker == nil {
		locker = core.NewScopeLocks()
	}
	return &Store{Locker: locker, db: db}
}

func (s *Store) DB() *sqlx.DB { return s.db }

// CommitBatch applies every mutation of b in one transaction.
func (s *Store) CommitBatch(ctx context.Context, b *core.Batch) error {
	return s.commit(ctx, b, nil)
}

// commit applies b, then runs readBack in the same transaction before committing.
func (s *Store) commit(ctx context.Context, b *core.Batch, readBack func(tx *sqlx.Tx) error) (err error) {
	if err = b.Validate(); err != nil {
		return err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		if isBusy(err) {
			return errors.Wrapf(core.ErrConflict, "beginning transaction: %v", err)
		}
		return errors.Wrap(err, "beginning transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, m := range b.Mutations() {
		if err = s.apply(ctx, tx, m); err != nil {
			return err
		}
	}
	if readBack != nil {
		if err = readBack(tx); err != nil {
			return err
		}
	}
	if err = tx.Commit(); err != nil {
		if isBusy(err) {
			return errors.Wrapf(core.ErrConflict, "committing transaction: %v", err)
		}
		return errors.Wrap(err, "committing transaction")
	}
	return nil
}

func (s *Store) apply(ctx context.Context, tx *sqlx.Tx, m core.Mutation) error {
	kind, id := m.Record.RecordKind(), m.Record.RecordID()
	stored, err := load(ctx, tx, kind, id)
	if err != nil {
		return err
	}
	if err = database.CheckMutation(stored, m); err != nil {
		return err
	}

	var res sql.Result
	switch m.Op {
	case core.OpCreate:
		res, err = insert(ctx, tx, m.Record)
	case core.OpUpdate:
		res, err = update(ctx, tx, m.Record)
	case core.OpDelete:
		res, err = remove(ctx, tx, m.Record)
	}
	if err != nil {
		if isUniqueViolation(err) || isBusy(err) {
			return errors.Wrapf(core.ErrConflict, "%s %s: %v", kind, id, err)
		}
		return errors.Wrapf(err, "writing %s %s", kind, id)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrapf(err, "writing %s %s", kind, id)
	}
	if n == 0 {
		return errors.Wrapf(core.ErrConflict, "%s %s was modified concurrently", kind, id)
	}
	return nil
}

// commitOne runs a single mutation through the batch path and returns the stored record.
func (s *Store) commitOne(ctx context.Context, op core.Op, r core.Record) (core.Record, error) {
	b := core.NewBatch()
	switch op {
	case core.OpCreate:
		b.Create(r)
	case core.OpUpdate:
		b.Update(r)
	case core.OpDelete:
		b.Delete(r)
	}
	var stored core.Record
	err := s.commit(ctx, b, func(tx *sqlx.Tx) (err error) {
		if op != core.OpDelete {
			stored, err = load(ctx, tx, r.RecordKind(), r.RecordID())
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return stored, nil
}

// load returns the stored record, or nil when there is none.
func load(ctx context.Context, q sqlx.QueryerContext, kind core.RecordKind, id string) (core.Record, error) {
	var (
		rec core.Record
		err error
	)
	switch kind {
	case core.KindAttendance:
		var row attendanceRow
		if err = sqlx.GetContext(ctx, q, &row, rebind(q, "SELECT * FROM attendance WHERE id = ?"), id); err == nil {
			rec, err = row.record()
		}
	case core.KindAdvance:
		var row advanceRow
		if err = sqlx.GetContext(ctx, q, &row, rebind(q, "SELECT * FROM advance_entries WHERE id = ?"), id); err == nil {
			rec = row.entry()
		}
	case core.KindPayment:
		var row paymentRow
		if err = sqlx.GetContext(ctx, q, &row, rebind(q, "SELECT * FROM payments WHERE id = ?"), id); err == nil {
			rec, err = row.payment()
		}
	default:
		return nil, errors.Errorf("unsupported record kind %q", kind)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrapf(err, "loading %s %s", kind, id)
	}
	return rec, nil
}

func insert(ctx context.Context, tx *sqlx.Tx, r core.Record) (sql.Result, error) {
	switch x := r.(type) {
	case attendance.Record:
		return tx.NamedExecContext(ctx, `INSERT INTO attendance
			(id, teacher_id, class_id, date, status, payment_id, marked_by, marked_at, verified_at, version)
			VALUES (:id, :teacher_id, :class_id, :date, :status, :payment_id, :marked_by, :marked_at, :verified_at, 1)`,
			newAttendanceRow(x))
	case advance.Entry:
		return tx.NamedExecContext(ctx, `INSERT INTO advance_entries
			(id, teacher_id, amount, remaining_amount, date, notes, source, created_by, version)
			VALUES (:id, :teacher_id, :amount, :remaining_amount, :date, :notes, :source, :created_by, 1)`,
			newAdvanceRow(x))
	case settlement.Payment:
		return tx.NamedExecContext(ctx, `INSERT INTO payments
			(id, teacher_id, class_id, gross_amount, advance_deduction, net_disbursement, lecture_count,
			 date_paid, start_date_covered, end_date_covered, paid_by)
			VALUES (:id, :teacher_id, :class_id, :gross_amount, :advance_deduction, :net_disbursement, :lecture_count,
			 :date_paid, :start_date_covered, :end_date_covered, :paid_by)`,
			newPaymentRow(x))
	}
	return nil, errors.Errorf("cannot insert %T", r)
}

func update(ctx context.Context, tx *sqlx.Tx, r core.Record) (sql.Result, error) {
	switch x := r.(type) {
	case attendance.Record:
		return tx.NamedExecContext(ctx, `UPDATE attendance
			SET status = :status, payment_id = :payment_id, verified_at = :verified_at, version = version + 1
			WHERE id = :id AND version = :version`,
			newAttendanceRow(x))
	case advance.Entry:
		return tx.NamedExecContext(ctx, `UPDATE advance_entries
			SET remaining_amount = :remaining_amount, version = version + 1
			WHERE id = :id AND version = :version`,
			newAdvanceRow(x))
	}
	return nil, errors.Errorf("cannot update %T", r)
}

func remove(ctx context.Context, tx *sqlx.Tx, r core.Record) (sql.Result, error) {
	if x, ok := r.(attendance.Record); ok {
		return tx.ExecContext(ctx, tx.Rebind("DELETE FROM attendance WHERE id = ? AND version = ?"), x.ID, x.Version)
	}
	return nil, errors.Errorf("cannot delete %T", r)
}

func rebind(q sqlx.QueryerContext, query string) string {
	if ext, ok := q.(sqlx.ExtContext); ok {
		return ext.Rebind(query)
	}
	return query
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		}
	}
	// primary result codes only carry the message
	return strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isBusy reports a sqlite write lock held by another connection past the busy timeout.
func isBusy(err error) bool {
	var liteErr *sqlite.Error
	return errors.As(err, &liteErr) && liteErr.Code()&0xff == sqlite3.SQLITE_BUSY
}
