package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/attendance"
)

type attendanceRepository struct {
	store *Store
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(store *Store) attendance.Repository {
	return &attendanceRepository{store: store}
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	stored, err := repo.store.commitOne(ctx, core.OpCreate, r)
	if err != nil {
		return attendance.Record{}, err
	}
	return stored.(attendance.Record), nil
}

func (repo *attendanceRepository) GetRecord(ctx context.Context, id string) (attendance.Record, error) {
	rec, err := load(ctx, repo.store.db, core.KindAttendance, id)
	if err != nil {
		return attendance.Record{}, err
	}
	if rec == nil {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return rec.(attendance.Record), nil
}

func (repo *attendanceRepository) GetRecordByKey(ctx context.Context, k attendance.Key) (attendance.Record, error) {
	recs, err := repo.query(ctx, "SELECT * FROM attendance WHERE teacher_id = ? AND class_id = ? AND date = ?",
		k.TeacherID, k.ClassID, core.FormatDay(k.Date))
	if err != nil {
		return attendance.Record{}, err
	}
	if len(recs) == 0 {
		return attendance.Record{}, attendance.ErrNotFound
	}
	return recs[0], nil
}

func (repo *attendanceRepository) QueryRecords(ctx context.Context, f attendance.Filter, opts core.QueryOptions) ([]attendance.Record, error) {
	order, err := orderBy(opts.Ordering, attendance.OrderingFields)
	if err != nil {
		return nil, err
	}

	w := new(where)
	if f.TeacherID != "" {
		w.add("teacher_id = ?", f.TeacherID)
	}
	if f.ClassID != "" {
		w.add("class_id = ?", f.ClassID)
	}
	if f.PaymentID != "" {
		w.add("payment_id = ?", f.PaymentID)
	}
	if len(f.Statuses) > 0 {
		args := make([]interface{}, len(f.Statuses))
		for i, s := range f.Statuses {
			args[i] = string(s)
		}
		w.add("status IN ("+placeholders(len(args))+")", args...)
	}
	if !f.From.IsZero() {
		w.add("date >= ?", core.FormatDay(f.From))
	}
	if !f.To.IsZero() {
		w.add("date <= ?", core.FormatDay(f.To))
	}
	return repo.query(ctx, "SELECT * FROM attendance"+w.String()+order+limit(opts.Limit), w.args...)
}

func (repo *attendanceRepository) query(ctx context.Context, query string, args ...interface{}) ([]attendance.Record, error) {
	var rows []attendanceRow
	db := repo.store.db
	if err := db.SelectContext(ctx, &rows, db.Rebind(query), args...); err != nil {
		return nil, errors.Wrap(err, "querying attendance")
	}
	recs := make([]attendance.Record, 0, len(rows))
	for _, row := range rows {
		rec, err := row.record()
		if err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	stored, err := repo.store.commitOne(ctx, core.OpUpdate, r)
	if err != nil {
		return attendance.Record{}, err
	}
	return stored.(attendance.Record), nil
}

func (repo *attendanceRepository) DeleteRecord(ctx context.Context, r attendance.Record) error {
	_, err := repo.store.commitOne(ctx, core.OpDelete, r)
	return err
}
