package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/attendance"
)

type attendanceRepository struct {
	db *DB
}

var _ attendance.Repository = (*attendanceRepository)(nil)

func NewAttendanceRepository(db *DB) attendance.Repository {
	return &attendanceRepository{db: db}
}

func (repo *attendanceRepository) CreateRecord(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	stored, err := repo.db.commitOne(ctx, core.OpCreate, r)
	if err != nil {
		return attendance.Record{}, err
	}
	return stored.(attendance.Record), nil
}

func (repo *attendanceRepository) GetRecord(_ context.Context, id string) (attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if rec, ok := repo.db.records[core.KindAttendance][id]; ok {
		return rec.(attendance.Record), nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) GetRecordByKey(_ context.Context, k attendance.Key) (attendance.Record, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if id, ok := repo.db.keys[k.String()]; ok {
		return repo.db.records[core.KindAttendance][id].(attendance.Record), nil
	}
	return attendance.Record{}, attendance.ErrNotFound
}

func (repo *attendanceRepository) QueryRecords(_ context.Context, f attendance.Filter, opts core.QueryOptions) ([]attendance.Record, error) {
	if err := attendance.CheckOrdering(opts.Ordering); err != nil {
		return nil, err
	}

	repo.db.mu.RLock()
	recs := make([]attendance.Record, 0)
	for _, r := range repo.db.records[core.KindAttendance] {
		if rec := r.(attendance.Record); f.Match(rec) {
			recs = append(recs, rec)
		}
	}
	repo.db.mu.RUnlock()

	ords := append(append([]core.DBOrdering{}, opts.Ordering...), core.DBOrdering{Field: "id", Ascending: true})
	sortBy(len(recs),
		func(i, j int) { recs[i], recs[j] = recs[j], recs[i] },
		func(i int) fieldFunc { return attendanceField(recs[i]) },
		ords,
	)
	return recs[:limit(len(recs), opts.Limit)], nil
}

func attendanceField(r attendance.Record) fieldFunc {
	return func(field string) interface{} {
		switch field {
		case "date":
			return r.Date
		case "marked_at":
			return r.MarkedAt
		case "status":
			return string(r.Status)
		case "class_id":
			return r.ClassID
		default:
			return r.ID
		}
	}
}

func (repo *attendanceRepository) UpdateRecord(ctx context.Context, r attendance.Record) (attendance.Record, error) {
	stored, err := repo.db.commitOne(ctx, core.OpUpdate, r)
	if err != nil {
		return attendance.Record{}, err
	}
	return stored.(attendance.Record), nil
}

func (repo *attendanceRepository) DeleteRecord(ctx context.Context, r attendance.Record) error {
	_, err := repo.db.commitOne(ctx, core.OpDelete, r)
	return errors.Wrap(err, "deleting attendance record")
}
