package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
)

type advanceRepository struct {
	store *Store
}

var _ advance.Repository = (*advanceRepository)(nil)

func NewAdvanceRepository(store *Store) advance.Repository {
	return &advanceRepository{store: store}
}

func (repo *advanceRepository) CreateEntry(ctx context.Context, e advance.Entry) (advance.Entry, error) {
	stored, err := repo.store.commitOne(ctx, core.OpCreate, e)
	if err != nil {
		return advance.Entry{}, err
	}
	return stored.(advance.Entry), nil
}

func (repo *advanceRepository) GetEntry(ctx context.Context, id string) (advance.Entry, error) {
	e, err := load(ctx, repo.store.db, core.KindAdvance, id)
	if err != nil {
		return advance.Entry{}, err
	}
	if e == nil {
		return advance.Entry{}, advance.ErrNotFound
	}
	return e.(advance.Entry), nil
}

func (repo *advanceRepository) QueryEntries(ctx context.Context, f advance.Filter, opts core.QueryOptions) ([]advance.Entry, error) {
	order, err := orderBy(opts.Ordering, advance.OrderingFields, "amount", "remaining_amount")
	if err != nil {
		return nil, err
	}

	w := new(where)
	if f.TeacherID != "" {
		w.add("teacher_id = ?", f.TeacherID)
	}
	if f.OnlyRemaining {
		w.add("CAST(remaining_amount AS NUMERIC) > 0")
	}

	var rows []advanceRow
	db := repo.store.db
	q := db.Rebind("SELECT * FROM advance_entries" + w.String() + order + limit(opts.Limit))
	if err := db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying advance entries")
	}
	entries := make([]advance.Entry, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, row.entry())
	}
	return entries, nil
}

func (repo *advanceRepository) UpdateEntry(ctx context.Context, e advance.Entry) (advance.Entry, error) {
	stored, err := repo.store.commitOne(ctx, core.OpUpdate, e)
	if err != nil {
		return advance.Entry{}, err
	}
	return stored.(advance.Entry), nil
}
