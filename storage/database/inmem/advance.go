package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
)

type advanceRepository struct {
	db *DB
}

var _ advance.Repository = (*advanceRepository)(nil)

func NewAdvanceRepository(db *DB) advance.Repository {
	return &advanceRepository{db: db}
}

func (repo *advanceRepository) CreateEntry(ctx context.Context, e advance.Entry) (advance.Entry, error) {
	stored, err := repo.db.commitOne(ctx, core.OpCreate, e)
	if err != nil {
		return advance.Entry{}, errors.Wrap(err, "creating advance entry")
	}
	return stored.(advance.Entry), nil
}

func (repo *advanceRepository) GetEntry(_ context.Context, id string) (advance.Entry, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if e, ok := repo.db.records[core.KindAdvance][id]; ok {
		return e.(advance.Entry), nil
	}
	return advance.Entry{}, advance.ErrNotFound
}

func (repo *advanceRepository) QueryEntries(_ context.Context, f advance.Filter, opts core.QueryOptions) ([]advance.Entry, error) {
	for _, ord := range opts.Ordering {
		if !advance.OrderingFields[ord.Field] {
			return nil, core.NewFieldValidationError("ordering", "unknown field "+ord.Field)
		}
	}

	repo.db.mu.RLock()
	entries := make([]advance.Entry, 0)
	for _, r := range repo.db.records[core.KindAdvance] {
		if e := r.(advance.Entry); f.Match(e) {
			entries = append(entries, e)
		}
	}
	repo.db.mu.RUnlock()

	ords := append(append([]core.DBOrdering{}, opts.Ordering...), core.DBOrdering{Field: "id", Ascending: true})
	sortBy(len(entries),
		func(i, j int) { entries[i], entries[j] = entries[j], entries[i] },
		func(i int) fieldFunc {
			e := entries[i]
			return func(field string) interface{} {
				switch field {
				case "date":
					return e.Date
				case "amount":
					return e.Amount
				case "remaining_amount":
					return e.Remaining
				default:
					return e.ID
				}
			}
		},
		ords,
	)
	return entries[:limit(len(entries), opts.Limit)], nil
}

func (repo *advanceRepository) UpdateEntry(ctx context.Context, e advance.Entry) (advance.Entry, error) {
	stored, err := repo.db.commitOne(ctx, core.OpUpdate, e)
	if err != nil {
		return advance.Entry{}, errors.Wrap(err, "updating advance entry")
	}
	return stored.(advance.Entry), nil
}
