package inmemdb

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/settlement"
)

type paymentRepository struct {
	db *DB
}

var _ settlement.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(db *DB) settlement.Repository {
	return &paymentRepository{db: db}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p settlement.Payment) (settlement.Payment, error) {
	stored, err := repo.db.commitOne(ctx, core.OpCreate, p)
	if err != nil {
		return settlement.Payment{}, errors.Wrap(err, "creating payment")
	}
	return stored.(settlement.Payment), nil
}

func (repo *paymentRepository) GetPayment(_ context.Context, id string) (settlement.Payment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if p, ok := repo.db.records[core.KindPayment][id]; ok {
		return p.(settlement.Payment), nil
	}
	return settlement.Payment{}, settlement.ErrNotFound
}

func (repo *paymentRepository) QueryPayments(_ context.Context, f settlement.Filter, opts core.QueryOptions) ([]settlement.Payment, error) {
	for _, ord := range opts.Ordering {
		if !settlement.OrderingFields[ord.Field] {
			return nil, core.NewFieldValidationError("ordering", "unknown field "+ord.Field)
		}
	}

	repo.db.mu.RLock()
	ps := make([]settlement.Payment, 0)
	for _, r := range repo.db.records[core.KindPayment] {
		if p := r.(settlement.Payment); f.Match(p) {
			ps = append(ps, p)
		}
	}
	repo.db.mu.RUnlock()

	ords := append(append([]core.DBOrdering{}, opts.Ordering...), core.DBOrdering{Field: "id", Ascending: true})
	sortBy(len(ps),
		func(i, j int) { ps[i], ps[j] = ps[j], ps[i] },
		func(i int) fieldFunc {
			p := ps[i]
			return func(field string) interface{} {
				switch field {
				case "date_paid":
					return p.DatePaid
				case "class_id":
					return p.ClassID
				case "gross_amount":
					return p.GrossAmount
				default:
					return p.ID
				}
			}
		},
		ords,
	)
	return ps[:limit(len(ps), opts.Limit)], nil
}
