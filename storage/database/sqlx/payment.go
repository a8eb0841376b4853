package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/settlement"
)

type paymentRepository struct {
	store *Store
}

var _ settlement.Repository = (*paymentRepository)(nil)

func NewPaymentRepository(store *Store) settlement.Repository {
	return &paymentRepository{store: store}
}

func (repo *paymentRepository) CreatePayment(ctx context.Context, p settlement.Payment) (settlement.Payment, error) {
	stored, err := repo.store.commitOne(ctx, core.OpCreate, p)
	if err != nil {
		return settlement.Payment{}, errors.Wrap(err, "creating payment")
	}
	return stored.(settlement.Payment), nil
}

func (repo *paymentRepository) GetPayment(ctx context.Context, id string) (settlement.Payment, error) {
	p, err := load(ctx, repo.store.db, core.KindPayment, id)
	if err != nil {
		return settlement.Payment{}, err
	}
	if p == nil {
		return settlement.Payment{}, settlement.ErrNotFound
	}
	return p.(settlement.Payment), nil
}

func (repo *paymentRepository) QueryPayments(ctx context.Context, f settlement.Filter, opts core.QueryOptions) ([]settlement.Payment, error) {
	order, err := orderBy(opts.Ordering, settlement.OrderingFields, "gross_amount")
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

	var rows []paymentRow
	db := repo.store.db
	q := db.Rebind("SELECT * FROM payments" + w.String() + order + limit(opts.Limit))
	if err := db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying payments")
	}
	ps := make([]settlement.Payment, 0, len(rows))
	for _, row := range rows {
		p, err := row.payment()
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, nil
}
