package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core/audit"
)

type auditRepository struct {
	store *Store
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(store *Store) audit.Repository {
	return &auditRepository{store: store}
}

func (repo *auditRepository) AppendEvent(ctx context.Context, evt audit.Event) error {
	_, err := repo.store.db.NamedExecContext(ctx, `INSERT INTO audit_events
		(id, type, actor_label, teacher_id, ref_id, description, amount, at)
		VALUES (:id, :type, :actor_label, :teacher_id, :ref_id, :description, :amount, :at)`, newEventRow(evt))
	return errors.Wrap(err, "appending audit event")
}

// QueryEvents returns the newest events first.
func (repo *auditRepository) QueryEvents(ctx context.Context, teacherID string, n int) ([]audit.Event, error) {
	w := new(where)
	if teacherID != "" {
		w.add("teacher_id = ?", teacherID)
	}

	var rows []eventRow
	db := repo.store.db
	q := db.Rebind("SELECT * FROM audit_events" + w.String() + " ORDER BY at DESC, id DESC" + limit(n))
	if err := db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "querying audit events")
	}
	evts := make([]audit.Event, 0, len(rows))
	for _, row := range rows {
		evts = append(evts, row.event())
	}
	return evts, nil
}
