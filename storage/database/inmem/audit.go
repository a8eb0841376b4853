package inmemdb

import (
	"context"

	"github.com/trezcool/lecturepay/core/audit"
)

type auditRepository struct {
	db *DB
}

var _ audit.Repository = (*auditRepository)(nil)

func NewAuditRepository(db *DB) audit.Repository {
	return &auditRepository{db: db}
}

func (repo *auditRepository) AppendEvent(_ context.Context, evt audit.Event) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.events = append(repo.db.events, evt)
	return nil
}

// QueryEvents returns the newest events first.
func (repo *auditRepository) QueryEvents(_ context.Context, teacherID string, limit int) ([]audit.Event, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	evts := make([]audit.Event, 0)
	for i := len(repo.db.events) - 1; i >= 0; i-- {
		if limit > 0 && len(evts) == limit {
			break
		}
		if evt := repo.db.events[i]; teacherID == "" || evt.TeacherID == teacherID {
			evts = append(evts, evt)
		}
	}
	return evts, nil
}
