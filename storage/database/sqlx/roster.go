package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core/roster"
)

type rosterRepository struct {
	store *Store
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(store *Store) roster.Repository {
	return &rosterRepository{store: store}
}

func (repo *rosterRepository) get(ctx context.Context, dest interface{}, notFound error, query string, args ...interface{}) error {
	db := repo.store.db
	err := db.GetContext(ctx, dest, db.Rebind(query), args...)
	if errors.Is(err, sql.ErrNoRows) {
		return notFound
	}
	return err
}

func (repo *rosterRepository) GetTeacher(ctx context.Context, id string) (roster.Teacher, error) {
	var t roster.Teacher
	err := repo.get(ctx, &t, roster.ErrTeacherNotFound, "SELECT * FROM teachers WHERE id = ?", id)
	return t, err
}

func (repo *rosterRepository) GetClass(ctx context.Context, id string) (roster.Class, error) {
	var c roster.Class
	err := repo.get(ctx, &c, roster.ErrClassNotFound, "SELECT * FROM classes WHERE id = ?", id)
	return c, err
}

func (repo *rosterRepository) GetAssignment(ctx context.Context, teacherID, classID string) (roster.Assignment, error) {
	var a roster.Assignment
	err := repo.get(ctx, &a, roster.ErrAssignmentNotFound,
		"SELECT * FROM assignments WHERE teacher_id = ? AND class_id = ?", teacherID, classID)
	return a, err
}

func (repo *rosterRepository) QueryAssignments(ctx context.Context, teacherID string) ([]roster.Assignment, error) {
	asgns := make([]roster.Assignment, 0)
	db := repo.store.db
	err := db.SelectContext(ctx, &asgns, db.Rebind("SELECT * FROM assignments WHERE teacher_id = ? ORDER BY class_id"), teacherID)
	return asgns, errors.Wrap(err, "querying assignments")
}

func (repo *rosterRepository) SaveTeacher(ctx context.Context, t roster.Teacher) error {
	_, err := repo.store.db.NamedExecContext(ctx, `INSERT INTO teachers (id, name, email, is_active)
		VALUES (:id, :name, :email, :is_active)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, email = excluded.email, is_active = excluded.is_active`, t)
	return errors.Wrap(err, "saving teacher")
}

func (repo *rosterRepository) SaveClass(ctx context.Context, c roster.Class) error {
	_, err := repo.store.db.NamedExecContext(ctx, `INSERT INTO classes (id, name, batch_size)
		VALUES (:id, :name, :batch_size)
		ON CONFLICT (id) DO UPDATE SET name = excluded.name, batch_size = excluded.batch_size`, c)
	return errors.Wrap(err, "saving class")
}

func (repo *rosterRepository) SaveAssignment(ctx context.Context, a roster.Assignment) error {
	_, err := repo.store.db.NamedExecContext(ctx, `INSERT INTO assignments (teacher_id, class_id, rate)
		VALUES (:teacher_id, :class_id, :rate)
		ON CONFLICT (teacher_id, class_id) DO UPDATE SET rate = excluded.rate`, a)
	return errors.Wrap(err, "saving assignment")
}
