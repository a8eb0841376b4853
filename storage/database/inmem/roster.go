package inmemdb

import (
	"context"
	"sort"

	"github.com/trezcool/lecturepay/core/roster"
)

type rosterRepository struct {
	db *DB
}

var _ roster.Repository = (*rosterRepository)(nil)

func NewRosterRepository(db *DB) roster.Repository {
	return &rosterRepository{db: db}
}

func (repo *rosterRepository) GetTeacher(_ context.Context, id string) (roster.Teacher, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if t, ok := repo.db.teachers[id]; ok {
		return t, nil
	}
	return roster.Teacher{}, roster.ErrTeacherNotFound
}

func (repo *rosterRepository) GetClass(_ context.Context, id string) (roster.Class, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if c, ok := repo.db.classes[id]; ok {
		return c, nil
	}
	return roster.Class{}, roster.ErrClassNotFound
}

func (repo *rosterRepository) GetAssignment(_ context.Context, teacherID, classID string) (roster.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	if a, ok := repo.db.assignments[teacherID+"/"+classID]; ok {
		return a, nil
	}
	return roster.Assignment{}, roster.ErrAssignmentNotFound
}

func (repo *rosterRepository) QueryAssignments(_ context.Context, teacherID string) ([]roster.Assignment, error) {
	repo.db.mu.RLock()
	defer repo.db.mu.RUnlock()

	asgns := make([]roster.Assignment, 0)
	for _, a := range repo.db.assignments {
		if a.TeacherID == teacherID {
			asgns = append(asgns, a)
		}
	}
	sort.Slice(asgns, func(i, j int) bool { return asgns[i].ClassID < asgns[j].ClassID })
	return asgns, nil
}

func (repo *rosterRepository) SaveTeacher(_ context.Context, t roster.Teacher) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.teachers[t.ID] = t
	return nil
}

func (repo *rosterRepository) SaveClass(_ context.Context, c roster.Class) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.classes[c.ID] = c
	return nil
}

func (repo *rosterRepository) SaveAssignment(_ context.Context, a roster.Assignment) error {
	repo.db.mu.Lock()
	defer repo.db.mu.Unlock()
	repo.db.assignments[a.TeacherID+"/"+a.ClassID] = a
	return nil
}
