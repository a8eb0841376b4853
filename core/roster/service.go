package roster

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
)

var (
	// errors
	ErrTeacherNotFound    = errors.New("teacher not found")
	ErrClassNotFound      = errors.New("class not found")
	ErrAssignmentNotFound = errors.New("teacher is not assigned to this class")
)

// Repository gives read access to the roster, which is owned by the staff subsystem.
// The Save methods exist so the roster can be seeded.
type Repository interface {
	GetTeacher(ctx context.Context, id string) (Teacher, error)
	GetClass(ctx context.Context, id string) (Class, error)
	GetAssignment(ctx context.Context, teacherID, classID string) (Assignment, error)
	QueryAssignments(ctx context.Context, teacherID string) ([]Assignment, error)

	SaveTeacher(ctx context.Context, t Teacher) error
	SaveClass(ctx context.Context, c Class) error
	SaveAssignment(ctx context.Context, a Assignment) error
}

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Teacher returns the teacher, turning a missing one into a ValidationError.
func (svc *Service) Teacher(ctx context.Context, teacherID string) (Teacher, error) {
	teacherID = core.CleanString(teacherID)
	if teacherID == "" {
		return Teacher{}, core.NewFieldValidationError("teacher_id", "this field is required")
	}
	t, err := svc.repo.GetTeacher(ctx, teacherID)
	if err != nil {
		if errors.Is(err, ErrTeacherNotFound) {
			return Teacher{}, core.NewValidationError(err, core.FieldError{Field: "teacher_id", Error: err.Error()})
		}
		return Teacher{}, errors.Wrap(err, "getting teacher")
	}
	return t, nil
}

// Pay returns what a teacher earns in a class, turning unknown ids into ValidationErrors.
func (svc *Service) Pay(ctx context.Context, teacherID, classID string) (Pay, error) {
	classID = core.CleanString(classID)
	if classID == "" {
		return Pay{}, core.NewFieldValidationError("class_id", "this field is required")
	}
	if _, err := svc.Teacher(ctx, teacherID); err != nil {
		return Pay{}, err
	}
	asgn, err := svc.repo.GetAssignment(ctx, core.CleanString(teacherID), classID)
	if err != nil {
		if errors.Is(err, ErrAssignmentNotFound) {
			return Pay{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Pay{}, errors.Wrap(err, "getting assignment")
	}
	return svc.join(ctx, asgn)
}

// Pays returns every assignment of the teacher with its class.
func (svc *Service) Pays(ctx context.Context, teacherID string) ([]Pay, error) {
	t, err := svc.Teacher(ctx, teacherID)
	if err != nil {
		return nil, err
	}
	asgns, err := svc.repo.QueryAssignments(ctx, t.ID)
	if err != nil {
		return nil, errors.Wrap(err, "querying assignments")
	}
	pays := make([]Pay, 0, len(asgns))
	for _, asgn := range asgns {
		p, err := svc.join(ctx, asgn)
		if err != nil {
			return nil, err
		}
		pays = append(pays, p)
	}
	return pays, nil
}

func (svc *Service) join(ctx context.Context, asgn Assignment) (Pay, error) {
	class, err := svc.repo.GetClass(ctx, asgn.ClassID)
	if err != nil {
		return Pay{}, errors.Wrapf(err, "getting class %s", asgn.ClassID)
	}
	return Pay{Assignment: asgn, Class: class}, nil
}

func (svc *Service) AddTeacher(ctx context.Context, t Teacher) (Teacher, error) {
	if err := t.Validate(); err != nil {
		return Teacher{}, err
	}
	return t, errors.Wrap(svc.repo.SaveTeacher(ctx, t), "saving teacher")
}

func (svc *Service) AddClass(ctx context.Context, c Class) (Class, error) {
	if err := c.Validate(); err != nil {
		return Class{}, err
	}
	return c, errors.Wrap(svc.repo.SaveClass(ctx, c), "saving class")
}

func (svc *Service) Assign(ctx context.Context, a Assignment) (Assignment, error) {
	if err := a.Validate(); err != nil {
		return Assignment{}, err
	}
	if _, err := svc.Teacher(ctx, a.TeacherID); err != nil {
		return Assignment{}, err
	}
	if _, err := svc.repo.GetClass(ctx, a.ClassID); err != nil {
		if errors.Is(err, ErrClassNotFound) {
			return Assignment{}, core.NewValidationError(err, core.FieldError{Field: "class_id", Error: err.Error()})
		}
		return Assignment{}, errors.Wrap(err, "getting class")
	}
	return a, errors.Wrap(svc.repo.SaveAssignment(ctx, a), "saving assignment")
}
