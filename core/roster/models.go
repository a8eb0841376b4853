package roster

import (
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
)

type Teacher struct {
	ID       string `json:"id" db:"id" validate:"required,id"`
	Name     string `json:"name" db:"name" validate:"required"`
	Email    string `json:"email" db:"email" validate:"omitempty,email"`
	IsActive bool   `json:"is_active" db:"is_active"`
}

func (t *Teacher) Validate() error {
	t.ID = core.CleanString(t.ID)
	t.Name = core.CleanString(t.Name)
	t.Email = core.CleanString(t.Email, true /* lower */)
	return core.TranslateValidationErrors(core.Validate.Struct(t))
}

// Class is a ClassConfig: BatchSize lectures make up one full billing cycle.
type Class struct {
	ID        string `json:"id" db:"id" validate:"required,id"`
	Name      string `json:"name" db:"name" validate:"required"`
	BatchSize int    `json:"batch_size" db:"batch_size" validate:"gt=0"`
}

func (c *Class) Validate() error {
	c.ID = core.CleanString(c.ID)
	c.Name = core.CleanString(c.Name)
	return core.TranslateValidationErrors(core.Validate.Struct(c))
}

// Assignment is a TeacherAssignment: Rate is paid per full cycle of the class.
type Assignment struct {
	TeacherID string          `json:"teacher_id" db:"teacher_id" validate:"required,id"`
	ClassID   string          `json:"class_id" db:"class_id" validate:"required,id"`
	Rate      decimal.Decimal `json:"rate" db:"rate" validate:"gt=0"`
}

func (a *Assignment) Validate() error {
	a.TeacherID = core.CleanString(a.TeacherID)
	a.ClassID = core.CleanString(a.ClassID)
	return core.TranslateValidationErrors(core.Validate.Struct(a))
}

// Pay is an assignment joined with its class, everything settlement needs to price lectures.
type Pay struct {
	Assignment
	Class Class `json:"class"`
}

func (p Pay) RatePerLecture() decimal.Decimal {
	return p.Rate.Div(decimal.NewFromInt(int64(p.Class.BatchSize)))
}

// AmountFor prices n lectures, rounded to whole currency units.
// Multiplying before dividing keeps full cycles exact.
func (p Pay) AmountFor(n int) decimal.Decimal {
	if n <= 0 {
		return decimal.Zero
	}
	return p.Rate.Mul(decimal.NewFromInt(int64(n))).
		Div(decimal.NewFromInt(int64(p.Class.BatchSize))).
		Round(0)
}
