package database

import (
	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/settlement"
)

var (
	errNeverDeleted = core.NewValidationError(errors.New("advance entries are never deleted"))
	errImmutable    = core.NewValidationError(errors.New("payments are immutable"))
)

// CheckMutation checks m against the stored version of its record (nil when there is none).
// Stale or missing records are core.ErrConflict; everything else is a rule violation.
func CheckMutation(stored core.Record, m core.Mutation) error {
	r := m.Record
	switch m.Op {
	case core.OpCreate:
		if stored != nil {
			return errors.Wrapf(core.ErrConflict, "%s %s already exists", r.RecordKind(), r.RecordID())
		}
		return nil
	case core.OpUpdate, core.OpDelete:
		if stored == nil {
			return errors.Wrapf(core.ErrConflict, "%s %s no longer exists", r.RecordKind(), r.RecordID())
		}
		if stored.RecordVersion() != r.RecordVersion() {
			return errors.Wrapf(core.ErrConflict, "%s %s was modified (version %d, read at %d)",
				r.RecordKind(), r.RecordID(), stored.RecordVersion(), r.RecordVersion())
		}
	default:
		return errors.Errorf("unknown batch op %q", m.Op)
	}

	switch s := stored.(type) {
	case attendance.Record:
		if m.Op == core.OpDelete {
			if s.Status == attendance.StatusPaid {
				return attendance.ErrPaidRecordLocked
			}
			return nil
		}
		u, ok := r.(attendance.Record)
		if !ok {
			return errors.Errorf("attendance %s: unexpected %T", s.ID, r)
		}
		if u.Key().String() != s.Key().String() {
			return core.NewFieldValidationError("date", "teacher, class and date of a record cannot change")
		}
		return attendance.CheckTransition(s.Status, u.Status)
	case advance.Entry:
		if m.Op == core.OpDelete {
			return errNeverDeleted
		}
		u, ok := r.(advance.Entry)
		if !ok {
			return errors.Errorf("advance %s: unexpected %T", s.ID, r)
		}
		return advance.CheckDrain(s, u)
	case settlement.Payment:
		return errImmutable
	default:
		return errors.Errorf("unsupported record %T", stored)
	}
}

// WithVersion returns r stamped with version v.
func WithVersion(r core.Record, v int64) core.Record {
	switch x := r.(type) {
	case attendance.Record:
		x.Version = v
		return x
	case advance.Entry:
		x.Version = v
		return x
	default:
		return r
	}
}
