package attendance

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/user"
)

type Repository interface {
	// CreateRecord fails with core.ErrConflict if a record already exists for r.Key().
	CreateRecord(ctx context.Context, r Record) (Record, error)
	GetRecord(ctx context.Context, id string) (Record, error)
	GetRecordByKey(ctx context.Context, k Key) (Record, error)
	QueryRecords(ctx context.Context, f Filter, opts core.QueryOptions) ([]Record, error)
	// UpdateRecord and DeleteRecord fail with core.ErrConflict unless r.Version is the stored version.
	UpdateRecord(ctx context.Context, r Record) (Record, error)
	DeleteRecord(ctx context.Context, r Record) error
}

type Service struct {
	repo      Repository
	roster    *roster.Service
	committer core.Committer
	audit     audit.Sink
	metrics   core.Metrics
}

func NewService(repo Repository, rosterSvc *roster.Service, committer core.Committer, sink audit.Sink, metrics core.Metrics) *Service {
	if sink == nil {
		sink = audit.Discard
	}
	if metrics == nil {
		metrics = core.NopMetrics
	}
	return &Service{
		repo:      repo,
		roster:    rosterSvc,
		committer: committer,
		audit:     sink,
		metrics:   metrics,
	}
}

type ToggleResult struct {
	Marked bool   `json:"marked"` // false: the record was removed
	Record Record `json:"record"`
}

// Toggle marks the lecture of teacherID in classID on date, or un-marks it if it is already marked.
// Admin marks are verified straight away.
func (svc *Service) Toggle(ctx context.Context, actor user.Actor, teacherID, classID string, date time.Time) (ToggleResult, error) {
	teacherID = core.CleanString(teacherID)
	classID = core.CleanString(classID)
	if !actor.CanActFor(teacherID) {
		return ToggleResult{}, core.ErrForbidden
	}
	if date.IsZero() {
		return ToggleResult{}, core.NewFieldValidationError("date", "this field is required")
	}
	if _, err := svc.roster.Pay(ctx, teacherID, classID); err != nil {
		return ToggleResult{}, err
	}

	unlock, err := svc.committer.Lock(ctx, teacherID)
	if err != nil {
		return ToggleResult{}, errors.Wrap(err, "locking teacher")
	}
	defer unlock()

	key := Key{TeacherID: teacherID, ClassID: classID, Date: core.Day(date)}
	rec, err := svc.repo.GetRecordByKey(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return svc.mark(ctx, actor, key)
	}
	if err != nil {
		return ToggleResult{}, errors.Wrap(err, "getting attendance record")
	}

	if err := rec.CheckToggle(actor.IsAdmin()); err != nil {
		return ToggleResult{}, err
	}
	if err := svc.repo.DeleteRecord(ctx, rec); err != nil {
		return ToggleResult{}, errors.Wrap(err, "deleting attendance record")
	}

	svc.metrics.AttendanceToggled("removed")
	svc.audit.LogEvent(ctx, audit.Event{
		Type:        audit.LectureRemoved,
		ActorLabel:  actor.Label(),
		TeacherID:   teacherID,
		RefID:       rec.ID,
		Description: "lecture removed: " + key.String(),
	})
	return ToggleResult{Marked: false, Record: rec}, nil
}

func (svc *Service) mark(ctx context.Context, actor user.Actor, key Key) (ToggleResult, error) {
	now := core.Now()
	rec := Record{
		ID:        uuid.New().String(),
		TeacherID: key.TeacherID,
		ClassID:   key.ClassID,
		Date:      key.Date,
		Status:    StatusSubmitted,
		MarkedBy:  actor.ID,
		MarkedAt:  now,
	}
	if actor.IsAdmin() {
		rec.Status = StatusVerified
		rec.VerifiedAt = &now
	}

	rec, err := svc.repo.CreateRecord(ctx, rec)
	if err != nil {
		return ToggleResult{}, errors.Wrap(err, "creating attendance record")
	}

	svc.metrics.AttendanceToggled("marked")
	svc.audit.LogEvent(ctx, audit.Event{
		Type:        audit.LectureMarked,
		ActorLabel:  actor.Label(),
		TeacherID:   key.TeacherID,
		RefID:       rec.ID,
		Description: "lecture marked (" + string(rec.Status) + "): " + key.String(),
	})
	return ToggleResult{Marked: true, Record: rec}, nil
}

// Verify confirms a submitted record. Verifying a verified record succeeds without doing anything.
func (svc *Service) Verify(ctx context.Context, actor user.Actor, attendanceID string) (Record, error) {
	if !actor.IsAdmin() {
		return Record{}, core.ErrForbidden
	}
	rec, err := svc.repo.GetRecord(ctx, core.CleanString(attendanceID))
	if err != nil {
		return Record{}, errors.Wrap(err, "getting attendance record")
	}

	unlock, err := svc.committer.Lock(ctx, rec.TeacherID)
	if err != nil {
		return Record{}, errors.Wrap(err, "locking teacher")
	}
	defer unlock()

	// re-read under the lock
	if rec, err = svc.repo.GetRecord(ctx, rec.ID); err != nil {
		return Record{}, errors.Wrap(err, "getting attendance record")
	}
	switch rec.Status {
	case StatusPaid:
		return Record{}, ErrPaidRecordLocked
	case StatusVerified:
		return rec, nil
	}

	now := core.Now()
	upd := rec
	upd.Status = StatusVerified
	upd.VerifiedAt = &now
	upd, err = svc.repo.UpdateRecord(ctx, upd)
	if errors.Is(err, core.ErrConflict) {
		// someone else got there first
		cur, gErr := svc.repo.GetRecord(ctx, rec.ID)
		if gErr != nil {
			return Record{}, errors.Wrap(gErr, "getting attendance record")
		}
		switch cur.Status {
		case StatusVerified:
			return cur, nil
		case StatusPaid:
			return Record{}, ErrPaidRecordLocked
		}
	}
	if err != nil {
		return Record{}, errors.Wrap(err, "verifying attendance record")
	}

	svc.metrics.AttendanceVerified()
	svc.audit.LogEvent(ctx, audit.Event{
		Type:        audit.LectureVerified,
		ActorLabel:  actor.Label(),
		TeacherID:   rec.TeacherID,
		RefID:       rec.ID,
		Description: "lecture verified: " + rec.Key().String(),
	})
	return upd, nil
}

func (svc *Service) Get(ctx context.Context, actor user.Actor, id string) (Record, error) {
	rec, err := svc.repo.GetRecord(ctx, core.CleanString(id))
	if err != nil {
		return Record{}, err
	}
	if !actor.CanActFor(rec.TeacherID) {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

// List returns the records of f.TeacherID, oldest first unless opts says otherwise.
func (svc *Service) List(ctx context.Context, actor user.Actor, f Filter, opts core.QueryOptions) ([]Record, error) {
	if err := f.Clean(); err != nil {
		return nil, err
	}
	if f.TeacherID == "" {
		return nil, core.NewFieldValidationError("teacher_id", "this field is required")
	}
	if !actor.CanActFor(f.TeacherID) {
		return nil, core.ErrForbidden
	}
	if err := CheckOrdering(opts.Ordering); err != nil {
		return nil, err
	}
	if len(opts.Ordering) == 0 {
		opts.Ordering = OldestFirst
	}
	recs, err := svc.repo.QueryRecords(ctx, f, opts)
	return recs, errors.Wrap(err, "querying attendance records")
}

// PendingCount is the number of verified, unpaid lectures. It is advisory only.
func (svc *Service) PendingCount(ctx context.Context, teacherID, classID string) (int, error) {
	recs, err := svc.repo.QueryRecords(ctx, Filter{
		TeacherID: core.CleanString(teacherID),
		ClassID:   core.CleanString(classID),
		Statuses:  []Status{StatusVerified},
	}, core.QueryOptions{})
	if err != nil {
		return 0, errors.Wrap(err, "querying attendance records")
	}
	return len(recs), nil
}
