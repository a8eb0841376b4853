package attendance_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/tests"
)

const (
	teacherID = "teacher-1"
	classID   = "class-1"
)

var day = testutil.Day(2024, time.March, 4)

func setup(t *testing.T) *testutil.Env {
	env := testutil.NewEnv(testutil.InmemRepos())
	testutil.CreateTeacherInClass(t, env.Roster, teacherID, classID, 28000, 28)
	return env
}

func TestService_Toggle(t *testing.T) {
	ctx := context.Background()
	teacher := testutil.TeacherActor(teacherID)

	tests := []struct {
		name       string
		existing   attendance.Status // "" means no record
		asAdmin    bool
		wantErr    error
		wantMarked bool
		wantStatus attendance.Status
	}{
		{name: "teacher marks", asAdmin: false, wantMarked: true, wantStatus: attendance.StatusSubmitted},
		{name: "admin marks verified", asAdmin: true, wantMarked: true, wantStatus: attendance.StatusVerified},
		{name: "teacher un-marks submitted", existing: attendance.StatusSubmitted},
		{name: "admin un-marks submitted", existing: attendance.StatusSubmitted, asAdmin: true},
		{name: "admin retracts verified", existing: attendance.StatusVerified, asAdmin: true},
		{name: "teacher cannot touch verified", existing: attendance.StatusVerified, wantErr: attendance.ErrVerifiedRecordImmutable},
		{name: "teacher cannot touch paid", existing: attendance.StatusPaid, wantErr: attendance.ErrPaidRecordLocked},
		{name: "admin cannot touch paid", existing: attendance.StatusPaid, asAdmin: true, wantErr: attendance.ErrPaidRecordLocked},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			actor := teacher
			if tt.asAdmin {
				actor = testutil.Admin
			}
			var before []attendance.Record
			if tt.existing != "" {
				before = testutil.CreateRecords(t, env.Attendance, teacherID, classID, tt.existing, day)
			}

			res, err := env.AttendanceSvc.Toggle(ctx, actor, teacherID, classID, day.Add(15*time.Hour))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Toggle() error = %v, wantErr %v", err, tt.wantErr)
				}
				got, gErr := env.Attendance.GetRecord(ctx, before[0].ID)
				if gErr != nil {
					t.Fatalf("GetRecord() failed: %v", gErr)
				}
				if got.Status != before[0].Status || got.Version != before[0].Version {
					t.Errorf("record changed after failed toggle: %+v", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("Toggle() unexpected error = %v", err)
			}
			if res.Marked != tt.wantMarked {
				t.Errorf("Toggle() marked = %v, want %v", res.Marked, tt.wantMarked)
			}

			got, err := env.Attendance.GetRecordByKey(ctx, attendance.Key{TeacherID: teacherID, ClassID: classID, Date: day})
			if !tt.wantMarked {
				if !errors.Is(err, attendance.ErrNotFound) {
					t.Errorf("record still exists after un-mark: %+v, %v", got, err)
				}
				if len(env.Sink.Events(audit.LectureRemoved)) != 1 {
					t.Errorf("want one %q event", audit.LectureRemoved)
				}
				return
			}
			if err != nil {
				t.Fatalf("GetRecordByKey() failed: %v", err)
			}
			if got.Status != tt.wantStatus {
				t.Errorf("status = %s, want %s", got.Status, tt.wantStatus)
			}
			if !got.Date.Equal(day) {
				t.Errorf("date = %v, want %v", got.Date, day)
			}
			if got.MarkedBy != actor.ID || got.MarkedAt.IsZero() {
				t.Errorf("marked by/at not set: %+v", got)
			}
			if len(env.Sink.Events(audit.LectureMarked)) != 1 {
				t.Errorf("want one %q event", audit.LectureMarked)
			}
		})
	}
}

func TestService_Toggle_twiceIsNoop(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	teacher := testutil.TeacherActor(teacherID)

	for i, wantMarked := range []bool{true, false, true, false} {
		res, err := env.AttendanceSvc.Toggle(ctx, teacher, teacherID, classID, day)
		if err != nil {
			t.Fatalf("Toggle() #%d failed: %v", i, err)
		}
		if res.Marked != wantMarked {
			t.Errorf("Toggle() #%d marked = %v, want %v", i, res.Marked, wantMarked)
		}
	}
	recs, err := env.Attendance.QueryRecords(ctx, attendance.Filter{TeacherID: teacherID}, core.QueryOptions{})
	if err != nil {
		t.Fatalf("QueryRecords() failed: %v", err)
	}
	if len(recs) != 0 {
		t.Errorf("want no records, got %d", len(recs))
	}
}

func TestService_Toggle_rejected(t *testing.T) {
	env := setup(t)
	ctx := context.Background()

	tests := []struct {
		name       string
		teacherID  string
		classID    string
		date       time.Time
		forbidden  bool
		validation bool
	}{
		{name: "other teacher", teacherID: teacherID, classID: classID, date: day, forbidden: true},
		{name: "unknown teacher", teacherID: "nobody", classID: classID, date: day, validation: true},
		{name: "unknown class", teacherID: teacherID, classID: "class-404", date: day, validation: true},
		{name: "no date", teacherID: teacherID, classID: classID, validation: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			actor := testutil.Admin
			if tt.forbidden {
				actor = testutil.Other
			}
			_, err := env.AttendanceSvc.Toggle(ctx, actor, tt.teacherID, tt.classID, tt.date)
			if tt.forbidden && !errors.Is(err, core.ErrForbidden) {
				t.Errorf("Toggle() error = %v, want ErrForbidden", err)
			}
			if tt.validation && !core.IsValidationError(err) {
				t.Errorf("Toggle() error = %v, want a ValidationError", err)
			}
		})
	}
}

func TestService_Verify(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name     string
		existing attendance.Status
		asAdmin  bool
		wantErr  error
	}{
		{name: "submitted", existing: attendance.StatusSubmitted, asAdmin: true},
		{name: "already verified", existing: attendance.StatusVerified, asAdmin: true},
		{name: "paid", existing: attendance.StatusPaid, asAdmin: true, wantErr: attendance.ErrPaidRecordLocked},
		{name: "not admin", existing: attendance.StatusSubmitted, wantErr: core.ErrForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			actor := testutil.TeacherActor(teacherID)
			if tt.asAdmin {
				actor = testutil.Admin
			}
			rec := testutil.CreateRecords(t, env.Attendance, teacherID, classID, tt.existing, day)[0]

			_, err := env.AttendanceSvc.Verify(ctx, actor, rec.ID)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("Verify() error = %v, wantErr %v", err, tt.wantErr)
			}

			got, err := env.Attendance.GetRecord(ctx, rec.ID)
			if err != nil {
				t.Fatalf("GetRecord() failed: %v", err)
			}
			wantStatus := tt.existing
			if tt.wantErr == nil {
				wantStatus = attendance.StatusVerified
			}
			if got.Status != wantStatus {
				t.Errorf("status = %s, want %s", got.Status, wantStatus)
			}
		})
	}
}

func TestService_Verify_notFound(t *testing.T) {
	env := setup(t)
	if _, err := env.AttendanceSvc.Verify(context.Background(), testutil.Admin, "lol"); !errors.Is(err, attendance.ErrNotFound) {
		t.Errorf("Verify() error = %v, want ErrNotFound", err)
	}
}

func TestService_Verify_concurrent(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	rec := testutil.CreateRecords(t, env.Attendance, teacherID, classID, attendance.StatusSubmitted, day)[0]

	var wg sync.WaitGroup
	errs := make(chan error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.AttendanceSvc.Verify(ctx, testutil.Admin, rec.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Errorf("Verify() concurrent error = %v", err)
		}
	}
	if n := len(env.Sink.Events(audit.LectureVerified)); n != 1 {
		t.Errorf("want one verification event, got %d", n)
	}
}

func TestService_List(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	days := testutil.Days(day, 5)
	testutil.CreateRecords(t, env.Attendance, teacherID, classID, attendance.StatusVerified, days[:3]...)
	testutil.CreateRecords(t, env.Attendance, teacherID, classID, attendance.StatusSubmitted, days[3:]...)

	recs, err := env.AttendanceSvc.List(ctx, testutil.TeacherActor(teacherID), attendance.Filter{
		TeacherID: teacherID,
		From:      days[1],
		To:        days[3],
	}, core.QueryOptions{})
	if err != nil {
		t.Fatalf("List() failed: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("List() returned %d records, want 3", len(recs))
	}
	for i, rec := range recs {
		if !rec.Date.Equal(days[i+1]) {
			t.Errorf("recs[%d].Date = %v, want %v", i, rec.Date, days[i+1])
		}
	}

	if _, err = env.AttendanceSvc.List(ctx, testutil.Other, attendance.Filter{TeacherID: teacherID}, core.QueryOptions{}); !errors.Is(err, core.ErrForbidden) {
		t.Errorf("List() by other teacher error = %v, want ErrForbidden", err)
	}
	if _, err = env.AttendanceSvc.List(ctx, testutil.Admin, attendance.Filter{TeacherID: teacherID},
		core.QueryOptions{Ordering: core.ParseOrdering("-lol")}); !core.IsValidationError(err) {
		t.Errorf("List() with bad ordering error = %v, want a ValidationError", err)
	}

	n, err := env.AttendanceSvc.PendingCount(ctx, teacherID, classID)
	if err != nil {
		t.Fatalf("PendingCount() failed: %v", err)
	}
	if n != 3 {
		t.Errorf("PendingCount() = %d, want 3", n)
	}
}
