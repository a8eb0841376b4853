package testutil

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/settlement"
	"github.com/trezcool/lecturepay/core/user"
	"github.com/trezcool/lecturepay/storage/database/inmem"
)

var (
	Admin = user.NewActor("admin-1", "Ada Admin", user.RoleAdmin)
	Other = user.NewActor("teacher-2", "Tom Teacher", user.RoleTeacher)
)

// TeacherActor is the actor of a teacher acting on their own calendar.
func TeacherActor(id string) user.Actor {
	return user.NewActor(id, "Teacher "+id, user.RoleTeacher)
}

// Repos is a set of repositories sharing one backend.
type Repos struct {
	Committer  core.Committer
	Attendance attendance.Repository
	Advances   advance.Repository
	Payments   settlement.Repository
	Roster     roster.Repository
	Audit      audit.Repository
}

func InmemRepos() Repos {
	db := inmemdb.Open()
	return Repos{
		Committer:  db,
		Attendance: inmemdb.NewAttendanceRepository(db),
		Advances:   inmemdb.NewAdvanceRepository(db),
		Payments:   inmemdb.NewPaymentRepository(db),
		Roster:     inmemdb.NewRosterRepository(db),
		Audit:      inmemdb.NewAuditRepository(db),
	}
}

// Env wires every service over Repos, with a recording audit sink.
type Env struct {
	Repos
	Sink          *RecordingSink
	RosterSvc     *roster.Service
	AttendanceSvc *attendance.Service
	LedgerSvc     *advance.Service
	SettlementSvc *settlement.Service
}

func NewEnv(repos Repos) *Env {
	sink := new(RecordingSink)
	rosterSvc := roster.NewService(repos.Roster)
	ledgerSvc := advance.NewService(repos.Advances, rosterSvc, repos.Committer, sink, nil)
	return &Env{
		Repos:         repos,
		Sink:          sink,
		RosterSvc:     rosterSvc,
		AttendanceSvc: attendance.NewService(repos.Attendance, rosterSvc, repos.Committer, sink, nil),
		LedgerSvc:     ledgerSvc,
		SettlementSvc: settlement.NewService(settlement.Deps{
			Payments:   repos.Payments,
			Attendance: repos.Attendance,
			Ledger:     ledgerSvc,
			Roster:     rosterSvc,
			Committer:  repos.Committer,
			Audit:      sink,
		}),
	}
}

// Day returns midnight UTC of the given date.
func Day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// Days returns n consecutive days starting at from.
func Days(from time.Time, n int) []time.Time {
	days := make([]time.Time, n)
	for i := range days {
		days[i] = from.AddDate(0, 0, i)
	}
	return days
}

func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// CreateTeacherInClass seeds a teacher assigned to a class paid rate per batchSize lectures.
func CreateTeacherInClass(t *testing.T, repo roster.Repository, teacherID, classID string, rate int64, batchSize int) {
	t.Helper()
	ctx := context.Background()
	if err := repo.SaveTeacher(ctx, roster.Teacher{ID: teacherID, Name: "Teacher " + teacherID, Email: teacherID + "@test.cd", IsActive: true}); err != nil {
		t.Fatalf("SaveTeacher() failed: %v", err)
	}
	if err := repo.SaveClass(ctx, roster.Class{ID: classID, Name: "Class " + classID, BatchSize: batchSize}); err != nil {
		t.Fatalf("SaveClass() failed: %v", err)
	}
	if err := repo.SaveAssignment(ctx, roster.Assignment{TeacherID: teacherID, ClassID: classID, Rate: decimal.NewFromInt(rate)}); err != nil {
		t.Fatalf("SaveAssignment() failed: %v", err)
	}
}

// CreateRecords stores records straight through the repository, bypassing the state machine.
func CreateRecords(t *testing.T, repo attendance.Repository, teacherID, classID string, status attendance.Status, days ...time.Time) []attendance.Record {
	t.Helper()
	recs := make([]attendance.Record, 0, len(days))
	for _, day := range days {
		now := core.Now()
		rec := attendance.Record{
			ID:        uuid.New().String(),
			TeacherID: teacherID,
			ClassID:   classID,
			Date:      day,
			Status:    status,
			MarkedBy:  Admin.ID,
			MarkedAt:  now,
		}
		if status != attendance.StatusSubmitted {
			rec.VerifiedAt = &now
		}
		if status == attendance.StatusPaid {
			rec.PaymentID = uuid.New().String()
		}
		rec, err := repo.CreateRecord(context.Background(), rec)
		if err != nil {
			t.Fatalf("CreateRecord() failed: %v", err)
		}
		recs = append(recs, rec)
	}
	return recs
}

// CreateAdvance stores an advance entry dated at date.
func CreateAdvance(t *testing.T, repo advance.Repository, teacherID string, amount string, date time.Time) advance.Entry {
	t.Helper()
	e := advance.NewEntry(teacherID, Dec(amount), advance.SourceGrant, "test advance", Admin.ID)
	e.Date = date
	e, err := repo.CreateEntry(context.Background(), e)
	if err != nil {
		t.Fatalf("CreateEntry() failed: %v", err)
	}
	return e
}

// RecordingSink keeps every event it receives.
type RecordingSink struct {
	mu     sync.Mutex
	events []audit.Event
}

func (s *RecordingSink) LogEvent(_ context.Context, evt audit.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, evt)
}

func (s *RecordingSink) Events(types ...audit.EventType) []audit.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(types) == 0 {
		return append([]audit.Event{}, s.events...)
	}
	var evts []audit.Event
	for _, evt := range s.events {
		for _, typ := range types {
			if evt.Type == typ {
				evts = append(evts, evt)
			}
		}
	}
	return evts
}

func NewID() string {
	return uuid.New().String()
}
