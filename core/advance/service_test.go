package advance_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/tests"
)

const teacherID = "teacher-1"

func setup(t *testing.T) *testutil.Env {
	env := testutil.NewEnv(testutil.InmemRepos())
	testutil.CreateTeacherInClass(t, env.Roster, teacherID, "class-1", 28000, 28)
	return env
}

func TestService_Grant(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name       string
		actorAdmin bool
		teacherID  string
		amount     string
		wantErr    func(error) bool
	}{
		{name: "grant", actorAdmin: true, teacherID: teacherID, amount: "2000"},
		{name: "teacher cannot grant", teacherID: teacherID, amount: "2000",
			wantErr: func(err error) bool { return errors.Is(err, core.ErrForbidden) }},
		{name: "zero amount", actorAdmin: true, teacherID: teacherID, amount: "0", wantErr: core.IsValidationError},
		{name: "negative amount", actorAdmin: true, teacherID: teacherID, amount: "-5", wantErr: core.IsValidationError},
		{name: "unknown teacher", actorAdmin: true, teacherID: "nobody", amount: "10", wantErr: core.IsValidationError},
		{name: "missing teacher", actorAdmin: true, amount: "10", wantErr: core.IsValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setup(t)
			actor := testutil.TeacherActor(teacherID)
			if tt.actorAdmin {
				actor = testutil.Admin
			}

			e, err := env.LedgerSvc.Grant(ctx, actor, tt.teacherID, testutil.Dec(tt.amount), " salary advance ")
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Errorf("Grant() unexpected error = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Grant() error = %v", err)
			}
			if !e.Remaining.Equal(e.Amount) || !e.Amount.Equal(testutil.Dec(tt.amount)) {
				t.Errorf("Grant() entry = %+v", e)
			}
			if e.Notes != "salary advance" || e.Source != advance.SourceGrant {
				t.Errorf("Grant() notes/source = %q/%q", e.Notes, e.Source)
			}
			balance, err := env.LedgerSvc.Balance(ctx, teacherID)
			if err != nil {
				t.Fatalf("Balance() error = %v", err)
			}
			if !balance.Equal(testutil.Dec(tt.amount)) {
				t.Errorf("Balance() = %s, want %s", balance, tt.amount)
			}
			if evts := env.Sink.Events(audit.AdvanceGranted); len(evts) != 1 || !evts[0].Amount.Equal(e.Amount) {
				t.Errorf("want one advance_granted event, got %+v", evts)
			}
		})
	}
}

func TestService_Deduct(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	old := testutil.CreateAdvance(t, env.Advances, teacherID, "1000", testutil.Day(2024, time.January, 1))
	recent := testutil.CreateAdvance(t, env.Advances, teacherID, "500", testutil.Day(2024, time.February, 1))

	deducted, err := env.LedgerSvc.Deduct(ctx, testutil.Admin, teacherID, testutil.Dec("1200"))
	if err != nil {
		t.Fatalf("Deduct() error = %v", err)
	}
	if !deducted.Equal(testutil.Dec("1200")) {
		t.Errorf("Deduct() = %s, want 1200", deducted)
	}

	got, err := env.Advances.GetEntry(ctx, old.ID)
	if err != nil {
		t.Fatalf("GetEntry() error = %v", err)
	}
	if !got.Remaining.IsZero() {
		t.Errorf("oldest entry remaining = %s, want 0", got.Remaining)
	}
	if got, _ = env.Advances.GetEntry(ctx, recent.ID); !got.Remaining.Equal(testutil.Dec("300")) {
		t.Errorf("recent entry remaining = %s, want 300", got.Remaining)
	}

	// overdraw is clamped, not an error
	deducted, err = env.LedgerSvc.Deduct(ctx, testutil.Admin, teacherID, testutil.Dec("5000"))
	if err != nil {
		t.Fatalf("Deduct() overdraw error = %v", err)
	}
	if !deducted.Equal(testutil.Dec("300")) {
		t.Errorf("Deduct() overdraw = %s, want 300", deducted)
	}
	balance, _ := env.LedgerSvc.Balance(ctx, teacherID)
	if !balance.IsZero() {
		t.Errorf("Balance() = %s, want 0", balance)
	}

	// nothing left
	if deducted, err = env.LedgerSvc.Deduct(ctx, testutil.Admin, teacherID, testutil.Dec("10")); err != nil || !deducted.IsZero() {
		t.Errorf("Deduct() on empty ledger = %s, %v", deducted, err)
	}

	entries, err := env.LedgerSvc.List(ctx, testutil.TeacherActor(teacherID), teacherID)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(entries) != 2 || entries[0].ID != old.ID {
		t.Errorf("List() = %+v, want both entries oldest first", entries)
	}
}

func TestService_BalanceAndList_teacherLookup(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	testutil.CreateAdvance(t, env.Advances, teacherID, "750", testutil.Day(2024, time.January, 1))

	tests := []struct {
		name      string
		teacherID string
		wantErr   func(error) bool
		wantLen   int
	}{
		{name: "known teacher", teacherID: teacherID, wantLen: 1},
		{name: "padded id", teacherID: " " + teacherID + " ", wantLen: 1},
		{name: "unknown teacher", teacherID: "nobody", wantErr: core.IsValidationError},
		{name: "missing teacher", teacherID: "", wantErr: core.IsValidationError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balance, err := env.LedgerSvc.Balance(ctx, tt.teacherID)
			entries, lErr := env.LedgerSvc.List(ctx, testutil.Admin, tt.teacherID)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Errorf("Balance() error = %v", err)
				}
				if !tt.wantErr(lErr) {
					t.Errorf("List() error = %v", lErr)
				}
				return
			}
			if err != nil || lErr != nil {
				t.Fatalf("Balance() error = %v, List() error = %v", err, lErr)
			}
			if !balance.Equal(testutil.Dec("750")) {
				t.Errorf("Balance() = %s, want 750", balance)
			}
			if len(entries) != tt.wantLen {
				t.Errorf("List() returned %d entries, want %d", len(entries), tt.wantLen)
			}
		})
	}
}

func TestService_StageDeduction_writesNothingUntilCommitted(t *testing.T) {
	env := setup(t)
	ctx := context.Background()
	testutil.CreateAdvance(t, env.Advances, teacherID, "1000", testutil.Day(2024, time.January, 1))

	b := core.NewBatch()
	deducted, err := env.LedgerSvc.StageDeduction(ctx, b, teacherID, decimal.NewFromInt(400))
	if err != nil {
		t.Fatalf("StageDeduction() error = %v", err)
	}
	if !deducted.Equal(decimal.NewFromInt(400)) || b.Len() != 1 {
		t.Fatalf("StageDeduction() = %s with %d staged, want 400 with 1", deducted, b.Len())
	}
	if balance, _ := env.LedgerSvc.Balance(ctx, teacherID); !balance.Equal(decimal.NewFromInt(1000)) {
		t.Errorf("Balance() before commit = %s, want 1000", balance)
	}
	if err = env.Committer.CommitBatch(ctx, b); err != nil {
		t.Fatalf("CommitBatch() error = %v", err)
	}
	if balance, _ := env.LedgerSvc.Balance(ctx, teacherID); !balance.Equal(decimal.NewFromInt(600)) {
		t.Errorf("Balance() after commit = %s, want 600", balance)
	}

	// the same staged deduction cannot be applied twice
	if err = env.Committer.CommitBatch(ctx, b); !errors.Is(err, core.ErrConflict) {
		t.Errorf("CommitBatch() replay error = %v, want ErrConflict", err)
	}
}
