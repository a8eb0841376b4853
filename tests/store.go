package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/settlement"
)

// RunStoreSuite checks the guarantees every backend must give the services.
// newRepos must return empty repositories on each call.
func RunStoreSuite(t *testing.T, newRepos func(t *testing.T) Repos) {
	ctx := context.Background()
	first := Day(2024, time.May, 6)

	t.Run("create stores version 1 and update bumps it", func(t *testing.T) {
		repos := newRepos(t)
		rec := CreateRecords(t, repos.Attendance, "t1", "c1", attendance.StatusSubmitted, first)[0]
		assert.EqualValues(t, 1, rec.Version)

		now := core.Now()
		rec.Status, rec.VerifiedAt = attendance.StatusVerified, &now
		updated, err := repos.Attendance.UpdateRecord(ctx, rec)
		require.NoError(t, err)
		assert.EqualValues(t, 2, updated.Version)

		got, err := repos.Attendance.GetRecord(ctx, rec.ID)
		require.NoError(t, err)
		assert.Equal(t, attendance.StatusVerified, got.Status)
		assert.True(t, got.Date.Equal(first))
	})

	t.Run("stale update is a conflict", func(t *testing.T) {
		repos := newRepos(t)
		rec := CreateRecords(t, repos.Attendance, "t1", "c1", attendance.StatusSubmitted, first)[0]
		now := core.Now()
		rec.Status, rec.VerifiedAt = attendance.StatusVerified, &now
		_, err := repos.Attendance.UpdateRecord(ctx, rec)
		require.NoError(t, err)

		_, err = repos.Attendance.UpdateRecord(ctx, rec) // still at version 1
		assert.True(t, errors.Is(err, core.ErrConflict), "error = %v", err)
	})

	t.Run("one record per teacher class and date", func(t *testing.T) {
		repos := newRepos(t)
		CreateRecords(t, repos.Attendance, "t1", "c1", attendance.StatusSubmitted, first)
		dup := attendance.Record{
			ID: "dup", TeacherID: "t1", ClassID: "c1", Date: first,
			Status: attendance.StatusSubmitted, MarkedBy: Admin.ID, MarkedAt: core.Now(),
		}
		_, err := repos.Attendance.CreateRecord(ctx, dup)
		assert.True(t, errors.Is(err, core.ErrConflict), "error = %v", err)

		// the key is free again once the record is gone
		rec, err := repos.Attendance.GetRecordByKey(ctx, dup.Key())
		require.NoError(t, err)
		require.NoError(t, repos.Attendance.DeleteRecord(ctx, rec))
		_, err = repos.Attendance.CreateRecord(ctx, dup)
		assert.NoError(t, err)
	})

	t.Run("paid records cannot change", func(t *testing.T) {
		repos := newRepos(t)
		rec := CreateRecords(t, repos.Attendance, "t1", "c1", attendance.StatusPaid, first)[0]

		back := rec
		back.Status, back.PaymentID = attendance.StatusVerified, ""
		_, err := repos.Attendance.UpdateRecord(ctx, back)
		assert.True(t, errors.Is(err, attendance.ErrPaidRecordLocked), "error = %v", err)

		err = repos.Attendance.DeleteRecord(ctx, rec)
		assert.True(t, errors.Is(err, attendance.ErrPaidRecordLocked), "error = %v", err)
	})

	t.Run("batch is all or nothing", func(t *testing.T) {
		repos := newRepos(t)
		recs := CreateRecords(t, repos.Attendance, "t1", "c1", attendance.StatusVerified, Days(first, 2)...)
		entry := CreateAdvance(t, repos.Advances, "t1", "1000", first)

		p := settlement.Payment{
			ID: "p1", TeacherID: "t1", ClassID: "c1",
			GrossAmount: Dec("2000"), AdvanceDeduction: Dec("1000"), NetDisbursement: Dec("1000"),
			LectureCount: 2, DatePaid: core.Now(), StartDateCovered: recs[0].Date, EndDateCovered: recs[1].Date,
			PaidBy: Admin.ID,
		}
		entry.Remaining = Dec("0")

		settle := func(lastVersion int64) *core.Batch {
			b := core.NewBatch()
			b.Create(p)
			b.Update(entry)
			for i, rec := range recs {
				rec.Status, rec.PaymentID = attendance.StatusPaid, p.ID
				if i == len(recs)-1 {
					rec.Version = lastVersion
				}
				b.Update(rec)
			}
			return b
		}

		err := repos.Committer.CommitBatch(ctx, settle(7))
		require.True(t, errors.Is(err, core.ErrConflict), "error = %v", err)

		_, err = repos.Payments.GetPayment(ctx, p.ID)
		assert.True(t, errors.Is(err, settlement.ErrNotFound), "payment must not be stored, error = %v", err)
		got, err := repos.Advances.GetEntry(ctx, entry.ID)
		require.NoError(t, err)
		assert.True(t, got.Remaining.Equal(Dec("1000")), "remaining = %s", got.Remaining)
		unpaid, err := repos.Attendance.QueryRecords(ctx, attendance.Filter{Statuses: []attendance.Status{attendance.StatusVerified}}, core.QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, unpaid, 2)

		require.NoError(t, repos.Committer.CommitBatch(ctx, settle(recs[1].Version)))
		paid, err := repos.Attendance.QueryRecords(ctx, attendance.Filter{PaymentID: p.ID}, core.QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, paid, 2)
		stored, err := repos.Payments.GetPayment(ctx, p.ID)
		require.NoError(t, err)
		assert.True(t, stored.NetDisbursement.Equal(Dec("1000")))
	})

	t.Run("ledger only drains", func(t *testing.T) {
		repos := newRepos(t)
		entry := CreateAdvance(t, repos.Advances, "t1", "1000", first)

		up := entry
		up.Remaining = Dec("1500")
		_, err := repos.Advances.UpdateEntry(ctx, up)
		assert.True(t, core.IsValidationError(err), "error = %v", err)

		up.Remaining = Dec("400")
		stored, err := repos.Advances.UpdateEntry(ctx, up)
		require.NoError(t, err)
		assert.True(t, stored.Remaining.Equal(Dec("400")))
		assert.True(t, stored.Amount.Equal(Dec("1000")))
	})

	t.Run("queries filter order and limit", func(t *testing.T) {
		repos := newRepos(t)
		days := Days(first, 4)
		CreateRecords(t, repos.Attendance, "t1", "c1", attendance.StatusVerified, days[2], days[0], days[3], days[1])
		CreateRecords(t, repos.Attendance, "t2", "c1", attendance.StatusVerified, days[0])

		recs, err := repos.Attendance.QueryRecords(ctx, attendance.Filter{TeacherID: "t1"},
			core.QueryOptions{Ordering: attendance.OldestFirst, Limit: 3})
		require.NoError(t, err)
		require.Len(t, recs, 3)
		for i, rec := range recs {
			assert.True(t, rec.Date.Equal(days[i]), "recs[%d].Date = %v", i, rec.Date)
		}

		from, to := days[1], days[2]
		recs, err = repos.Attendance.QueryRecords(ctx, attendance.Filter{TeacherID: "t1", From: from, To: to}, core.QueryOptions{})
		require.NoError(t, err)
		assert.Len(t, recs, 2)

		CreateAdvance(t, repos.Advances, "t1", "300", days[1])
		CreateAdvance(t, repos.Advances, "t1", "200", days[0])
		entries, err := repos.Advances.QueryEntries(ctx, advance.Filter{TeacherID: "t1", OnlyRemaining: true},
			core.QueryOptions{Ordering: advance.OldestFirst})
		require.NoError(t, err)
		require.Len(t, entries, 2)
		assert.True(t, entries[0].Amount.Equal(Dec("200")))
	})

	t.Run("audit trail", func(t *testing.T) {
		repos := newRepos(t)
		for i, typ := range []audit.EventType{audit.LectureMarked, audit.LectureVerified, audit.PaymentRecorded} {
			evt := audit.Event{
				ID:          NewID(),
				Type:        typ,
				ActorLabel:  Admin.Label(),
				TeacherID:   "t1",
				RefID:       "ref",
				Description: string(typ),
				At:          core.Now().Add(time.Duration(i) * time.Second),
			}
			if typ == audit.PaymentRecorded {
				evt.Amount = audit.Amount(Dec("1250.50"))
			}
			require.NoError(t, repos.Audit.AppendEvent(ctx, evt))
		}

		evts, err := repos.Audit.QueryEvents(ctx, "t1", 2)
		require.NoError(t, err)
		require.Len(t, evts, 2)
		assert.Equal(t, audit.PaymentRecorded, evts[0].Type, "newest first")
		require.NotNil(t, evts[0].Amount)
		assert.True(t, evts[0].Amount.Equal(Dec("1250.5")))
		assert.Nil(t, evts[1].Amount)
	})
}
