package echoapi_test

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	. "github.com/trezcool/lecturepay/apps/api/echo"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/settlement"
	reportsvc "github.com/trezcool/lecturepay/services/report"
	"github.com/trezcool/lecturepay/tests"
)

var march1 = testutil.Day(2024, time.March, 1)

func TestHome(t *testing.T) {
	a := setup(t)
	rec := a.do(t, nil, http.MethodGet, "/", nil)
	checkCode(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), `"status":"ok"`)
}

func TestMetrics(t *testing.T) {
	a := setup(t)
	rec := a.do(t, nil, http.MethodGet, "/metrics", nil)
	checkCode(t, rec, http.StatusOK)
	assert.Contains(t, rec.Body.String(), "go_goroutines")
}

func TestAuth(t *testing.T) {
	a := setup(t)

	rec := a.do(t, nil, http.MethodGet, "/v1/teachers/teacher-1/settlement", nil)
	checkCode(t, rec, http.StatusUnauthorized)
	var hErr httpErr
	decode(t, rec, &hErr)
	assert.Equal(t, "missing or malformed jwt", hErr.Error)

	rec = a.do(t, teacher2, http.MethodGet, "/v1/teachers/teacher-1/settlement", nil)
	checkCode(t, rec, http.StatusForbidden)

	rec = a.do(t, teacher1, http.MethodGet, "/v1/teachers/teacher-1/settlement", nil)
	checkCode(t, rec, http.StatusOK)
}

func TestAttendanceAPI_toggle(t *testing.T) {
	a := setup(t)
	body := ToggleRequest{TeacherID: "teacher-1", ClassID: "class-1", Date: "2024-03-01"}

	rec := a.do(t, teacher1, http.MethodPost, "/v1/attendance/toggle", body)
	checkCode(t, rec, http.StatusOK)
	var res attendance.ToggleResult
	decode(t, rec, &res)
	assert.True(t, res.Marked)
	assert.Equal(t, attendance.StatusSubmitted, res.Record.Status)
	assert.True(t, march1.Equal(res.Record.Date))

	rec = a.do(t, teacher1, http.MethodPost, "/v1/attendance/toggle", body)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &res)
	assert.False(t, res.Marked)

	cases := []struct {
		name     string
		body     ToggleRequest
		wantCode int
	}{
		{"other teacher", ToggleRequest{TeacherID: "teacher-2", ClassID: "class-1", Date: "2024-03-01"}, http.StatusForbidden},
		{"bad date", ToggleRequest{TeacherID: "teacher-1", ClassID: "class-1", Date: "01/03/2024"}, http.StatusBadRequest},
		{"not assigned", ToggleRequest{TeacherID: "teacher-1", ClassID: "class-9", Date: "2024-03-01"}, http.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			checkCode(t, a.do(t, teacher1, http.MethodPost, "/v1/attendance/toggle", tc.body), tc.wantCode)
		})
	}

	t.Run("verified record needs an admin", func(t *testing.T) {
		testutil.CreateRecords(t, a.env.Attendance, "teacher-1", "class-1", attendance.StatusVerified, march1.AddDate(0, 0, 1))
		rec := a.do(t, teacher1, http.MethodPost, "/v1/attendance/toggle",
			ToggleRequest{TeacherID: "teacher-1", ClassID: "class-1", Date: "2024-03-02"})
		checkCode(t, rec, http.StatusConflict)
	})

	t.Run("paid record is locked", func(t *testing.T) {
		testutil.CreateRecords(t, a.env.Attendance, "teacher-1", "class-1", attendance.StatusPaid, march1.AddDate(0, 0, 2))
		rec := a.do(t, admin, http.MethodPost, "/v1/attendance/toggle",
			ToggleRequest{TeacherID: "teacher-1", ClassID: "class-1", Date: "2024-03-03"})
		checkCode(t, rec, http.StatusConflict)
		var hErr httpErr
		decode(t, rec, &hErr)
		assert.Equal(t, attendance.ErrPaidRecordLocked.Error(), hErr.Error)
	})
}

func TestAttendanceAPI_verify(t *testing.T) {
	a := setup(t)
	recs := testutil.CreateRecords(t, a.env.Attendance, "teacher-1", "class-1", attendance.StatusSubmitted, march1)
	path := "/v1/attendance/" + recs[0].ID + "/verify"

	checkCode(t, a.do(t, teacher1, http.MethodPost, path, nil), http.StatusForbidden)
	checkCode(t, a.do(t, admin, http.MethodPost, "/v1/attendance/nope/verify", nil), http.StatusNotFound)

	rec := a.do(t, admin, http.MethodPost, path, nil)
	checkCode(t, rec, http.StatusOK)
	var got attendance.Record
	decode(t, rec, &got)
	assert.Equal(t, attendance.StatusVerified, got.Status)
	assert.NotNil(t, got.VerifiedAt)

	rec = a.do(t, teacher1, http.MethodGet, "/v1/attendance/"+recs[0].ID, nil)
	checkCode(t, rec, http.StatusOK)
	checkCode(t, a.do(t, teacher2, http.MethodGet, "/v1/attendance/"+recs[0].ID, nil), http.StatusNotFound)
}

func TestAttendanceAPI_query(t *testing.T) {
	a := setup(t)
	testutil.CreateRecords(t, a.env.Attendance, "teacher-1", "class-1", attendance.StatusVerified, testutil.Days(march1, 3)...)
	testutil.CreateRecords(t, a.env.Attendance, "teacher-1", "class-1", attendance.StatusSubmitted, march1.AddDate(0, 0, 5))

	tests := []struct {
		name      string
		query     string
		wantCode  int
		wantDates []string
	}{
		{"all, oldest first", "", http.StatusOK, []string{"2024-03-01", "2024-03-02", "2024-03-03", "2024-03-06"}},
		{"newest first", "?ordering=-date", http.StatusOK, []string{"2024-03-06", "2024-03-03", "2024-03-02", "2024-03-01"}},
		{"status", "?status=submitted", http.StatusOK, []string{"2024-03-06"}},
		{"range", "?from=2024-03-02&to=2024-03-03", http.StatusOK, []string{"2024-03-02", "2024-03-03"}},
		{"limit", "?limit=1", http.StatusOK, []string{"2024-03-01"}},
		{"other class", "?class_id=class-2", http.StatusOK, []string{}},
		{"bad status", "?status=lost", http.StatusBadRequest, nil},
		{"bad ordering", "?ordering=teacher_id;drop", http.StatusBadRequest, nil},
		{"bad day", "?from=yesterday", http.StatusBadRequest, nil},
		{"bad limit", "?limit=-1", http.StatusBadRequest, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := a.do(t, teacher1, http.MethodGet, "/v1/teachers/teacher-1/attendance"+tc.query, nil)
			checkCode(t, rec, tc.wantCode)
			if tc.wantDates == nil {
				return
			}
			var recs []attendance.Record
			decode(t, rec, &recs)
			dates := make([]string, len(recs))
			for i, r := range recs {
				dates[i] = r.Date.Format("2006-01-02")
			}
			assert.Equal(t, tc.wantDates, dates)
		})
	}

	checkCode(t, a.do(t, teacher2, http.MethodGet, "/v1/teachers/teacher-1/attendance", nil), http.StatusForbidden)
}

func TestSettlementAPI(t *testing.T) {
	a := setup(t)
	testutil.CreateRecords(t, a.env.Attendance, "teacher-1", "class-1", attendance.StatusVerified, testutil.Days(march1, 5)...)
	testutil.CreateAdvance(t, a.env.Advances, "teacher-1", "2000", march1.AddDate(0, -1, 0))
	path := "/v1/teachers/teacher-1/settlement"

	rec := a.do(t, teacher1, http.MethodGet, path, nil)
	checkCode(t, rec, http.StatusOK)
	var prop settlement.Proposal
	decode(t, rec, &prop)
	require.Len(t, prop.Candidates, 1)
	assert.Equal(t, 5, prop.Candidates[0].SuggestedLectureCount)
	assert.True(t, prop.Candidates[0].SuggestedAmount.Equal(decimal.NewFromInt(5000)))
	assert.True(t, prop.AdvanceBalance.Equal(decimal.NewFromInt(2000)))

	commit := settlement.CommitRequest{
		Requests:              []settlement.Request{{ClassID: "class-1", LectureCount: 5, Amount: decimal.NewFromInt(5000)}},
		AdvanceDeductionTotal: decimal.NewFromInt(2000),
	}
	checkCode(t, a.do(t, teacher1, http.MethodPost, path, commit), http.StatusForbidden)

	tooMany := commit
	tooMany.Requests = []settlement.Request{{ClassID: "class-1", LectureCount: 6, Amount: decimal.NewFromInt(6000)}}
	rec = a.do(t, admin, http.MethodPost, path, tooMany)
	checkCode(t, rec, http.StatusConflict)
	var hErr httpErr
	decode(t, rec, &hErr)
	assert.Contains(t, hErr.Error, "5 verified lectures, 6 requested")

	empty := settlement.CommitRequest{}
	checkCode(t, a.do(t, admin, http.MethodPost, path, empty), http.StatusBadRequest)

	rec = a.do(t, admin, http.MethodPost, path, commit)
	checkCode(t, rec, http.StatusCreated)
	var res settlement.CommitResult
	decode(t, rec, &res)
	require.Len(t, res.Payments, 1)
	p := res.Payments[0]
	assert.True(t, p.NetDisbursement.Equal(decimal.NewFromInt(3000)))
	assert.True(t, res.AdvanceDeducted.Equal(decimal.NewFromInt(2000)))

	t.Run("payments", func(t *testing.T) {
		rec := a.do(t, teacher1, http.MethodGet, "/v1/teachers/teacher-1/payments", nil)
		checkCode(t, rec, http.StatusOK)
		var ps []settlement.Payment
		decode(t, rec, &ps)
		require.Len(t, ps, 1)
		assert.Equal(t, p.ID, ps[0].ID)

		checkCode(t, a.do(t, teacher1, http.MethodGet, "/v1/teachers/teacher-1/payments?ordering=paid_by", nil), http.StatusBadRequest)

		rec = a.do(t, teacher1, http.MethodGet, "/v1/payments/"+p.ID, nil)
		checkCode(t, rec, http.StatusOK)
		var detail settlement.PaymentDetail
		decode(t, rec, &detail)
		assert.Len(t, detail.Lectures, 5)

		checkCode(t, a.do(t, teacher2, http.MethodGet, "/v1/payments/"+p.ID, nil), http.StatusNotFound)
		checkCode(t, a.do(t, admin, http.MethodGet, "/v1/payments/nope", nil), http.StatusNotFound)
	})

	t.Run("export", func(t *testing.T) {
		rec := a.do(t, teacher1, http.MethodGet, "/v1/teachers/teacher-1/payments/export", nil)
		checkCode(t, rec, http.StatusOK)
		assert.Equal(t, reportsvc.ContentType, rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "payments_teacher-1_")

		f, err := excelize.OpenReader(bytes.NewReader(rec.Body.Bytes()))
		require.NoError(t, err)
		defer f.Close()
		id, err := f.GetCellValue(reportsvc.PaymentsSheet, "B3")
		require.NoError(t, err)
		assert.Equal(t, p.ID, id)
	})

	t.Run("proposal after commit", func(t *testing.T) {
		rec := a.do(t, admin, http.MethodGet, path, nil)
		checkCode(t, rec, http.StatusOK)
		var prop settlement.Proposal
		decode(t, rec, &prop)
		assert.Zero(t, prop.Candidates[0].PendingCount)
		assert.True(t, prop.AdvanceBalance.IsZero())
	})
}

func TestAdvanceAPI(t *testing.T) {
	a := setup(t)
	path := "/v1/teachers/teacher-1/advances"

	checkCode(t, a.do(t, teacher1, http.MethodPost, path, GrantRequest{Amount: decimal.NewFromInt(100)}), http.StatusForbidden)
	checkCode(t, a.do(t, admin, http.MethodPost, path, GrantRequest{Amount: decimal.NewFromInt(-1)}), http.StatusBadRequest)
	checkCode(t, a.do(t, admin, http.MethodPost, "/v1/teachers/teacher-9/advances", GrantRequest{Amount: decimal.NewFromInt(1)}), http.StatusBadRequest)

	for _, amount := range []int64{500, 250} {
		rec := a.do(t, admin, http.MethodPost, path, GrantRequest{Amount: decimal.NewFromInt(amount), Notes: "rent"})
		checkCode(t, rec, http.StatusCreated)
		var e advance.Entry
		decode(t, rec, &e)
		assert.True(t, e.Remaining.Equal(decimal.NewFromInt(amount)))
		assert.Equal(t, advance.SourceGrant, e.Source)
	}

	rec := a.do(t, teacher1, http.MethodGet, path, nil)
	checkCode(t, rec, http.StatusOK)
	var res AdvancesResponse
	decode(t, rec, &res)
	assert.Len(t, res.Entries, 2)
	assert.True(t, res.Balance.Equal(decimal.NewFromInt(750)))

	checkCode(t, a.do(t, teacher2, http.MethodGet, path, nil), http.StatusForbidden)
	checkCode(t, a.do(t, admin, http.MethodGet, "/v1/teachers/teacher-9/advances", nil), http.StatusBadRequest)
}

func TestEventAPI(t *testing.T) {
	a := setup(t)
	ctx := context.Background()
	for i := 0; i < 3; i++ {
		evt := audit.Event{
			Type:        audit.LectureMarked,
			TeacherID:   "teacher-1",
			Description: fmt.Sprintf("event %d", i),
			At:          march1.Add(time.Duration(i) * time.Hour),
		}
		require.NoError(t, a.env.Audit.AppendEvent(ctx, evt.Stamped()))
	}

	rec := a.do(t, teacher1, http.MethodGet, "/v1/teachers/teacher-1/events?limit=2", nil)
	checkCode(t, rec, http.StatusOK)
	var evts []audit.Event
	decode(t, rec, &evts)
	require.Len(t, evts, 2)
	assert.Equal(t, "event 2", evts[0].Description)
	assert.Equal(t, "event 1", evts[1].Description)

	rec = a.do(t, teacher1, http.MethodGet, "/v1/teachers/teacher-1/events", nil)
	checkCode(t, rec, http.StatusOK)
	decode(t, rec, &evts)
	assert.Len(t, evts, 3)

	checkCode(t, a.do(t, teacher1, http.MethodGet, "/v1/teachers/teacher-1/events?limit=x", nil), http.StatusBadRequest)
	checkCode(t, a.do(t, teacher2, http.MethodGet, "/v1/teachers/teacher-1/events", nil), http.StatusForbidden)
}
