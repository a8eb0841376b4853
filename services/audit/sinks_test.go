package auditsvc_test

import (
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/settlement"
	appfs "github.com/trezcool/lecturepay/fs"
	auditsvc "github.com/trezcool/lecturepay/services/audit"
	emailsvc "github.com/trezcool/lecturepay/services/email"
	logsvc "github.com/trezcool/lecturepay/services/logger"
	"github.com/trezcool/lecturepay/tests"
)

var logger = logsvc.NewConsoleLogger(io.Discard, "error")

// blockingSink holds every delivery until released.
type blockingSink struct {
	release chan struct{}
	testutil.RecordingSink
}

func (s *blockingSink) LogEvent(ctx context.Context, evt audit.Event) {
	<-s.release
	s.RecordingSink.LogEvent(ctx, evt)
}

func TestMulti(t *testing.T) {
	first, second := new(testutil.RecordingSink), new(testutil.RecordingSink)
	auditsvc.Multi(first, second).LogEvent(context.Background(), audit.Event{Type: audit.LectureMarked, TeacherID: "t1"})

	require.Len(t, first.Events(), 1)
	require.Len(t, second.Events(), 1)
	evt := first.Events()[0]
	assert.NotEmpty(t, evt.ID)
	assert.False(t, evt.At.IsZero())
	assert.Equal(t, evt, second.Events()[0])
}

func TestStoreSink(t *testing.T) {
	repos := testutil.InmemRepos()
	sink := auditsvc.NewStoreSink(repos.Audit, logger)
	ctx := context.Background()

	sink.LogEvent(ctx, audit.Event{Type: audit.AdvanceGranted, TeacherID: "t1", Amount: audit.Amount(decimal.NewFromInt(500))})
	sink.LogEvent(ctx, audit.Event{Type: audit.LectureMarked, TeacherID: "t2"})

	evts, err := repos.Audit.QueryEvents(ctx, "t1", 10)
	require.NoError(t, err)
	require.Len(t, evts, 1)
	assert.Equal(t, audit.AdvanceGranted, evts[0].Type)
	assert.NotEmpty(t, evts[0].ID)
	assert.True(t, evts[0].Amount.Equal(decimal.NewFromInt(500)))
}

func TestAsync(t *testing.T) {
	t.Run("delivers everything before Close returns", func(t *testing.T) {
		next := new(testutil.RecordingSink)
		a := auditsvc.NewAsync(next, 10, logger)
		for i := 0; i < 5; i++ {
			a.LogEvent(context.Background(), audit.Event{Type: audit.LectureMarked})
		}
		require.NoError(t, a.Close(context.Background()))
		assert.Len(t, next.Events(), 5)
		assert.Zero(t, a.Dropped())
	})

	t.Run("drops when the queue is full", func(t *testing.T) {
		next := &blockingSink{release: make(chan struct{})}
		a := auditsvc.NewAsync(next, 1, logger)
		sent := 0
		require.Eventually(t, func() bool {
			a.LogEvent(context.Background(), audit.Event{Type: audit.LectureMarked})
			sent++
			return a.Dropped() > 0
		}, time.Second, 5*time.Millisecond)

		close(next.release)
		require.NoError(t, a.Close(context.Background()))
		assert.EqualValues(t, sent, int64(len(next.Events()))+a.Dropped())
		assert.NotEmpty(t, next.Events())
	})

	t.Run("close gives up with ctx", func(t *testing.T) {
		next := &blockingSink{release: make(chan struct{})}
		defer close(next.release)
		a := auditsvc.NewAsync(next, 1, logger)
		a.LogEvent(context.Background(), audit.Event{Type: audit.LectureMarked})

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()
		assert.ErrorIs(t, a.Close(ctx), context.DeadlineExceeded)
	})

	t.Run("events after close are dropped", func(t *testing.T) {
		a := auditsvc.NewAsync(new(testutil.RecordingSink), 1, logger)
		require.NoError(t, a.Close(context.Background()))
		a.LogEvent(context.Background(), audit.Event{Type: audit.LectureMarked})
		assert.EqualValues(t, 1, a.Dropped())
	})

	t.Run("concurrent senders", func(t *testing.T) {
		next := new(testutil.RecordingSink)
		a := auditsvc.NewAsync(next, 100, logger)
		var wg sync.WaitGroup
		for i := 0; i < 10; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				a.LogEvent(context.Background(), audit.Event{Type: audit.LectureMarked})
			}()
		}
		wg.Wait()
		require.NoError(t, a.Close(context.Background()))
		assert.EqualValues(t, 10, int64(len(next.Events()))+a.Dropped())
	})
}

func TestMailSink(t *testing.T) {
	ctx := context.Background()
	env := testutil.NewEnv(testutil.InmemRepos())
	testutil.CreateTeacherInClass(t, env.Roster, "t1", "c1", 28000, 28)

	tmpls, err := core.ParseTemplates(appfs.FS, "templates/email", "LecturePay", true)
	require.NoError(t, err)
	conf := &core.Config{AppName: "LecturePay"}
	emails := emailsvc.NewConsoleServiceMock(conf, tmpls, logger)
	sink := auditsvc.NewMailSink(emails, env.RosterSvc, env.Payments, env.Advances, logger)

	day := testutil.Day(2024, time.March, 1)
	p, err := env.Payments.CreatePayment(ctx, settlement.Payment{
		ID: testutil.NewID(), TeacherID: "t1", ClassID: "c1", LectureCount: 5,
		GrossAmount: testutil.Dec("5000"), AdvanceDeduction: testutil.Dec("2000"), NetDisbursement: testutil.Dec("3000"),
		DatePaid: core.Now(), StartDateCovered: day, EndDateCovered: day.AddDate(0, 0, 4), PaidBy: testutil.Admin.ID,
	})
	require.NoError(t, err)
	testutil.CreateAdvance(t, env.Advances, "t1", "750", day)

	sink.LogEvent(ctx, audit.Event{Type: audit.LectureMarked, TeacherID: "t1"})
	sink.LogEvent(ctx, audit.Event{Type: audit.PaymentRecorded, TeacherID: "t1", RefID: p.ID})
	sink.LogEvent(ctx, audit.Event{Type: audit.AdvanceGranted, TeacherID: "t1", Amount: audit.Amount(testutil.Dec("750"))})

	sent := emails.SentMessages()
	require.Len(t, sent, 2)

	advice := sent[0]
	assert.Equal(t, "t1@test.cd", advice.To[0].Address)
	assert.Equal(t, "Payment advice", advice.Subject)
	assert.Contains(t, advice.TextContent, "Net paid:          3000.00 (three thousand)")
	assert.Contains(t, advice.TextContent, p.ID)
	assert.Contains(t, advice.HTMLContent, "2024-03-05")

	notice := sent[1]
	assert.Equal(t, "Advance recorded", notice.Subject)
	assert.Contains(t, notice.TextContent, "750.00")

	t.Run("teacher without email", func(t *testing.T) {
		testutil.CreateTeacherInClass(t, env.Roster, "t2", "c2", 1000, 1)
		teacher, err := env.Roster.GetTeacher(ctx, "t2")
		require.NoError(t, err)
		teacher.Email = ""
		require.NoError(t, env.Roster.SaveTeacher(ctx, teacher))

		sink.LogEvent(ctx, audit.Event{Type: audit.AdvanceGranted, TeacherID: "t2", Amount: audit.Amount(testutil.Dec("10"))})
		assert.Len(t, emails.SentMessages(), 2)
	})

	t.Run("unknown payment", func(t *testing.T) {
		sink.LogEvent(ctx, audit.Event{Type: audit.PaymentRecorded, TeacherID: "t1", RefID: "nope"})
		assert.Len(t, emails.SentMessages(), 2)
	})
}

func TestAmountInWords(t *testing.T) {
	tests := []struct {
		amount string
		want   string
	}{
		{"3000", "three thousand"},
		{"3000.50", "three thousand and 50/100"},
		{"0.07", "zero and 7/100"},
		{"21", "twenty-one"},
	}
	for _, tc := range tests {
		t.Run(tc.amount, func(t *testing.T) {
			got := auditsvc.AmountInWords(testutil.Dec(tc.amount))
			assert.Equal(t, tc.want, strings.ToLower(got))
		})
	}
}
