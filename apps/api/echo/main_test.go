package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	. "github.com/trezcool/lecturepay/apps/api/echo"
	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/user"
	metricsvc "github.com/trezcool/lecturepay/services/metrics"
	logsvc "github.com/trezcool/lecturepay/services/logger"
	"github.com/trezcool/lecturepay/tests"
)

var conf = &core.Config{
	AppName:   "Lecturepay",
	Build:     "test",
	TestMode:  true,
	SecretKey: "test-secret",
	Server:    core.ServerConfig{JWTExpirationDelta: time.Hour, DisableReqLogs: true},
}

type app struct {
	Server
	env *testutil.Env
}

func setup(t *testing.T) *app {
	env := testutil.NewEnv(testutil.InmemRepos())
	testutil.CreateTeacherInClass(t, env.Roster, "teacher-1", "class-1", 28000, 28)
	testutil.CreateTeacherInClass(t, env.Roster, "teacher-2", "class-1", 14000, 28)

	metrics := metricsvc.New()
	srv := NewServer(&Options{
		Conf:          conf,
		Logger:        logsvc.NewConsoleLogger(&bytes.Buffer{}, "error"),
		RosterSvc:     env.RosterSvc,
		AttendanceSvc: env.AttendanceSvc,
		LedgerSvc:     env.LedgerSvc,
		SettlementSvc: env.SettlementSvc,
		Events:        env.Audit,
		Metrics:       metrics.Handler(),
	})
	return &app{Server: srv, env: env}
}

type httpErr struct {
	Error string `json:"error"`
}

func getToken(t *testing.T, actor user.Actor) string {
	token, err := GenerateToken(conf.SecretKey, GetActorClaims(conf, actor))
	require.NoError(t, err)
	return token
}

// do sends a JSON request as actor (anonymous when actor is nil) and returns the recorder.
func (a *app) do(t *testing.T, actor *user.Actor, method, path string, body interface{}) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != nil {
		req.Header.Set("Authorization", "Bearer "+getToken(t, *actor))
	}
	rec := httptest.NewRecorder()
	a.ServeHTTP(rec, req)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}

func actorPtr(a user.Actor) *user.Actor { return &a }

var (
	admin    = actorPtr(testutil.Admin)
	teacher1 = actorPtr(testutil.TeacherActor("teacher-1"))
	teacher2 = actorPtr(testutil.TeacherActor("teacher-2"))
)

func checkCode(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	require.Equal(t, want, rec.Code, rec.Body.String())
}
