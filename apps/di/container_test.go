package di

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	logsvc "github.com/trezcool/lecturepay/services/logger"
	"github.com/trezcool/lecturepay/storage/database"
	"github.com/trezcool/lecturepay/tests"
)

func TestNewContainer(t *testing.T) {
	tests := []struct {
		name   string
		engine string
		sql    bool
	}{
		{name: "inmem", engine: database.EngineInmem},
		{name: "sqlite", engine: database.EngineSqlite, sql: true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			conf := &core.Config{
				AppName:    "Lecturepay",
				TestMode:   true,
				Database:   core.DatabaseConfig{Engine: tc.engine, Path: filepath.Join(t.TempDir(), "di.db"), PingAttempts: 1},
				Settlement: core.SettlementConfig{AuditBuffer: 16},
			}
			ctx := context.Background()

			c, err := NewContainer(ctx, conf, logsvc.NewConsoleLogger(io.Discard, "error"))
			require.NoError(t, err)
			assert.Equal(t, tc.sql, c.DB != nil)

			_, err = c.RosterSvc.AddTeacher(ctx, roster.Teacher{ID: "t1", Name: "Tina", IsActive: true})
			require.NoError(t, err)
			_, err = c.RosterSvc.AddClass(ctx, roster.Class{ID: "c1", Name: "Maths", BatchSize: 4})
			require.NoError(t, err)
			_, err = c.RosterSvc.Assign(ctx, roster.Assignment{TeacherID: "t1", ClassID: "c1", Rate: testutil.Dec("400")})
			require.NoError(t, err)

			res, err := c.AttendanceSvc.Toggle(ctx, testutil.Admin, "t1", "c1", testutil.Day(2024, time.March, 1))
			require.NoError(t, err)
			assert.True(t, res.Marked)

			repo := c.Repos.Audit
			closeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			require.NoError(t, c.Close(closeCtx))

			if !tc.sql {
				evts, err := repo.QueryEvents(ctx, "t1", 10)
				require.NoError(t, err)
				require.Len(t, evts, 1)
				assert.Equal(t, audit.LectureMarked, evts[0].Type)
			}
		})
	}
}

func TestNewContainer_badDatabase(t *testing.T) {
	conf := &core.Config{
		Database: core.DatabaseConfig{Engine: "oracle", PingAttempts: 1},
	}
	_, err := NewContainer(context.Background(), conf, logsvc.NewConsoleLogger(io.Discard, "error"))
	assert.Error(t, err)
}
