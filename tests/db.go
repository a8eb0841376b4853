package testutil

import (
	"os"
	"path/filepath"
	"strconv"
	"testing"

	"github.com/jmoiron/sqlx"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/storage/database"
	sqlxrepos "github.com/trezcool/lecturepay/storage/database/sqlx"
)

// PrepareDB opens a migrated database for the test: a fresh sqlite file, or the postgres
// database named by TEST_POSTGRES_HOST (and TEST_POSTGRES_PORT) when set, emptied first.
func PrepareDB(t *testing.T) (*sqlx.DB, string) {
	t.Helper()
	db, conf := prepareDB(t)
	return db, conf.Engine
}

func prepareDB(t *testing.T) (*sqlx.DB, core.DatabaseConfig) {
	t.Helper()

	conf := core.DatabaseConfig{
		Engine:       database.EngineSqlite,
		Path:         filepath.Join(t.TempDir(), "lecturepay_test.db"),
		PingAttempts: 1,
	}
	if host := os.Getenv("TEST_POSTGRES_HOST"); host != "" {
		port, _ := strconv.Atoi(os.Getenv("TEST_POSTGRES_PORT"))
		if port == 0 {
			port = 5432
		}
		conf = core.DatabaseConfig{
			Engine:       database.EnginePostgres,
			Host:         host,
			Port:         port,
			User:         "lecturepay",
			Password:     "lecturepay",
			Name:         "lecturepay_test",
			DisableTLS:   true,
			PingAttempts: 5,
		}
		if err := database.CreateIfNotExist(conf); err != nil {
			t.Fatalf("CreateIfNotExist() failed: %v", err)
		}
	}

	db := openDB(t, conf)
	if err := database.Migrate(db.DB, conf.Engine); err != nil {
		t.Fatalf("Migrate() failed: %v", err)
	}
	if conf.Engine == database.EnginePostgres {
		for _, table := range []string{"audit_events", "payments", "advance_entries", "attendance", "assignments", "classes", "teachers"} {
			if _, err := db.Exec("DELETE FROM " + table); err != nil {
				t.Fatalf("emptying %s failed: %v", table, err)
			}
		}
	}
	return db, conf
}

func openDB(t *testing.T, conf core.DatabaseConfig) *sqlx.DB {
	t.Helper()
	db, err := database.Open(conf)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func sqlRepos(db *sqlx.DB) Repos {
	store := sqlxrepos.NewStore(db, nil)
	return Repos{
		Committer:  store,
		Attendance: sqlxrepos.NewAttendanceRepository(store),
		Advances:   sqlxrepos.NewAdvanceRepository(store),
		Payments:   sqlxrepos.NewPaymentRepository(store),
		Roster:     sqlxrepos.NewRosterRepository(store),
		Audit:      sqlxrepos.NewAuditRepository(store),
	}
}

func SQLRepos(t *testing.T) Repos {
	db, _ := prepareDB(t)
	return sqlRepos(db)
}

// SQLReposPair returns two repository sets over one database, each with its own connection pool
// and its own in-process lock, as two running instances of the app would have.
func SQLReposPair(t *testing.T) (Repos, Repos) {
	db, conf := prepareDB(t)
	return sqlRepos(db), sqlRepos(openDB(t, conf))
}
