// Package di builds the dependency graph shared by the API server and the admin CLI.
package di

import (
	"context"
	"os"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/rollbar/rollbar-go"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/settlement"
	appfs "github.com/trezcool/lecturepay/fs"
	auditsvc "github.com/trezcool/lecturepay/services/audit"
	emailsvc "github.com/trezcool/lecturepay/services/email"
	logsvc "github.com/trezcool/lecturepay/services/logger"
	metricsvc "github.com/trezcool/lecturepay/services/metrics"
	"github.com/trezcool/lecturepay/storage/database"
	inmemdb "github.com/trezcool/lecturepay/storage/database/inmem"
	sqlxrepos "github.com/trezcool/lecturepay/storage/database/sqlx"
	"github.com/trezcool/lecturepay/storage/redislock"
)

// Repos is a set of repositories sharing one backend.
type Repos struct {
	Committer  core.Committer
	Attendance attendance.Repository
	Advances   advance.Repository
	Payments   settlement.Repository
	Roster     roster.Repository
	Audit      audit.Repository
}

type Container struct {
	Conf    *core.Config
	Logger  core.Logger
	Repos   Repos
	DB      *sqlx.DB // nil for the inmem engine
	Metrics *metricsvc.Collector
	Emails  core.EmailService
	Audit   *auditsvc.Async

	RosterSvc     *roster.Service
	AttendanceSvc *attendance.Service
	LedgerSvc     *advance.Service
	SettlementSvc *settlement.Service

	closers []func() error
}

// NewLogger logs to stdout, and to rollbar outside of debug mode when a token is configured.
func NewLogger(conf *core.Config) core.Logger {
	console := logsvc.NewConsoleLogger(os.Stdout, conf.LogLevel)
	logger := logsvc.NewRollbarLogger(console, conf)
	logger.Enable(!conf.Debug && conf.RollbarToken != "")
	return logger
}

// OpenDB opens the configured SQL database, creating it first on postgres.
func OpenDB(conf *core.Config) (*sqlx.DB, error) {
	if conf.Database.Engine == database.EnginePostgres {
		if err := database.CreateIfNotExist(conf.Database); err != nil {
			return nil, errors.Wrap(err, "creating database")
		}
	}
	return database.Open(conf.Database)
}

// NewDB opens the configured SQL database and migrates it up.
func NewDB(conf *core.Config) (*sqlx.DB, error) {
	db, err := OpenDB(conf)
	if err != nil {
		return nil, err
	}
	if err = database.Migrate(db.DB, conf.Database.Engine); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewContainer wires every service over the configured storage engine.
func NewContainer(ctx context.Context, conf *core.Config, logger core.Logger) (*Container, error) {
	c := &Container{Conf: conf, Logger: logger}
	if err := c.openRepos(ctx); err != nil {
		c.closeAll()
		return nil, err
	}

	tmpls, err := core.ParseTemplates(appfs.FS, "templates/email", conf.AppName, conf.Debug || conf.TestMode)
	if err != nil {
		c.closeAll()
		return nil, errors.Wrap(err, "parsing email templates")
	}
	c.Emails = emailsvc.New(conf, tmpls, logger)
	c.Metrics = metricsvc.New()

	c.RosterSvc = roster.NewService(c.Repos.Roster)
	c.Audit = auditsvc.NewAsync(
		auditsvc.Multi(
			auditsvc.NewLogSink(logger),
			auditsvc.NewStoreSink(c.Repos.Audit, logger),
			auditsvc.NewMailSink(c.Emails, c.RosterSvc, c.Repos.Payments, c.Repos.Advances, logger),
		),
		conf.Settlement.AuditBuffer,
		logger,
	)
	c.AttendanceSvc = attendance.NewService(c.Repos.Attendance, c.RosterSvc, c.Repos.Committer, c.Audit, c.Metrics)
	c.LedgerSvc = advance.NewService(c.Repos.Advances, c.RosterSvc, c.Repos.Committer, c.Audit, c.Metrics)
	c.SettlementSvc = settlement.NewService(settlement.Deps{
		Payments:   c.Repos.Payments,
		Attendance: c.Repos.Attendance,
		Ledger:     c.LedgerSvc,
		Roster:     c.RosterSvc,
		Committer:  c.Repos.Committer,
		Audit:      c.Audit,
		Metrics:    c.Metrics,
	})
	return c, nil
}

func (c *Container) openRepos(ctx context.Context) error {
	conf := c.Conf
	if conf.Database.Engine == database.EngineInmem {
		db := inmemdb.Open()
		c.Repos = Repos{
			Committer:  db,
			Attendance: inmemdb.NewAttendanceRepository(db),
			Advances:   inmemdb.NewAdvanceRepository(db),
			Payments:   inmemdb.NewPaymentRepository(db),
			Roster:     inmemdb.NewRosterRepository(db),
			Audit:      inmemdb.NewAuditRepository(db),
		}
		return nil
	}

	db, err := NewDB(conf)
	if err != nil {
		return errors.Wrap(err, "setting up database")
	}
	c.DB = db
	c.closers = append(c.closers, db.Close)

	var locker core.Locker // in-process unless redis is configured
	if conf.Redis.Addr != "" {
		rdb, err := redislock.Connect(ctx, conf.Redis)
		if err != nil {
			return err
		}
		c.closers = append(c.closers, rdb.Close)
		locker = redislock.New(rdb, conf.Redis.LockTTL)
	}

	store := sqlxrepos.NewStore(db, locker)
	c.Repos = Repos{
		Committer:  store,
		Attendance: sqlxrepos.NewAttendanceRepository(store),
		Advances:   sqlxrepos.NewAdvanceRepository(store),
		Payments:   sqlxrepos.NewPaymentRepository(store),
		Roster:     sqlxrepos.NewRosterRepository(store),
		Audit:      sqlxrepos.NewAuditRepository(store),
	}
	return nil
}

// Close drains the audit queue, then releases the storage connections.
func (c *Container) Close(ctx context.Context) error {
	var err error
	if c.Audit != nil {
		err = errors.Wrap(c.Audit.Close(ctx), "draining audit events")
	}
	if cErr := c.closeAll(); err == nil {
		err = cErr
	}
	rollbar.Wait()
	return err
}

func (c *Container) closeAll() error {
	var err error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if cErr := c.closers[i](); cErr != nil && err == nil {
			err = cErr
		}
	}
	c.closers = nil
	return err
}
