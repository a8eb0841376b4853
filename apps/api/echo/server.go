package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/attendance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/settlement"
)

type (
	Options struct {
		Conf   *core.Config
		Logger core.Logger
		// Shutdown is called when a handler hits a shutdown error.
		Shutdown func()

		RosterSvc     *roster.Service
		AttendanceSvc *attendance.Service
		LedgerSvc     *advance.Service
		SettlementSvc *settlement.Service
		Events        audit.Repository
		Metrics       http.Handler // optional
	}

	Server interface {
		http.Handler
		Start() error
		Stop(context.Context) error
	}

	server struct {
		opts *Options
		app  *echo.Echo
	}
)

var _ Server = (*server)(nil)

func NewServer(opts *Options) Server {
	if opts.Shutdown == nil {
		opts.Shutdown = func() {}
	}
	s := &server{
		opts: opts,
		app:  echo.New(),
	}
	s.setup()
	return s
}

func (s *server) setup() {
	conf := s.opts.Conf

	s.app.HideBanner = true
	s.app.Pre(middleware.RemoveTrailingSlash())
	if !conf.Server.DisableReqLogs {
		s.app.Use(middleware.Logger())
	}
	// do not recover in DEV|TEST mode
	if !(conf.Debug || conf.TestMode) {
		s.app.Use(middleware.RecoverWithConfig(middleware.RecoverConfig{LogLevel: log.ERROR}))
	}

	s.app.HTTPErrorHandler = newAppHTTPErrorHandler(s.opts.Logger, s.opts.Shutdown)
	s.app.Debug = conf.Debug

	s.app.GET("/", s.home)
	if s.opts.Metrics != nil {
		s.app.GET("/metrics", echo.WrapHandler(s.opts.Metrics))
	}

	v1 := s.app.Group("/v1")
	jwt := middleware.JWTWithConfig(newJWTConfig(conf.SecretKey))

	registerAttendanceAPI(v1, jwt, s.opts.AttendanceSvc)
	registerSettlementAPI(v1, jwt, s.opts.SettlementSvc, s.opts.RosterSvc)
	registerAdvanceAPI(v1, jwt, s.opts.LedgerSvc)
	registerEventAPI(v1, jwt, s.opts.Events)
}

// Start blocks until the server is stopped; it then returns http.ErrServerClosed.
func (s *server) Start() error {
	return s.app.Start(s.opts.Conf.Server.Address)
}

func (s *server) Stop(ctx context.Context) error {
	return s.app.Shutdown(ctx)
}

func (s *server) ServeHTTP(w http.ResponseWriter, r *http.Request) { // for tests
	s.app.ServeHTTP(w, r)
}

func (s *server) home(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, echo.Map{"app": s.opts.Conf.AppName, "build": s.opts.Conf.Build, "status": "ok"})
}
