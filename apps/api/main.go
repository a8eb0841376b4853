package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"

	echoapi "github.com/trezcool/lecturepay/apps/api/echo"
	"github.com/trezcool/lecturepay/apps/di"
	"github.com/trezcool/lecturepay/core"
)

func main() {
	conf := core.NewConfig()
	logger := di.NewLogger(conf)

	if err := run(conf, logger); err != nil {
		logger.Fatal(fmt.Sprintf("api: %v", err), err)
	}
}

func run(conf *core.Config, logger core.Logger) error {
	// =========================================================================
	// Set up Dependencies

	logger.Info(fmt.Sprintf("Application initializing : %s", conf))
	defer logger.Info("Application stopped")

	c, err := di.NewContainer(context.Background(), conf, logger)
	if err != nil {
		return errors.Wrap(err, "setting up dependencies")
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()
		if cErr := c.Close(ctx); cErr != nil {
			logger.Error(fmt.Sprintf("closing dependencies: %v", cErr), cErr)
		}
	}()

	// =========================================================================
	// Start Debug Service
	//
	// /debug/pprof - Added to the default mux by importing the net/http/pprof package.
	// /debug/vars - Added to the default mux by importing the expvar package.

	expvar.NewString("build").Set(conf.Build)
	expvar.NewString("env").Set(conf.Env)

	go func() {
		if err := http.ListenAndServe(conf.Server.DebugHost, http.DefaultServeMux); err != nil {
			logger.Error(fmt.Sprintf("debug server closed: %v", err), err)
		}
	}()

	// =========================================================================
	// Start API Service

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	server := echoapi.NewServer(&echoapi.Options{
		Conf:          conf,
		Logger:        logger,
		Shutdown:      func() { shutdown <- syscall.SIGTERM },
		RosterSvc:     c.RosterSvc,
		AttendanceSvc: c.AttendanceSvc,
		LedgerSvc:     c.LedgerSvc,
		SettlementSvc: c.SettlementSvc,
		Events:        c.Repos.Audit,
		Metrics:       c.Metrics.Handler(),
	})

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("API listening on " + conf.Server.Address)
		serverErrors <- server.Start()
	}()

	// =========================================================================
	// Shutdown

	select {
	case err = <-serverErrors:
		return errors.Wrap(err, "server error")

	case sig := <-shutdown:
		logger.Info(fmt.Sprintf("%v: Start shutdown...", sig))

		// give outstanding requests a deadline for completion
		ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
		defer cancel()

		if err = server.Stop(ctx); err != nil {
			return errors.Wrap(err, "could not stop server gracefully")
		}
	}
	return nil
}
