package main

import (
	"bufio"
	"context"
	"fmt"
	"os"

	"github.com/trezcool/lecturepay/apps/di"
	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/storage/database"
)

func main() {
	os.Exit(run(os.Args))
}

func run(args []string) int {
	conf := core.NewConfig()
	logger := di.NewLogger(conf)

	cli := commandLine{
		conf: conf,
		in:   bufio.NewReader(os.Stdin),
		out:  os.Stdout,
	}

	if len(args) > 1 && args[1] == "migrate" {
		// only the migrate command decides which migrations run
		if conf.Database.Engine != database.EngineInmem {
			db, err := di.OpenDB(conf)
			if err != nil {
				logger.Error(fmt.Sprintf("admin: opening database: %v", err), err)
				return 1
			}
			defer func() { _ = db.Close() }()
			cli.db, cli.engine = db.DB, conf.Database.Engine
		}
	} else if len(args) > 1 && args[1] != "token" {
		c, err := di.NewContainer(context.Background(), conf, logger)
		if err != nil {
			logger.Error(fmt.Sprintf("admin: setting up dependencies: %v", err), err)
			return 1
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), conf.Server.ShutdownTimeout)
			defer cancel()
			if err := c.Close(ctx); err != nil {
				logger.Error(fmt.Sprintf("admin: closing dependencies: %v", err), err)
			}
		}()
		cli.rosterSvc, cli.ledgerSvc, cli.settlementSvc = c.RosterSvc, c.LedgerSvc, c.SettlementSvc
	}

	if err := cli.run(args); err != nil {
		if err != errHelp {
			fmt.Fprintf(os.Stderr, "\nerror: %s\n", err)
		}
		return 1
	}
	return 0
}
