package main

import (
	"errors"

	"github.com/trezcool/goose"

	appfs "github.com/trezcool/lecturepay/fs"
	"github.com/trezcool/lecturepay/storage/database"
)

var gooseRunFunc = goose.RunFS // mockable

func (cli *commandLine) migrate(args []string) error {
	if cli.db == nil {
		return errors.New("migrate needs a SQL database engine (postgres or sqlite)")
	}
	if err := database.SetDialect(cli.engine); err != nil {
		return err
	}
	arguments := make([]string, 0)
	if len(args) > 1 {
		arguments = append(arguments, args[1:]...)
	}
	return gooseRunFunc(args[0], cli.db, appfs.FS, database.MigrationsDir(cli.engine), arguments...)
}
