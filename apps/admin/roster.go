package main

import (
	"context"
	"fmt"

	echoapi "github.com/trezcool/lecturepay/apps/api/echo"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/user"
)

func (cli *commandLine) token(id, name, email, role string) error {
	var roles []string
	switch role {
	case "admin":
		roles = []string{user.RoleAdmin}
	case "teacher":
		roles = []string{user.RoleTeacher}
	default:
		return fmt.Errorf("%q: role must be admin or teacher", role)
	}
	a := user.NewActor(id, name, roles...)
	a.Email = email

	token, err := echoapi.GenerateToken(cli.conf.SecretKey, echoapi.GetActorClaims(cli.conf, a))
	if err != nil {
		return err
	}
	fmt.Fprintln(cli.out, token)
	return nil
}

func (cli *commandLine) addTeacher(ctx context.Context, t roster.Teacher) error {
	t, err := cli.rosterSvc.AddTeacher(ctx, t)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "teacher %s saved\n", t.ID)
	return nil
}

func (cli *commandLine) addClass(ctx context.Context, c roster.Class) error {
	c, err := cli.rosterSvc.AddClass(ctx, c)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "class %s saved (%d lectures per batch)\n", c.ID, c.BatchSize)
	return nil
}

func (cli *commandLine) assign(ctx context.Context, a roster.Assignment) error {
	a, err := cli.rosterSvc.Assign(ctx, a)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "teacher %s assigned to class %s at %s per batch\n", a.TeacherID, a.ClassID, a.Rate.StringFixed(2))
	return nil
}
