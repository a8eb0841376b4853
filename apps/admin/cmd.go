package main

import (
	"bufio"
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/term"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/settlement"
	"github.com/trezcool/lecturepay/core/user"
)

var (
	isTerminalFunc = term.IsTerminal // mockable

	errHelp         = errors.New("help provided")
	errNotConfirmed = errors.New("aborted")
	errNoTerminal   = errors.New("stdin is not a terminal, pass -yes to confirm")
)

type commandLine struct {
	conf *core.Config
	in   *bufio.Reader
	out  io.Writer

	// migrate only
	db     *sql.DB
	engine string

	rosterSvc     *roster.Service
	ledgerSvc     *advance.Service
	settlementSvc *settlement.Service
}

func (cli *commandLine) printUsage() {
	fmt.Fprintln(cli.out, "Usage:")
	fmt.Fprintln(cli.out, "  migrate COMMAND [ARGS]                          - run goose migrations (up, down, status, ...)")
	fmt.Fprintln(cli.out, "  token -id ID -name NAME -role admin|teacher     - issue an API token")
	fmt.Fprintln(cli.out, "  add-teacher -id ID -name NAME [-email EMAIL]    - create or update a teacher")
	fmt.Fprintln(cli.out, "  add-class -id ID -name NAME -batch N            - create or update a class")
	fmt.Fprintln(cli.out, "  assign -teacher ID -class ID -rate AMOUNT       - pay a teacher AMOUNT per batch of a class")
	fmt.Fprintln(cli.out, "  grant -teacher ID -amount AMOUNT [-notes TEXT]  - record an advance")
	fmt.Fprintln(cli.out, "  balance -teacher ID                             - print the outstanding advance balance")
	fmt.Fprintln(cli.out, "  propose -teacher ID                             - print what the teacher can be paid")
	fmt.Fprintln(cli.out, "  settle -teacher ID -pay CLASS:COUNT:AMOUNT... [-deduct AMOUNT] [-cash AMOUNT] [-yes]")
	fmt.Fprintln(cli.out, "  export -teacher ID -out FILE.xlsx               - write the teacher's payments to a spreadsheet")
}

// payFlags collects repeated -pay CLASS:COUNT:AMOUNT values.
type payFlags []settlement.Request

func (p *payFlags) String() string {
	parts := make([]string, len(*p))
	for i, req := range *p {
		parts[i] = fmt.Sprintf("%s:%d:%s", req.ClassID, req.LectureCount, req.Amount)
	}
	return strings.Join(parts, ",")
}

func (p *payFlags) Set(val string) error {
	parts := strings.Split(val, ":")
	if len(parts) != 3 {
		return fmt.Errorf("%q: want CLASS:COUNT:AMOUNT", val)
	}
	count, err := strconv.Atoi(parts[1])
	if err != nil {
		return fmt.Errorf("%q: invalid lecture count", val)
	}
	amount, err := decimal.NewFromString(parts[2])
	if err != nil {
		return fmt.Errorf("%q: invalid amount", val)
	}
	*p = append(*p, settlement.Request{ClassID: parts[0], LectureCount: count, Amount: amount})
	return nil
}

// decimalFlag is an optional amount.
type decimalFlag struct {
	val *decimal.Decimal
}

func (d *decimalFlag) String() string {
	if d.val == nil {
		return ""
	}
	return d.val.String()
}

func (d *decimalFlag) Set(s string) error {
	v, err := decimal.NewFromString(s)
	if err != nil {
		return err
	}
	d.val = &v
	return nil
}

func (cli *commandLine) run(args []string) error {
	if len(args) < 2 {
		cli.printUsage()
		return errHelp
	}
	ctx := context.Background()

	newFlagSet := func(name string) *flag.FlagSet {
		fs := flag.NewFlagSet(name, flag.ContinueOnError)
		fs.SetOutput(cli.out)
		return fs
	}

	switch args[1] {
	case "migrate":
		if len(args) < 3 {
			cli.printUsage()
			return errHelp
		}
		return cli.migrate(args[2:])

	case "token":
		cmd := newFlagSet("token")
		id := cmd.String("id", "", "The actor id (a teacher id for teachers).")
		name := cmd.String("name", "", "The actor's display name.")
		email := cmd.String("email", "", "The actor's email.")
		role := cmd.String("role", "teacher", "admin or teacher.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *id == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.token(*id, *name, *email, *role)

	case "add-teacher":
		cmd := newFlagSet("add-teacher")
		id := cmd.String("id", "", "The teacher id.")
		name := cmd.String("name", "", "The teacher's name.")
		email := cmd.String("email", "", "Where payment advices are sent.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *id == "" || *name == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addTeacher(ctx, roster.Teacher{ID: *id, Name: *name, Email: *email, IsActive: true})

	case "add-class":
		cmd := newFlagSet("add-class")
		id := cmd.String("id", "", "The class id.")
		name := cmd.String("name", "", "The class name.")
		batch := cmd.Int("batch", 0, "Lectures per billing cycle.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *id == "" || *name == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.addClass(ctx, roster.Class{ID: *id, Name: *name, BatchSize: *batch})

	case "assign":
		cmd := newFlagSet("assign")
		teacherID := cmd.String("teacher", "", "The teacher id.")
		classID := cmd.String("class", "", "The class id.")
		var rate decimalFlag
		cmd.Var(&rate, "rate", "Paid per full batch of lectures.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *teacherID == "" || *classID == "" || rate.val == nil {
			cmd.Usage()
			return errHelp
		}
		return cli.assign(ctx, roster.Assignment{TeacherID: *teacherID, ClassID: *classID, Rate: *rate.val})

	case "grant":
		cmd := newFlagSet("grant")
		teacherID := cmd.String("teacher", "", "The teacher id.")
		notes := cmd.String("notes", "", "Free text.")
		var amount decimalFlag
		cmd.Var(&amount, "amount", "The amount advanced.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *teacherID == "" || amount.val == nil {
			cmd.Usage()
			return errHelp
		}
		return cli.grant(ctx, *teacherID, *amount.val, *notes)

	case "balance", "propose":
		cmd := newFlagSet(args[1])
		teacherID := cmd.String("teacher", "", "The teacher id.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *teacherID == "" {
			cmd.Usage()
			return errHelp
		}
		if args[1] == "balance" {
			return cli.balance(ctx, *teacherID)
		}
		return cli.propose(ctx, *teacherID)

	case "settle":
		cmd := newFlagSet("settle")
		teacherID := cmd.String("teacher", "", "The teacher id.")
		yes := cmd.Bool("yes", false, "Do not ask for confirmation.")
		var (
			pays         payFlags
			deduct, cash decimalFlag
		)
		cmd.Var(&pays, "pay", "CLASS:COUNT:AMOUNT, repeat for several classes. Deductions apply in this order.")
		cmd.Var(&deduct, "deduct", "Total advance to deduct.")
		cmd.Var(&cash, "cash", "Cash actually handed over, if it differs from the net.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *teacherID == "" {
			cmd.Usage()
			return errHelp
		}
		cr := settlement.CommitRequest{TeacherID: *teacherID, Requests: pays, CashPayout: cash.val}
		if deduct.val != nil {
			cr.AdvanceDeductionTotal = *deduct.val
		}
		return cli.settle(ctx, cr, *yes)

	case "export":
		cmd := newFlagSet("export")
		teacherID := cmd.String("teacher", "", "The teacher id.")
		out := cmd.String("out", "", "The .xlsx file to write.")
		if err := cmd.Parse(args[2:]); err != nil {
			return errHelp
		}
		if *teacherID == "" || *out == "" {
			cmd.Usage()
			return errHelp
		}
		return cli.export(ctx, *teacherID, *out)

	default:
		cli.printUsage()
		return errHelp
	}
}

// confirm asks a yes/no question on the terminal.
func (cli *commandLine) confirm(question string) error {
	if !isTerminalFunc(int(os.Stdin.Fd())) {
		return errNoTerminal
	}
	fmt.Fprintf(cli.out, "%s [y/N]: ", question)
	answer, err := cli.in.ReadString('\n')
	if err != nil && err != io.EOF {
		return err
	}
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return nil
	}
	return errNotConfirmed
}

var actor = user.System
