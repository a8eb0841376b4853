package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/settlement"
	reportsvc "github.com/trezcool/lecturepay/services/report"
)

func (cli *commandLine) grant(ctx context.Context, teacherID string, amount decimal.Decimal, notes string) error {
	e, err := cli.ledgerSvc.Grant(ctx, actor, teacherID, amount, notes)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "advance %s of %s granted to %s\n", e.ID, e.Amount.StringFixed(2), e.TeacherID)
	return cli.balance(ctx, teacherID)
}

func (cli *commandLine) balance(ctx context.Context, teacherID string) error {
	balance, err := cli.ledgerSvc.Balance(ctx, teacherID)
	if err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "advance balance of %s: %s\n", teacherID, balance.StringFixed(2))
	return nil
}

func (cli *commandLine) propose(ctx context.Context, teacherID string) error {
	prop, err := cli.settlementSvc.Propose(ctx, actor, teacherID)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(cli.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CLASS\tPENDING\tSUGGESTED\tAMOUNT\tFROM\tTO")
	for _, c := range prop.Candidates {
		var from, to string
		if c.OldestPending != nil {
			from, to = core.FormatDay(*c.OldestPending), core.FormatDay(*c.NewestPending)
		}
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\t%s\n",
			c.ClassID, c.PendingCount, c.SuggestedLectureCount, c.SuggestedAmount.StringFixed(2), from, to)
	}
	if err = w.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "advance balance: %s\n", prop.AdvanceBalance.StringFixed(2))
	return nil
}

func (cli *commandLine) settle(ctx context.Context, cr settlement.CommitRequest, yes bool) error {
	if !yes {
		question := fmt.Sprintf("Pay %s %s for %d class(es), deducting %s of advances?",
			cr.TeacherID, cr.GrossTotal().StringFixed(2), len(cr.Requests), cr.AdvanceDeductionTotal.StringFixed(2))
		if err := cli.confirm(question); err != nil {
			return err
		}
	}

	res, err := cli.settlementSvc.Commit(ctx, actor, cr)
	if err != nil {
		return err
	}
	for _, p := range res.Payments {
		fmt.Fprintf(cli.out, "payment %s: %d lecture(s) of %s, gross %s, deducted %s, net %s\n",
			p.ID, p.LectureCount, p.ClassID, p.GrossAmount.StringFixed(2), p.AdvanceDeduction.StringFixed(2), p.NetDisbursement.StringFixed(2))
	}
	if res.Overflow != nil {
		fmt.Fprintf(cli.out, "overflow %s of %s recorded as an advance\n", res.Overflow.ID, res.Overflow.Amount.StringFixed(2))
	}
	fmt.Fprintf(cli.out, "net total: %s\n", res.NetTotal.StringFixed(2))
	return nil
}

func (cli *commandLine) export(ctx context.Context, teacherID, path string) (err error) {
	ps, err := cli.settlementSvc.ListPayments(ctx, actor, teacherID, core.QueryOptions{})
	if err != nil {
		return err
	}
	teacher, err := cli.rosterSvc.Teacher(ctx, teacherID)
	if err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "creating export file")
	}
	defer func() {
		if cErr := f.Close(); err == nil {
			err = cErr
		}
	}()
	if err = reportsvc.WritePayments(f, teacher, ps); err != nil {
		return err
	}
	fmt.Fprintf(cli.out, "%d payment(s) written to %s\n", len(ps), path)
	return nil
}
