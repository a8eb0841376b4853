// Package reportsvc renders settlement history as spreadsheets.
package reportsvc

import (
	"fmt"
	"io"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/settlement"
)

const PaymentsSheet = "Payments"

var paymentHeaders = []string{
	"Date paid", "Payment", "Class", "Lectures", "From", "To", "Gross", "Advance deducted", "Net",
}

// ContentType is the media type of the files written here.
const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// PaymentsFilename names the export of teacher's payments made at t.
func PaymentsFilename(teacher roster.Teacher, t time.Time) string {
	return fmt.Sprintf("payments_%s_%s.xlsx", teacher.ID, t.Format("20060102_150405"))
}

// WritePayments writes one row per payment and a totals row to w as an xlsx workbook.
func WritePayments(w io.Writer, teacher roster.Teacher, payments []settlement.Payment) (err error) {
	f := excelize.NewFile()
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	index, err := f.NewSheet(PaymentsSheet)
	if err != nil {
		return errors.Wrap(err, "creating sheet")
	}
	f.SetActiveSheet(index)

	set := func(col, row int, v interface{}) {
		if err != nil {
			return
		}
		var cell string
		if cell, err = excelize.CoordinatesToCellName(col, row); err == nil {
			err = f.SetCellValue(PaymentsSheet, cell, v)
		}
	}

	set(1, 1, teacher.Name+" ("+teacher.ID+")")
	for i, h := range paymentHeaders {
		set(i+1, 2, h)
	}

	gross, deducted, net := decimal.Zero, decimal.Zero, decimal.Zero
	lectures := 0
	for i, p := range payments {
		row := i + 3
		set(1, row, p.DatePaid.Format("2006-01-02 15:04"))
		set(2, row, p.ID)
		set(3, row, p.ClassID)
		set(4, row, p.LectureCount)
		set(5, row, core.FormatDay(p.StartDateCovered))
		set(6, row, core.FormatDay(p.EndDateCovered))
		set(7, row, p.GrossAmount.InexactFloat64())
		set(8, row, p.AdvanceDeduction.InexactFloat64())
		set(9, row, p.NetDisbursement.InexactFloat64())

		gross = gross.Add(p.GrossAmount)
		deducted = deducted.Add(p.AdvanceDeduction)
		net = net.Add(p.NetDisbursement)
		lectures += p.LectureCount
	}

	total := len(payments) + 3
	set(1, total, "Total")
	set(4, total, lectures)
	set(7, total, gross.InexactFloat64())
	set(8, total, deducted.InexactFloat64())
	set(9, total, net.InexactFloat64())
	if err != nil {
		return errors.Wrap(err, "filling sheet")
	}

	if err = f.Write(w); err != nil {
		return errors.Wrap(err, "writing workbook")
	}
	return nil
}
