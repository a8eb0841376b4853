package auditsvc

import (
	"context"
	"net/mail"
	"strings"

	"github.com/divan/num2words"
	"github.com/shopspring/decimal"

	"github.com/trezcool/lecturepay/core"
	"github.com/trezcool/lecturepay/core/advance"
	"github.com/trezcool/lecturepay/core/audit"
	"github.com/trezcool/lecturepay/core/roster"
	"github.com/trezcool/lecturepay/core/settlement"
)

type (
	paymentAdvice struct {
		TeacherName  string
		PaymentID    string
		ClassID      string
		LectureCount int
		From         string
		To           string
		Gross        string
		Deduction    string
		Net          string
		NetWords     string
	}

	advanceNotice struct {
		TeacherName string
		Amount      string
		Date        string
		Balance     string
	}
)

// MailSink emails teachers a payment advice for every payment and a notice for every advance.
// Other events are ignored.
type MailSink struct {
	emails   core.EmailService
	roster   *roster.Service
	payments settlement.Repository
	advances advance.Repository
	logger   core.Logger
}

var _ audit.Sink = (*MailSink)(nil)

func NewMailSink(emails core.EmailService, rosterSvc *roster.Service, payments settlement.Repository, advances advance.Repository, logger core.Logger) *MailSink {
	return &MailSink{emails: emails, roster: rosterSvc, payments: payments, advances: advances, logger: logger}
}

func (s *MailSink) LogEvent(ctx context.Context, evt audit.Event) {
	var (
		msg *core.EmailMessage
		err error
	)
	switch evt.Type {
	case audit.PaymentRecorded:
		msg, err = s.paymentAdvice(ctx, evt)
	case audit.AdvanceGranted:
		msg, err = s.advanceNotice(ctx, evt)
	default:
		return
	}
	if err != nil {
		s.logger.Error("preparing "+string(evt.Type)+" email", err, map[string]interface{}{"ref": evt.RefID})
		return
	}
	if msg != nil {
		s.emails.SendMessages(msg)
	}
}

// recipient is nil for teachers without an email address.
func (s *MailSink) recipient(ctx context.Context, teacherID string) (roster.Teacher, *mail.Address, error) {
	t, err := s.roster.Teacher(ctx, teacherID)
	if err != nil || t.Email == "" {
		return t, nil, err
	}
	return t, &mail.Address{Name: t.Name, Address: t.Email}, nil
}

func (s *MailSink) paymentAdvice(ctx context.Context, evt audit.Event) (*core.EmailMessage, error) {
	t, to, err := s.recipient(ctx, evt.TeacherID)
	if err != nil || to == nil {
		return nil, err
	}
	p, err := s.payments.GetPayment(ctx, evt.RefID)
	if err != nil {
		return nil, err
	}
	return &core.EmailMessage{
		To:           []mail.Address{*to},
		Subject:      "Payment advice",
		TemplateName: "payment_advice",
		TemplateData: paymentAdvice{
			TeacherName:  t.Name,
			PaymentID:    p.ID,
			ClassID:      p.ClassID,
			LectureCount: p.LectureCount,
			From:         core.FormatDay(p.StartDateCovered),
			To:           core.FormatDay(p.EndDateCovered),
			Gross:        p.GrossAmount.StringFixed(2),
			Deduction:    p.AdvanceDeduction.StringFixed(2),
			Net:          p.NetDisbursement.StringFixed(2),
			NetWords:     AmountInWords(p.NetDisbursement),
		},
	}, nil
}

func (s *MailSink) advanceNotice(ctx context.Context, evt audit.Event) (*core.EmailMessage, error) {
	t, to, err := s.recipient(ctx, evt.TeacherID)
	if err != nil || to == nil || evt.Amount == nil {
		return nil, err
	}
	entries, err := s.advances.QueryEntries(ctx, advance.Filter{TeacherID: t.ID, OnlyRemaining: true}, core.QueryOptions{})
	if err != nil {
		return nil, err
	}
	balance := advance.Balance(entries)
	return &core.EmailMessage{
		To:           []mail.Address{*to},
		Subject:      "Advance recorded",
		TemplateName: "advance_granted",
		TemplateData: advanceNotice{
			TeacherName: t.Name,
			Amount:      evt.Amount.StringFixed(2),
			Date:        core.FormatDay(evt.Stamped().At),
			Balance:     balance.StringFixed(2),
		},
	}, nil
}

// AmountInWords spells out the whole units of d followed by the cents, e.g. "three thousand and 50/100".
func AmountInWords(d decimal.Decimal) string {
	units := d.Truncate(0)
	cents := d.Sub(units).Mul(decimal.NewFromInt(100)).Round(0).IntPart()
	words := strings.TrimSpace(num2words.Convert(int(units.IntPart())))
	if cents == 0 {
		return words
	}
	return words + " and " + decimal.NewFromInt(cents).String() + "/100"
}
