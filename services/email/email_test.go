package emailsvc

import (
	"io"
	"net/mail"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/lecturepay/core"
	logsvc "github.com/trezcool/lecturepay/services/logger"
)

var (
	logger = logsvc.NewConsoleLogger(io.Discard, "error")
	conf   = &core.Config{
		AppName: "LecturePay",
		Mail:    core.MailConfig{DefaultFromEmail: mail.Address{Name: "LecturePay", Address: "noreply@lecturepay.test"}},
	}
	tina = mail.Address{Name: "Tina", Address: "tina@test.cd"}
)

func TestNew(t *testing.T) {
	_, ok := New(conf, nil, logger).(*consoleService)
	assert.True(t, ok, "console without an API key")

	withKey := *conf
	withKey.Mail.SendgridAPIKey = "SG.key"
	_, ok = New(&withKey, nil, logger).(*sendgridService)
	assert.True(t, ok, "sendgrid with an API key")
}

func TestConsoleServiceMock(t *testing.T) {
	svc := NewConsoleServiceMock(conf, nil, logger)

	attached := &core.EmailMessage{To: []mail.Address{tina}, Subject: "Export"}
	require.NoError(t, attached.Attach(strings.NewReader("a,b\n"), "payments.csv", "text/csv"))

	svc.SendMessages(
		&core.EmailMessage{To: []mail.Address{tina}, Subject: "Hi", BodyStr: "hello"},
		&core.EmailMessage{Subject: "nobody to send to", BodyStr: "lost"},
		&core.EmailMessage{To: []mail.Address{tina}, Subject: "empty"},
		&core.EmailMessage{To: []mail.Address{tina}, TemplateName: "payment_advice"}, // no templates loaded
		attached,
	)

	sent := svc.SentMessages()
	require.Len(t, sent, 2)
	assert.Equal(t, "hello", sent[0].TextContent)
	assert.Equal(t, "Export", sent[1].Subject)
	assert.Equal(t, "YSxiCg==", sent[1].Attachments[0].Content.String())
}

func TestSendgridService_prepare(t *testing.T) {
	svc := NewSendgridService(conf, nil, logger).(*sendgridService)
	msg := core.EmailMessage{
		To:          []mail.Address{tina},
		Cc:          []mail.Address{{Address: "cc@test.cd"}},
		Subject:     "Payment advice",
		TextContent: "paid",
		HTMLContent: "<p>paid</p>",
	}

	m := svc.prepare(msg)
	require.Len(t, m.Personalizations, 1)
	p := m.Personalizations[0]
	assert.Equal(t, "[LecturePay] Payment advice", p.Subject)
	assert.Equal(t, "tina@test.cd", p.To[0].Address)
	assert.Equal(t, "cc@test.cd", p.CC[0].Address)
	assert.Equal(t, "noreply@lecturepay.test", m.From.Address)
	require.Len(t, m.Content, 2)
	assert.Equal(t, "text/plain", m.Content[0].Type)
	assert.Equal(t, "<p>paid</p>", m.Content[1].Value)
}
