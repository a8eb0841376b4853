package core

import (
	"net/mail"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var emailFS = fstest.MapFS{
	"email/_base.txt":     {Data: []byte(`{{template "content" .}}-- {{.AppName}}`)},
	"email/_base.gohtml":  {Data: []byte(`<body>{{template "content" .}}</body>`)},
	"email/hello.txt":     {Data: []byte(`{{define "content"}}Hello {{.Data.Name}} {{end}}`)},
	"email/hello.gohtml":  {Data: []byte(`{{define "content"}}<b>{{.Data.Name}}</b>{{end}}`)},
	"email/text_only.txt": {Data: []byte(`{{define "content"}}plain{{end}}`)},
	"email/notes.md":      {Data: []byte(`ignored`)},
}

func TestEmailMessage_Render(t *testing.T) {
	tmpls, err := ParseTemplates(emailFS, "email", "LecturePay", true)
	require.NoError(t, err)

	tests := []struct {
		name     string
		msg      EmailMessage
		wantText string
		wantHTML string
		wantErr  bool
	}{
		{
			name:     "text and html",
			msg:      EmailMessage{TemplateName: "hello", TemplateData: map[string]string{"Name": "<Tina>"}},
			wantText: "Hello <Tina> -- LecturePay",
			wantHTML: "<body><b>&lt;Tina&gt;</b></body>",
		},
		{
			name:     "text only",
			msg:      EmailMessage{TemplateName: "text_only"},
			wantText: "plain-- LecturePay",
		},
		{
			name:     "plain body wins",
			msg:      EmailMessage{BodyStr: "raw"},
			wantText: "raw",
		},
		{
			name:    "missing key",
			msg:     EmailMessage{TemplateName: "hello", TemplateData: map[string]string{}},
			wantErr: true,
		},
		{
			name: "unknown template",
			msg:  EmailMessage{TemplateName: "nope"},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			msg := tc.msg
			err := msg.Render(tmpls)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.wantText, msg.TextContent)
			assert.Equal(t, tc.wantHTML, msg.HTMLContent)
		})
	}
}

func TestEmailMessage_Render_noTemplates(t *testing.T) {
	msg := EmailMessage{To: []mail.Address{{Address: "a@test.cd"}}, TemplateName: "hello"}
	assert.Error(t, msg.Render(nil))
}
