// AngelaMos | 2026
// templates.go

package mail

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

type RecoveryData struct {
	AppName   string
	Name      string
	Link      string
	ExpiresIn string
}

var (
	recoveryHTML = htmltemplate.Must(htmltemplate.New("recovery.html").Parse(recoveryHTMLTemplate))
	recoveryText = texttemplate.Must(texttemplate.New("recovery.txt").Parse(recoveryTextTemplate))
)

// RecoveryLink builds "<appURL>/reset-password?t=<token>".
func RecoveryLink(appURL, token string) string {
	return strings.TrimRight(appURL, "/") + "/reset-password?t=" + token
}

func BuildRecoveryMessage(to, subject string, data RecoveryData) (Message, error) {
	var text, html bytes.Buffer

	if err := recoveryText.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("render recovery text: %w", err)
	}
	if err := recoveryHTML.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("render recovery html: %w", err)
	}

	return Message{
		To:       to,
		ToName:   data.Name,
		Subject:  subject,
		TextBody: text.String(),
		HTMLBody: html.String(),
	}, nil
}

const recoveryTextTemplate = `Hello {{if .Name}}{{.Name}}{{else}}there{{end}},

Someone asked to reset the password for your {{.AppName}} account.
Open this link to choose a new password:

{{.Link}}

The link expires in {{.ExpiresIn}} and works once.
If you did not ask for this, ignore this email. Your password stays the same.
`

const recoveryHTMLTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Password recovery</title>
</head>
<body style="margin: 0; padding: 24px; font-family: Arial, sans-serif; background-color: #f3f4f6;">
  <table role="presentation" width="100%" cellspacing="0" cellpadding="0">
    <tr>
      <td align="center">
        <table role="presentation" width="100%" cellspacing="0" cellpadding="0" style="max-width: 480px; background-color: #ffffff; border-radius: 8px; padding: 32px;">
          <tr><td>
            <h1 style="margin: 0 0 16px; font-size: 20px; color: #111827;">{{.AppName}}</h1>
            <p style="color: #374151;">Hello {{if .Name}}{{.Name}}{{else}}there{{end}},</p>
            <p style="color: #374151;">Someone asked to reset the password for your account. Use the button below to choose a new one.</p>
            <p style="text-align: center; margin: 24px 0;">
              <a href="{{.Link}}" style="display: inline-block; padding: 12px 24px; background-color: #4f46e5; color: #ffffff; text-decoration: none; border-radius: 6px;">Reset password</a>
            </p>
            <p style="color: #6b7280; font-size: 13px;">The link expires in {{.ExpiresIn}} and works once. If you did not ask for this, ignore this email.</p>
          </td></tr>
        </table>
      </td>
    </tr>
  </table>
</body>
</html>
`
