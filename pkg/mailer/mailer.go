package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"net/smtp"

	"github.com/rs/zerolog/log"
)

// Config holds SMTP configuration
type Config struct {
	Host     string
	Port     string
	Username string
	Password string
	From     string
	FromName string
}

// Mailer handles sending emails
type Mailer struct {
	config Config
}

// New creates a new Mailer instance
func New(cfg Config) *Mailer {
	return &Mailer{config: cfg}
}

// SendFriendRequest notifies a user by email that someone sent them a
// friend request.
func (m *Mailer) SendFriendRequest(toEmail, receiverName, senderName string) error {
	subject := fmt.Sprintf("Converse - %s sent you a friend request", senderName)

	body, err := m.renderFriendRequestTemplate(receiverName, senderName)
	if err != nil {
		return fmt.Errorf("failed to render email template: %w", err)
	}

	return m.send(toEmail, subject, body)
}

// send delivers an email via SMTP
func (m *Mailer) send(to, subject, htmlBody string) error {
	addr := fmt.Sprintf("%s:%s", m.config.Host, m.config.Port)

	headers := map[string]string{
		"From":         fmt.Sprintf("%s <%s>", m.config.FromName, m.config.From),
		"To":           to,
		"Subject":      subject,
		"MIME-Version": "1.0",
		"Content-Type": "text/html; charset=\"utf-8\"",
	}

	var msg bytes.Buffer
	for k, v := range headers {
		msg.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.config.Username != "" && m.config.Password != "" {
		auth = smtp.PlainAuth("", m.config.Username, m.config.Password, m.config.Host)
	}

	if err := smtp.SendMail(addr, auth, m.config.From, []string{to}, msg.Bytes()); err != nil {
		log.Error().Err(err).Str("to", to).Msg("failed to send email")
		return fmt.Errorf("failed to send email: %w", err)
	}

	log.Info().Str("to", to).Str("subject", subject).Msg("email sent")
	return nil
}

// renderFriendRequestTemplate returns the HTML body for the friend
// request notification email
func (m *Mailer) renderFriendRequestTemplate(receiverName, senderName string) (string, error) {
	tmpl := `<!DOCTYPE html>
<html>
<head>
    <meta charset="utf-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
</head>
<body style="margin:0;padding:0;background-color:#0f0f23;font-family:'Segoe UI',Tahoma,Geneva,Verdana,sans-serif;">
    <div style="max-width:500px;margin:40px auto;background:linear-gradient(135deg,#1a1a2e 0%,#16213e 100%);border-radius:16px;overflow:hidden;border:1px solid rgba(99,102,241,0.2);">
        <div style="background:linear-gradient(135deg,#6366f1 0%,#8b5cf6 100%);padding:32px;text-align:center;">
            <h1 style="color:#fff;margin:0;font-size:28px;font-weight:700;">Converse</h1>
            <p style="color:rgba(255,255,255,0.85);margin:8px 0 0;font-size:14px;">New Friend Request</p>
        </div>

        <div style="padding:32px;">
            <p style="color:#e2e8f0;font-size:16px;line-height:1.6;margin:0 0 24px;">
                Hi <strong style="color:#a78bfa;">{{.ReceiverName}}</strong>,
            </p>
            <p style="color:#94a3b8;font-size:14px;line-height:1.6;margin:0 0 24px;">
                <strong style="color:#818cf8;">{{.SenderName}}</strong> wants to connect with you on Converse.
                Open the app to accept or decline the request.
            </p>
            <p style="color:#64748b;font-size:13px;line-height:1.5;margin:0;">
                If you don't recognize this person, you can safely ignore this email.
            </p>
        </div>

        <div style="padding:16px 32px;border-top:1px solid rgba(99,102,241,0.1);text-align:center;">
            <p style="color:#475569;font-size:12px;margin:0;">© 2026 Converse. All rights reserved.</p>
        </div>
    </div>
</body>
</html>`

	t, err := template.New("friend_request").Parse(tmpl)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	err = t.Execute(&buf, map[string]interface{}{
		"ReceiverName": receiverName,
		"SenderName":   senderName,
	})
	return buf.String(), err
}
