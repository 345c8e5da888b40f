package notify

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// SMTPMailer sends email over plain SMTP with optional AUTH. It satisfies
// Mailer; failures bubble up to the notifier where they are logged only.
type SMTPMailer struct {
	Addr     string // host:port
	From     string
	Username string
	Password string
}

func (m *SMTPMailer) Send(ctx context.Context, recipient, subject, htmlBody string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg strings.Builder
	fmt.Fprintf(&msg, "From: %s\r\n", m.From)
	fmt.Fprintf(&msg, "To: %s\r\n", recipient)
	fmt.Fprintf(&msg, "Subject: %s\r\n", subject)
	msg.WriteString("MIME-Version: 1.0\r\n")
	msg.WriteString("Content-Type: text/html; charset=\"UTF-8\"\r\n")
	msg.WriteString("\r\n")
	msg.WriteString(htmlBody)

	var auth smtp.Auth
	if m.Username != "" {
		host := m.Addr
		if i := strings.IndexByte(host, ':'); i >= 0 {
			host = host[:i]
		}
		auth = smtp.PlainAuth("", m.Username, m.Password, host)
	}

	if err := smtp.SendMail(m.Addr, auth, m.From, []string{recipient}, []byte(msg.String())); err != nil {
		return fmt.Errorf("smtp send to %s: %w", recipient, err)
	}
	return nil
}
