// Package mail delivers the one-time verification codes by email.
package mail

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"gopkg.in/gomail.v2"
)

const otpSubject = "Your CodeShare verification code"

// Mailer sends verification codes.
type Mailer interface {
	SendOTP(ctx context.Context, to, code string) error
}

// SMTPConfig is the relay the SMTP mailer dials for every message.
type SMTPConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
}

// SMTPMailer sends through an SMTP relay with STARTTLS.
type SMTPMailer struct {
	dialer *gomail.Dialer
	from   string
}

func NewSMTPMailer(cfg SMTPConfig) *SMTPMailer {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPMailer{
		dialer: gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:   from,
	}
}

// SendOTP dials the relay, sends one message and hangs up. gomail has no
// context support, so ctx is only checked before dialing.
func (m *SMTPMailer) SendOTP(ctx context.Context, to, code string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := gomail.NewMessage()
	msg.SetHeader("From", msg.FormatAddress(m.from, "CodeShare"))
	msg.SetHeader("To", to)
	msg.SetHeader("Subject", otpSubject)
	msg.SetBody("text/plain", otpText(code))
	msg.AddAlternative("text/html", otpHTML(code))

	if err := m.dialer.DialAndSend(msg); err != nil {
		return fmt.Errorf("mail: sending otp to %s: %w", to, err)
	}
	return nil
}

// LogMailer writes to the log instead of sending. It is used when no SMTP
// credentials are configured. The code itself is only logged outside
// production.
type LogMailer struct {
	log        zerolog.Logger
	production bool
}

func NewLogMailer(log zerolog.Logger, production bool) *LogMailer {
	return &LogMailer{log: log, production: production}
}

func (m *LogMailer) SendOTP(_ context.Context, to, code string) error {
	ev := m.log.Warn().Str("to", to)
	if !m.production {
		ev = ev.Str("code", code)
	}
	ev.Msg("email not configured, otp not sent")
	return nil
}

func otpText(code string) string {
	return fmt.Sprintf("Your CodeShare verification code is %s.\n\nIt expires in 10 minutes. If you did not request it, ignore this email.\n", code)
}

func otpHTML(code string) string {
	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<body style="margin:0;padding:24px;font-family:Arial,sans-serif;background:#f7f9fc;">
  <table align="center" width="480" style="background:#ffffff;border-radius:8px;padding:32px;">
    <tr><td>
      <h2 style="margin-top:0;color:#333333;">Verify your email</h2>
      <p style="color:#555555;">Use this code to finish signing up for CodeShare:</p>
      <p style="font-size:32px;font-weight:700;letter-spacing:6px;color:#5271ff;">%s</p>
      <p style="color:#888888;font-size:13px;">The code expires in 10 minutes. If you did not request it, you can ignore this email.</p>
    </td></tr>
  </table>
</body>
</html>`, code)
}
