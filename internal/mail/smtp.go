package mail

import (
	"context"
	"fmt"
	"net/smtp"

	"github.com/jordan-wright/email"

	"github.com/pizza-nz/shiftreport-service/internal/config"
)

// SMTPSender delivers rendered messages through an SMTP relay
type SMTPSender struct {
	host     string
	user     string
	password string
	from     string
	addr     string
}

func NewSMTPSender(cfg config.SMTP) *SMTPSender {
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	return &SMTPSender{
		host:     cfg.Host,
		user:     cfg.User,
		password: cfg.Password,
		from:     from,
		addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
	}
}

func (s *SMTPSender) build(msg *Rendered) *email.Email {
	e := email.NewEmail()
	e.From = s.from
	e.To = []string{msg.To}
	e.Subject = msg.Subject
	e.Text = []byte(msg.Text)
	return e
}

// Deliver sends one message. Relays without credentials are used
// unauthenticated.
func (s *SMTPSender) Deliver(_ context.Context, msg *Rendered) error {
	var auth smtp.Auth
	if s.user != "" {
		auth = smtp.PlainAuth("", s.user, s.password, s.host)
	}

	if err := s.build(msg).Send(s.addr, auth); err != nil {
		return fmt.Errorf("mailer: send to %s: %w", msg.To, err)
	}
	return nil
}
