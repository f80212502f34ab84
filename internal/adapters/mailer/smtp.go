package mailer

import (
	"context"
	"fmt"
	"time"

	gomail "gopkg.in/gomail.v2"

	"teetime-monitor/internal/infra/metrics"
)

// SMTPMailer реализует domain.Mailer поверх SMTP.
type SMTPMailer struct {
	dialer  *gomail.Dialer
	from    string
	replyTo string
	timeout time.Duration
}

// Config описывает подключение к SMTP-серверу.
type Config struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	ReplyTo  string
	Timeout  time.Duration
}

// NewSMTP создаёт транспорт.
func NewSMTP(cfg Config) (*SMTPMailer, error) {
	if cfg.User == "" || cfg.Password == "" {
		return nil, fmt.Errorf("не заданы учётные данные SMTP (EMAIL_USER, EMAIL_PASSWORD)")
	}
	from := cfg.From
	if from == "" {
		from = cfg.User
	}
	replyTo := cfg.ReplyTo
	if replyTo == "" {
		replyTo = from
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPMailer{
		dialer:  gomail.NewDialer(cfg.Host, cfg.Port, cfg.User, cfg.Password),
		from:    from,
		replyTo: replyTo,
		timeout: timeout,
	}, nil
}

// Send отправляет письмо. Вызов ограничен таймаутом: зависший SMTP-диалог
// трактуется как неудача, повторяемая на следующем цикле.
func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := gomail.NewMessage()
	msg.SetHeader("From", m.from)
	msg.SetHeader("To", to)
	msg.SetHeader("Reply-To", m.replyTo)
	msg.SetHeader("Subject", subject)
	msg.SetBody("text/plain", body)

	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	done := make(chan error, 1)
	start := time.Now()
	go func() {
		done <- m.dialer.DialAndSend(msg)
	}()

	var err error
	select {
	case err = <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	metrics.ObserveNetworkRequest("smtp", "send", to, start, err)
	if err != nil {
		return fmt.Errorf("отправка письма %s: %w", to, err)
	}
	return nil
}
