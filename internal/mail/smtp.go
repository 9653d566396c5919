// Package mail renders and sends the outbound emails produced by queued jobs.
package mail

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/smtp"
	"strings"
	"time"
)

type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type SMTPConfig struct {
	Addr     string
	User     string
	Password string
	From     string
	Timeout  time.Duration
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// SMTPMailer sends plain-text messages through a single relay.
type SMTPMailer struct {
	addr     string
	auth     smtp.Auth
	from     string
	timeout  time.Duration
	sendMail sendMailFunc
	log      *slog.Logger
}

func NewSMTPMailer(cfg SMTPConfig, log *slog.Logger) *SMTPMailer {
	if log == nil {
		log = slog.Default()
	}
	var auth smtp.Auth
	if cfg.User != "" || cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.User, cfg.Password, host(cfg.Addr))
	}
	from := strings.TrimSpace(cfg.From)
	if from == "" {
		from = "no-reply@booking.local"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &SMTPMailer{
		addr:     cfg.Addr,
		auth:     auth,
		from:     from,
		timeout:  cfg.Timeout,
		sendMail: smtp.SendMail,
		log:      log.With(slog.String("component", "mail.smtp")),
	}
}

func (m *SMTPMailer) Send(ctx context.Context, to, subject, body string) error {
	msg := buildMessage(m.from, to, subject, body)
	log := m.log.With(
		slog.String("smtp_addr", m.addr),
		slog.String("to", to),
		slog.String("subject", subject),
	)

	// smtp.SendMail takes no context; bound it with the configured timeout instead.
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	errCh := make(chan error, 1)
	go func() {
		errCh <- m.sendMail(m.addr, m.auth, m.from, []string{to}, []byte(msg))
	}()

	select {
	case err := <-errCh:
		if err != nil {
			log.Error("sendmail failed", slog.Any("err", err))
			return err
		}
	case <-ctx.Done():
		log.Error("sendmail timed out", slog.Any("err", ctx.Err()))
		return fmt.Errorf("sendmail: %w", ctx.Err())
	}

	log.Info("email sent", slog.Duration("elapsed", time.Since(start)))
	return nil
}

func buildMessage(from, to, subject, body string) string {
	return fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n%s\r\n",
		from,
		to,
		subject,
		body,
	)
}

func host(addr string) string {
	if h, _, err := net.SplitHostPort(addr); err == nil {
		return h
	}
	return addr
}
