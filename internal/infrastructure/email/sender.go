// Package email delivers outgoing mail. Senders take a fully addressed
// Message; rendering of invoice emails lives in invoice_sender.go.
package email

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"go.uber.org/zap"
)

// ErrNoRecipients is returned when a message has no To address
var ErrNoRecipients = errors.New("email: message has no recipients")

// Message is a plain-text email
type Message struct {
	From    mail.Address
	To      []string
	ReplyTo string
	Subject string
	Body    string
}

// Bytes renders the message with RFC 5322 headers and CRLF line endings
func (m Message) Bytes(now time.Time) []byte {
	var b bytes.Buffer
	b.WriteString("From: " + m.From.String() + "\r\n")
	b.WriteString("To: " + strings.Join(m.To, ", ") + "\r\n")
	if m.ReplyTo != "" {
		b.WriteString("Reply-To: " + m.ReplyTo + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", m.Subject) + "\r\n")
	b.WriteString("Date: " + now.Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	body := strings.ReplaceAll(m.Body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	if !strings.HasSuffix(body, "\n") {
		b.WriteString("\r\n")
	}
	return b.Bytes()
}

// Sender delivers a message
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPSender delivers mail through an SMTP relay, upgrading to TLS when the
// server offers STARTTLS.
type SMTPSender struct {
	host     string
	addr     string
	username string
	password string
	timeout  time.Duration
}

// NewSMTPSender creates a new SMTPSender
func NewSMTPSender(cfg config.EmailConfig) *SMTPSender {
	return &SMTPSender{
		host:     cfg.SMTPHost,
		addr:     net.JoinHostPort(cfg.SMTPHost, strconv.Itoa(cfg.SMTPPort)),
		username: cfg.Username,
		password: cfg.Password,
		timeout:  cfg.Timeout,
	}
}

// Send sends one message. The whole SMTP exchange is bounded by the
// configured timeout and by ctx.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.To) == 0 {
		return ErrNoRecipients
	}
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	var dialer net.Dialer
	conn, err := dialer.DialContext(ctx, "tcp", s.addr)
	if err != nil {
		return fmt.Errorf("smtp dial %s: %w", s.addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, s.host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(tlsConfig(s.host)); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.username != "" {
		if ok, _ := c.Extension("AUTH"); ok {
			if err := c.Auth(smtp.PlainAuth("", s.username, s.password, s.host)); err != nil {
				return fmt.Errorf("smtp auth: %w", err)
			}
		}
	}

	if err := c.Mail(msg.From.Address); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	for _, to := range msg.To {
		if err := c.Rcpt(to); err != nil {
			return fmt.Errorf("smtp rcpt %s: %w", to, err)
		}
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg.Bytes(time.Now())); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp data close: %w", err)
	}
	return c.Quit()
}

func tlsConfig(host string) *tls.Config {
	return &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12}
}

// LoggingSender only logs messages. Used when email is disabled.
type LoggingSender struct {
	logger *zap.Logger
}

// NewLoggingSender creates a new LoggingSender
func NewLoggingSender(logger *zap.Logger) *LoggingSender {
	return &LoggingSender{logger: logger}
}

// Send logs the envelope; the body is logged at debug level
func (s *LoggingSender) Send(_ context.Context, msg Message) error {
	s.logger.Info("outgoing email",
		zap.Strings("to", msg.To),
		zap.String("from", msg.From.Address),
		zap.String("subject", msg.Subject),
	)
	s.logger.Debug("email body", zap.String("body", msg.Body))
	return nil
}

// CompositeSender hands every message to all of its senders
type CompositeSender struct {
	senders []Sender
}

// NewCompositeSender creates a new CompositeSender
func NewCompositeSender(senders ...Sender) *CompositeSender {
	cs := &CompositeSender{}
	for _, s := range senders {
		cs.AddSender(s)
	}
	return cs
}

// AddSender appends a sender; nil is ignored
func (cs *CompositeSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send calls every sender and joins their errors
func (cs *CompositeSender) Send(ctx context.Context, msg Message) error {
	if len(cs.senders) == 0 {
		return errors.New("email: no senders configured")
	}
	var errs []error
	for _, s := range cs.senders {
		if err := s.Send(ctx, msg); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// NewSender builds the sender for cfg. With email disabled messages are
// only logged; otherwise they go over SMTP and are logged too.
func NewSender(cfg config.EmailConfig, logger *zap.Logger) Sender {
	logging := NewLoggingSender(logger.Named("email"))
	if !cfg.Enabled {
		return logging
	}
	return NewCompositeSender(NewSMTPSender(cfg), logging)
}
