package email

import (
	"bufio"
	"context"
	"errors"
	"net"
	"net/mail"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/invoicing/backend/internal/infrastructure/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

// smtpStub accepts one session and records the envelope and data
type smtpStub struct {
	ln       net.Listener
	mu       sync.Mutex
	from     string
	rcpts    []string
	data     string
	rejectTo string
	done     chan struct{}
}

func startSMTPStub(t *testing.T, rejectTo string) *smtpStub {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	s := &smtpStub{ln: ln, rejectTo: rejectTo, done: make(chan struct{})}
	t.Cleanup(func() { _ = ln.Close() })
	go s.serve()
	return s
}

func (s *smtpStub) port() int {
	return s.ln.Addr().(*net.TCPAddr).Port
}

func (s *smtpStub) serve() {
	defer close(s.done)
	conn, err := s.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()
	r := bufio.NewReader(conn)
	reply := func(line string) { _, _ = conn.Write([]byte(line + "\r\n")) }

	reply("220 stub ESMTP")
	for {
		line, err := r.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimRight(line, "\r\n")
		cmd := strings.ToUpper(line)
		switch {
		case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
			reply("250 stub")
		case strings.HasPrefix(cmd, "MAIL FROM:"):
			s.mu.Lock()
			s.from = strings.Trim(line[len("MAIL FROM:"):], "<> ")
			s.mu.Unlock()
			reply("250 OK")
		case strings.HasPrefix(cmd, "RCPT TO:"):
			to := strings.Trim(line[len("RCPT TO:"):], "<> ")
			if to == s.rejectTo {
				reply("550 no such user")
				continue
			}
			s.mu.Lock()
			s.rcpts = append(s.rcpts, to)
			s.mu.Unlock()
			reply("250 OK")
		case cmd == "DATA":
			reply("354 go ahead")
			var b strings.Builder
			for {
				l, err := r.ReadString('\n')
				if err != nil {
					return
				}
				if l == ".\r\n" {
					break
				}
				b.WriteString(l)
			}
			s.mu.Lock()
			s.data = b.String()
			s.mu.Unlock()
			reply("250 queued")
		case cmd == "QUIT":
			reply("221 bye")
			return
		default:
			reply("250 OK")
		}
	}
}

func stubConfig(port int) config.EmailConfig {
	return config.EmailConfig{
		Enabled:   true,
		SMTPHost:  "127.0.0.1",
		SMTPPort:  port,
		FromEmail: "billing@acme.test",
		FromName:  "Acme",
		Timeout:   5 * time.Second,
	}
}

func TestSMTPSender_Send(t *testing.T) {
	stub := startSMTPStub(t, "")
	sender := NewSMTPSender(stubConfig(stub.port()))

	err := sender.Send(context.Background(), Message{
		From:    mail.Address{Name: "Acme", Address: "billing@acme.test"},
		To:      []string{"client@example.com"},
		Subject: "Invoice INV-2026-0001",
		Body:    "line one\nline two",
	})
	require.NoError(t, err)
	<-stub.done

	stub.mu.Lock()
	defer stub.mu.Unlock()
	assert.Equal(t, "billing@acme.test", stub.from)
	assert.Equal(t, []string{"client@example.com"}, stub.rcpts)
	assert.Contains(t, stub.data, "Subject: Invoice INV-2026-0001\r\n")
	assert.Contains(t, stub.data, "line one\r\nline two\r\n")
}

func TestSMTPSender_RejectedRecipient(t *testing.T) {
	stub := startSMTPStub(t, "nobody@example.com")
	sender := NewSMTPSender(stubConfig(stub.port()))

	err := sender.Send(context.Background(), Message{
		From: mail.Address{Address: "billing@acme.test"},
		To:   []string{"nobody@example.com"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp rcpt nobody@example.com")
}

func TestSMTPSender_NoRecipients(t *testing.T) {
	sender := NewSMTPSender(stubConfig(1))
	assert.ErrorIs(t, sender.Send(context.Background(), Message{}), ErrNoRecipients)
}

func TestSMTPSender_DialFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, ln.Close())

	sender := NewSMTPSender(stubConfig(port))
	err = sender.Send(context.Background(), Message{To: []string{"a@b.test"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp dial 127.0.0.1:"+strconv.Itoa(port))
}

func TestMessage_Bytes(t *testing.T) {
	now := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	raw := string(Message{
		From:    mail.Address{Name: "Acme", Address: "billing@acme.test"},
		To:      []string{"a@example.com", "b@example.com"},
		ReplyTo: "owner@acme.test",
		Subject: "Rechnung für März",
		Body:    "Hallo\r\nWelt",
	}.Bytes(now))

	assert.Contains(t, raw, "From: \"Acme\" <billing@acme.test>\r\n")
	assert.Contains(t, raw, "To: a@example.com, b@example.com\r\n")
	assert.Contains(t, raw, "Reply-To: owner@acme.test\r\n")
	assert.Contains(t, raw, "Subject: =?utf-8?q?")
	assert.Contains(t, raw, "Date: Sun, 01 Mar 2026 10:00:00 +0000\r\n")
	assert.True(t, strings.HasSuffix(raw, "\r\n\r\nHallo\r\nWelt\r\n"))
}

type recordingSender struct {
	sent []Message
	err  error
}

func (r *recordingSender) Send(_ context.Context, msg Message) error {
	r.sent = append(r.sent, msg)
	return r.err
}

func TestCompositeSender(t *testing.T) {
	ok := &recordingSender{}
	failing := &recordingSender{err: errors.New("relay down")}
	cs := NewCompositeSender(failing, nil, ok)

	err := cs.Send(context.Background(), Message{To: []string{"a@b.test"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay down")
	assert.Len(t, ok.sent, 1, "later senders still run after a failure")
	assert.Len(t, failing.sent, 1)

	assert.Error(t, NewCompositeSender().Send(context.Background(), Message{}))
}

func TestNewSender(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	logger := zap.New(core)

	s := NewSender(config.EmailConfig{Enabled: false}, logger)
	_, isLogging := s.(*LoggingSender)
	require.True(t, isLogging)

	require.NoError(t, s.Send(context.Background(), Message{To: []string{"a@b.test"}, Subject: "hi"}))
	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "outgoing email", logs.All()[0].Message)

	s = NewSender(config.EmailConfig{Enabled: true, SMTPHost: "smtp.test", SMTPPort: 25}, logger)
	_, isComposite := s.(*CompositeSender)
	assert.True(t, isComposite)
}
