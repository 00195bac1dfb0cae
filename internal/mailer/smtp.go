package mailer

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/smtp"
	"time"

	"github.com/letterdrop/letterdrop/internal/model"
)

// SMTPSender implements Sender over a raw SMTP session. It supports
// implicit TLS (direct TLS socket) and STARTTLS (plaintext dial,
// upgrade before auth). Every session is bounded by a deadline so a
// stalled server surfaces as a timeout error instead of a hang.
type SMTPSender struct {
	creds   model.SMTPCredentials
	timeout time.Duration
}

// NewSMTPSender creates an SMTPSender for one run's credentials
func NewSMTPSender(creds model.SMTPCredentials, timeout time.Duration) *SMTPSender {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SMTPSender{creds: creds, timeout: timeout}
}

// Send opens a session, authenticates, transmits the message, and
// terminates cleanly. Any failure is returned as an error; nothing is
// retried.
func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	payload, err := buildMIME(s.creds.SenderEmail, msg)
	if err != nil {
		return err
	}

	deadline := time.Now().Add(s.timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	client, err := s.dial(deadline)
	if err != nil {
		return err
	}
	defer client.Close()

	if s.creds.Encryption == model.EncryptionSTARTTLS {
		if err := client.StartTLS(&tls.Config{ServerName: s.creds.Server}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}

	auth := smtp.PlainAuth("", s.creds.SenderEmail, s.creds.SenderPassword, s.creds.Server)
	if err := client.Auth(auth); err != nil {
		return fmt.Errorf("auth: %w", err)
	}

	if err := client.Mail(s.creds.SenderEmail); err != nil {
		return fmt.Errorf("mail from: %w", err)
	}
	if err := client.Rcpt(msg.To); err != nil {
		return fmt.Errorf("rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("data: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finish message: %w", err)
	}

	return client.Quit()
}

// dial opens the transport connection according to the encryption mode
// and arms the session deadline on the raw socket.
func (s *SMTPSender) dial(deadline time.Time) (*smtp.Client, error) {
	dialer := &net.Dialer{Deadline: deadline}
	addr := s.creds.Addr()

	var conn net.Conn
	var err error
	if s.creds.Encryption == model.EncryptionSSL {
		conn, err = tls.DialWithDialer(dialer, "tcp", addr, &tls.Config{ServerName: s.creds.Server})
	} else {
		conn, err = dialer.Dial("tcp", addr)
	}
	if err != nil {
		return nil, fmt.Errorf("connect %s: %w", addr, err)
	}
	if err := conn.SetDeadline(deadline); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, s.creds.Server)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("smtp handshake: %w", err)
	}
	return client, nil
}
