package notify

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"time"

	"soundwatch/internal/models"
)

// EmailConfig holds SMTP settings for the email notifier
type EmailConfig struct {
	Host      string
	Port      int
	Sender    string
	Password  string
	Recipient string
	Timeout   time.Duration
}

// Email sends alerts over SMTP with STARTTLS and plain auth
type Email struct {
	cfg EmailConfig
}

// NewEmail creates an email notifier
func NewEmail(cfg EmailConfig) *Email {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Email{cfg: cfg}
}

// Name implements Notifier
func (e *Email) Name() string { return "email" }

// Notify implements Notifier
func (e *Email) Notify(ctx context.Context, d models.Decision) error {
	if e.cfg.Sender == "" || e.cfg.Password == "" || e.cfg.Recipient == "" {
		return errors.New("email notifier missing credentials")
	}

	addr := net.JoinHostPort(e.cfg.Host, strconv.Itoa(e.cfg.Port))
	dialer := net.Dialer{Timeout: e.cfg.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp %s: %w", addr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(e.cfg.Timeout)
	if dl, ok := ctx.Deadline(); ok && dl.Before(deadline) {
		deadline = dl
	}
	if err := conn.SetDeadline(deadline); err != nil {
		return fmt.Errorf("set smtp deadline: %w", err)
	}

	client, err := smtp.NewClient(conn, e.cfg.Host)
	if err != nil {
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer client.Close()

	if ok, _ := client.Extension("STARTTLS"); ok {
		if err := client.StartTLS(&tls.Config{ServerName: e.cfg.Host}); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if err := client.Auth(smtp.PlainAuth("", e.cfg.Sender, e.cfg.Password, e.cfg.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := client.Mail(e.cfg.Sender); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := client.Rcpt(e.cfg.Recipient); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := client.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(e.message(d)); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return client.Quit()
}

// message renders the RFC 5322 message
func (e *Email) message(d models.Decision) []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: Sound Monitor <%s>\r\n", e.cfg.Sender)
	fmt.Fprintf(&buf, "To: %s\r\n", e.cfg.Recipient)
	fmt.Fprintf(&buf, "Subject: ALERT: fault detected - %s\r\n", d.Status)
	fmt.Fprintf(&buf, "Date: %s\r\n", d.Timestamp.Format(time.RFC1123Z))
	buf.WriteString("MIME-Version: 1.0\r\n")
	buf.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	buf.WriteString(Message(d))
	buf.WriteString("\r\n")
	return buf.Bytes()
}
