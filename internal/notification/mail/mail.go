// Package mail renders plain text emails and sends them over SMTP.
package mail

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"text/template"
	"time"

	"grievance/internal/notification/models"
)

//go:embed templates/*.txt
var templateFS embed.FS

var templates = template.Must(template.ParseFS(templateFS, "templates/*.txt"))

type Config struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	AppName  string
}

// Sender delivers a rendered message. SMTP is the production sender; LogSender
// is used when no mail host is configured.
type Sender interface {
	Send(ctx context.Context, to, subject, body string) error
}

type Mailer struct {
	sender  Sender
	appName string
}

// NewMailer renders the application emails and hands them to sender.
func NewMailer(sender Sender, appName string) *Mailer {
	if appName == "" {
		appName = "Grievance"
	}
	return &Mailer{sender: sender, appName: appName}
}

// SendVerificationCode delivers the registration code email.
func (m *Mailer) SendVerificationCode(ctx context.Context, email, name, code string, expiresIn time.Duration) error {
	body, err := render("verify-email.txt", map[string]any{
		"Name":    name,
		"Code":    code,
		"Minutes": int(expiresIn.Minutes()),
		"AppName": m.appName,
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, email, "Verify your email address", body)
}

// SendMessage delivers the mail part of a notification.
func (m *Mailer) SendMessage(ctx context.Context, to models.Recipient, msg *models.Mail) error {
	body, err := render("notification.txt", map[string]any{
		"Name":    to.Name,
		"Lines":   msg.Lines,
		"Action":  msg.Action,
		"URL":     msg.URL,
		"Outro":   msg.Outro,
		"AppName": m.appName,
	})
	if err != nil {
		return err
	}
	return m.sender.Send(ctx, to.Email, msg.Subject, body)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}

type SMTP struct {
	cfg  Config
	dial func(ctx context.Context, addr string) (net.Conn, error)
}

// NewSMTP builds a sender for cfg.
func NewSMTP(cfg Config) *SMTP {
	d := &net.Dialer{Timeout: 10 * time.Second}
	return &SMTP{cfg: cfg, dial: func(ctx context.Context, addr string) (net.Conn, error) {
		return d.DialContext(ctx, "tcp", addr)
	}}
}

// Send delivers a plain text message over SMTP, using STARTTLS when offered.
func (s *SMTP) Send(ctx context.Context, to, subject, body string) error {
	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))
	conn, err := s.dial(ctx, addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}
	c, err := smtp.NewClient(conn, s.cfg.Host)
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if ok, _ := c.Extension("STARTTLS"); ok {
		if err := c.StartTLS(tlsConfig(s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp starttls: %w", err)
		}
	}
	if s.cfg.Username != "" {
		if err := c.Auth(smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}
	if err := c.Mail(s.cfg.From); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt: %w", err)
	}
	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(compose(s.cfg.From, to, subject, body)); err != nil {
		_ = w.Close()
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close data: %w", err)
	}
	return c.Quit()
}

func compose(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n\r\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// LogSender writes mails to the log instead of sending them.
type LogSender struct {
	Logger *slog.Logger
}

// Send logs the message instead of delivering it.
func (l LogSender) Send(ctx context.Context, to, subject, body string) error {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.InfoContext(ctx, "mail not sent, no smtp host configured", "to", to, "subject", subject, "body", body)
	return nil
}
