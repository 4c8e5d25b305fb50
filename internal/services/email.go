package services

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/huangang/replydesk/pkg/logger"
)

var (
	ErrSMTPNotConfigured = errors.New("SMTP server is not configured")
	ErrInvalidEmail      = errors.New("invalid recipient address")
)

type EmailConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
	UseTLS   bool
	UseSSL   bool
}

func (c *EmailConfig) sender() string {
	if c.From != "" {
		return c.From
	}
	return c.Username
}

type EmailService struct {
	settings *SystemSettingService
}

func NewEmailService(settings *SystemSettingService) *EmailService {
	return &EmailService{settings: settings}
}

// GetConfig reads the smtp_* settings. Port defaults to 465 for SSL and
// 587 otherwise.
func (s *EmailService) GetConfig(ctx context.Context) (*EmailConfig, error) {
	values, err := s.settings.All(ctx)
	if err != nil {
		return nil, err
	}
	cfg := &EmailConfig{
		Host:     strings.TrimSpace(values["smtp_server"]),
		Username: values["smtp_user"],
		Password: values["smtp_password"],
		From:     values["smtp_from"],
		UseTLS:   values["smtp_use_tls"] == "true",
		UseSSL:   values["smtp_use_ssl"] == "true",
	}
	if port, err := strconv.Atoi(values["smtp_port"]); err == nil && port > 0 {
		cfg.Port = port
	}
	if cfg.Port == 0 {
		cfg.Port = 587
		if cfg.UseSSL {
			cfg.Port = 465
		}
	}
	return cfg, nil
}

// SendTest delivers a short plain-text message with the current SMTP settings.
func (s *EmailService) SendTest(ctx context.Context, to string) error {
	to = strings.TrimSpace(to)
	if _, err := mail.ParseAddress(to); err != nil {
		return fmt.Errorf("%w %q", ErrInvalidEmail, to)
	}
	cfg, err := s.GetConfig(ctx)
	if err != nil {
		return err
	}
	if cfg.Host == "" {
		return ErrSMTPNotConfigured
	}

	body := "This is a test email from ReplyDesk.\r\n\r\nIf you received it, the SMTP settings are working.\r\n"
	if err := sendMail(cfg, []string{to}, "ReplyDesk SMTP test", body); err != nil {
		logger.Warn().Err(err).Str("host", cfg.Host).Int("port", cfg.Port).Msg("test email failed")
		return fmt.Errorf("send test email: %w", err)
	}
	logger.Info().Str("to", to).Str("host", cfg.Host).Msg("test email sent")
	return nil
}

func buildMessage(from string, to []string, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(to, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	fmt.Fprintf(&b, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(body)
	return []byte(b.String())
}

func sendMail(cfg *EmailConfig, to []string, subject, body string) error {
	from := cfg.sender()
	msg := buildMessage(from, to, subject, body)
	addr := net.JoinHostPort(cfg.Host, strconv.Itoa(cfg.Port))

	var auth smtp.Auth
	if cfg.Username != "" && cfg.Password != "" {
		auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}

	if !cfg.UseSSL {
		// SendMail upgrades with STARTTLS whenever the server offers it
		return smtp.SendMail(addr, auth, from, to, msg)
	}

	conn, err := tls.DialWithDialer(&net.Dialer{Timeout: 15 * time.Second}, "tcp", addr, &tls.Config{ServerName: cfg.Host})
	if err != nil {
		return err
	}
	client, err := smtp.NewClient(conn, cfg.Host)
	if err != nil {
		conn.Close()
		return err
	}
	defer client.Close()

	if auth != nil {
		if err := client.Auth(auth); err != nil {
			return err
		}
	}
	if err := client.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := client.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := client.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return client.Quit()
}
