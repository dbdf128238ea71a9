// backend/src/services/email_service.go
package services

import (
	"context"
	"fmt"
	"log/slog"
	"net/smtp"
	"strings"
	"time"

	"github.com/mailgun/mailgun-go/v4"
	"github.com/username/tillpoint/backend/src/config"
	"github.com/username/tillpoint/backend/src/logger"
)

// NewEmailService selects an email transport from configuration. Incomplete
// provider settings fall back to the mock transport so the till keeps
// working offline.
func NewEmailService() EmailService {
	if config.Cfg == nil {
		slog.Error("Configuration (config.Cfg) is nil. Email service will default to mock.")
		return &MockEmailService{}
	}

	provider := strings.ToLower(config.Cfg.EmailServiceProvider)
	logger.L.Info("Initializing email service", "provider", provider)

	switch provider {
	case "mailgun":
		if config.Cfg.MailgunDomain == "" || config.Cfg.MailgunPrivateAPIKey == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("Mailgun configuration incomplete (Domain, API Key, or SenderEmail missing). Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		mg := mailgun.NewMailgun(config.Cfg.MailgunDomain, config.Cfg.MailgunPrivateAPIKey)
		logger.L.Info("Mailgun client initialized", "domain", config.Cfg.MailgunDomain)
		return &MailgunEmailService{
			mg:          mg,
			senderEmail: config.Cfg.SenderEmail,
			senderName:  config.Cfg.SenderName,
		}
	case "smtp":
		if config.Cfg.SMTPServer == "" || config.Cfg.SMTPUser == "" || config.Cfg.SMTPPassword == "" || config.Cfg.SenderEmail == "" {
			logger.L.Warn("SMTP configuration incomplete. Falling back to MockEmailService.")
			return &MockEmailService{}
		}
		return &SMTPEmailService{
			SMTPServer:   config.Cfg.SMTPServer,
			SMTPPort:     config.Cfg.SMTPPort,
			SMTPUser:     config.Cfg.SMTPUser,
			SMTPPassword: config.Cfg.SMTPPassword,
			SenderEmail:  config.Cfg.SenderEmail,
		}
	default:
		logger.L.Info("Defaulting to MockEmailService.")
		return &MockEmailService{}
	}
}

type SMTPEmailService struct {
	SMTPServer   string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SenderEmail  string
}

func (s *SMTPEmailService) SendEmail(ctx context.Context, data EmailData) error {
	from := s.SenderEmail
	to := []string{data.To}

	header := make(map[string]string)
	header["From"] = from
	header["To"] = data.To
	header["Subject"] = data.Subject
	header["MIME-version"] = "1.0"
	header["Content-Type"] = "text/plain; charset=\"UTF-8\""
	message := ""
	for k, v := range header {
		message += fmt.Sprintf("%s: %s\r\n", k, v)
	}
	message += "\r\n" + data.TextBody

	auth := smtp.PlainAuth("", s.SMTPUser, s.SMTPPassword, s.SMTPServer)
	addr := fmt.Sprintf("%s:%d", s.SMTPServer, s.SMTPPort)
	if err := smtp.SendMail(addr, auth, from, to, []byte(message)); err != nil {
		logger.L.Error("Failed to send email via SMTP", "error", err, "to", data.To, "subject", data.Subject)
		return fmt.Errorf("failed to send email via SMTP: %w", err)
	}
	logger.L.Info("Email sent successfully via SMTP", "to", data.To, "subject", data.Subject)
	return nil
}

type MailgunEmailService struct {
	mg          mailgun.Mailgun
	senderEmail string
	senderName  string
}

func (s *MailgunEmailService) SendEmail(ctx context.Context, data EmailData) error {
	from := fmt.Sprintf("%s <%s>", s.senderName, s.senderEmail)

	message := s.mg.NewMessage(from, data.Subject, data.TextBody, data.To)
	if data.HTMLBody != "" {
		message.SetHtml(data.HTMLBody)
	}

	sendCtx, cancel := context.WithTimeout(ctx, time.Second*20)
	defer cancel()
	resp, id, err := s.mg.Send(sendCtx, message)
	if err != nil {
		logger.L.Error("Failed to send email via Mailgun", "error", err, "to", data.To, "mailgunResp", resp, "mailgunId", id)
		return fmt.Errorf("mailgun send failed: %w. Response: %s", err, resp)
	}
	logger.L.Info("Email sent successfully via Mailgun", "to", data.To, "id", id, "mailgunResp", resp)
	return nil
}

type MockEmailService struct{}

func (m *MockEmailService) SendEmail(ctx context.Context, data EmailData) error {
	logger.L.Info("MockEmailService: Would send email.", "to", data.To, "subject", data.Subject,
		"bodyLength", len(data.TextBody))
	return nil
}
