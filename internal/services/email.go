package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"

	"skillswap-backend/internal/logger"
	"skillswap-backend/internal/models"
)

type EmailService struct {
	host        string
	port        string
	user        string
	pass        string
	from        string
	frontendURL string
	devMode     bool
	logger      *zap.Logger
}

func NewEmailService(host, port, user, pass, from, frontendURL string, log *zap.Logger) *EmailService {
	devMode := host == "" || user == ""
	if devMode {
		log.Warn("email service running in dev mode, messages are logged instead of sent")
	}
	return &EmailService{
		host:        host,
		port:        port,
		user:        user,
		pass:        pass,
		from:        from,
		frontendURL: frontendURL,
		devMode:     devMode,
		logger:      log.With(zap.String(logger.FieldOperation, "email")),
	}
}

// SessionReminder is what a single reminder email is rendered from.
type SessionReminder struct {
	To          string
	Name        string
	Skill       string
	Date        string
	StartTime   string
	EndTime     string
	Role        string
	Counterpart string
}

func (s *EmailService) SendSessionReminder(r SessionReminder) error {
	subject := fmt.Sprintf("Reminder: your %s session starts at %s", r.Skill, r.StartTime)
	return s.sendHTML(r.To, subject, renderSessionReminder(r, s.frontendURL))
}

func renderSessionReminder(r SessionReminder, frontendURL string) string {
	action := "learning"
	if r.Role == models.RoleTeacher {
		action = "teaching"
	}
	with := ""
	if r.Counterpart != "" {
		with = fmt.Sprintf(" with <strong>%s</strong>", r.Counterpart)
	}
	sessionsURL := fmt.Sprintf("%s/sessions", frontendURL)

	return fmt.Sprintf(`<!DOCTYPE html>
<html>
<head><meta charset="utf-8"></head>
<body style="font-family: 'Segoe UI', Arial, sans-serif; margin: 0; padding: 0; background-color: #f8fafc;">
  <div style="max-width: 480px; margin: 40px auto; background: white; border-radius: 12px; box-shadow: 0 4px 24px rgba(0,0,0,0.08); overflow: hidden;">
    <div style="background: linear-gradient(135deg, #0ea5e9 0%%, #6366f1 100%%); padding: 32px; text-align: center;">
      <h1 style="color: white; margin: 0; font-size: 24px; font-weight: 700;">SkillSwap</h1>
    </div>
    <div style="padding: 32px;">
      <h2 style="margin: 0 0 16px; font-size: 20px; color: #1e293b;">Hi %s, your session is coming up</h2>
      <p style="color: #64748b; font-size: 14px; line-height: 1.6; margin: 0 0 24px;">
        You are %s <strong>%s</strong>%s on %s from %s to %s.
      </p>
      <a href="%s" style="display: inline-block; background: #6366f1; color: white; text-decoration: none; padding: 12px 32px; border-radius: 8px; font-weight: 600; font-size: 14px;">
        Open my sessions
      </a>
    </div>
  </div>
</body>
</html>`, r.Name, action, r.Skill, with, r.Date, r.StartTime, r.EndTime, sessionsURL)
}

func (s *EmailService) sendHTML(to, subject, htmlBody string) error {
	if s.devMode {
		s.logger.Info("dev email", zap.String("to", to), zap.String("subject", subject))
		s.logger.Debug("dev email body", zap.String("body", htmlBody))
		return nil
	}

	headers := []string{
		fmt.Sprintf("From: %s", s.from),
		fmt.Sprintf("To: %s", to),
		fmt.Sprintf("Subject: %s", subject),
		"MIME-Version: 1.0",
		"Content-Type: text/html; charset=UTF-8",
	}

	message := strings.Join(headers, "\r\n") + "\r\n\r\n" + htmlBody

	auth := smtp.PlainAuth("", s.user, s.pass, s.host)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("failed to send email to %s: %w", to, err)
	}

	s.logger.Info("email sent", zap.String("to", to), zap.String("subject", subject))
	return nil
}
