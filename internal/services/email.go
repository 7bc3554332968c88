package services

import (
	"fmt"
	"net/smtp"
	"strings"

	"folderly-api/internal/config"
)

type EmailService struct {
	cfg *config.Config
}

func NewEmailService(cfg *config.Config) *EmailService {
	return &EmailService{cfg: cfg}
}

func (es *EmailService) SendResetEmail(to, otp string) error {
	// Email content
	subject := "Password Reset Code"
	body := fmt.Sprintf(`
	<html>
	<body>
		<h1>Password Reset Request</h1>
		<p>Your password reset code is: <strong>%s</strong></p>
		<p>This code will expire in 1 hour.</p>
		<p>If you didn't request this, please ignore this email.</p>
	</body>
	</html>
	`, otp)

	// SMTP auth
	auth := smtp.PlainAuth("", es.cfg.SMTPUsername, es.cfg.SMTPPassword, es.cfg.SMTPHost)

	// Email headers
	headers := make(map[string]string)
	headers["From"] = es.cfg.EmailFrom
	headers["To"] = to
	headers["Subject"] = subject
	headers["MIME-Version"] = "1.0"
	headers["Content-Type"] = "text/html; charset=\"utf-8\""

	// Build message
	var message strings.Builder
	for k, v := range headers {
		message.WriteString(fmt.Sprintf("%s: %s\r\n", k, v))
	}
	message.WriteString("\r\n" + body)

	// Send email
	err := smtp.SendMail(
		es.cfg.SMTPHost+":"+es.cfg.SMTPPort,
		auth,
		es.cfg.EmailFrom,
		[]string{to},
		[]byte(message.String()),
	)

	return err
}
