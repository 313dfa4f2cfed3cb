package services

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
)

// EmailSender is the email channel as the fan-out engine sees it.
type EmailSender interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

// EmailService delivers plain-text alert emails over SMTP.
type EmailService struct {
	host     string
	port     string
	username string
	password string
	from     string
}

func NewEmailService(host, port, username, password, from string) *EmailService {
	return &EmailService{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

func (es *EmailService) SendEmail(ctx context.Context, to, subject, body string) error {
	message := es.buildMessage(to, subject, body)

	auth := smtp.PlainAuth("", es.username, es.password, es.host)
	addr := fmt.Sprintf("%s:%s", es.host, es.port)

	if err := smtp.SendMail(addr, auth, es.from, []string{to}, []byte(message)); err != nil {
		return fmt.Errorf("smtp send to %s: %w", to, err)
	}
	return nil
}

func (es *EmailService) buildMessage(to, subject, body string) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("From: %s\r\n", es.from))
	sb.WriteString(fmt.Sprintf("To: %s\r\n", to))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	return sb.String()
}
