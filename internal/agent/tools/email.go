package tools

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"os"
	"strconv"
	"strings"

	"github.com/Chative-core-poc-v1/dialogue/internal/agent/model"
)

type EmailSettings struct {
	SMTPServer     string `mapstructure:"smtp_server"`
	SMTPPort       int    `mapstructure:"smtp_port"`
	Username       string `mapstructure:"username"`
	Password       string `mapstructure:"password"`
	PasswordEnv    string `mapstructure:"password_env"`
	DefaultSubject string `mapstructure:"default_subject"`
}

type EmailMessage struct {
	From    string
	To      string
	Subject string
	Body    string
}

type Mailer interface {
	Send(ctx context.Context, s EmailSettings, msg EmailMessage) error
}

// SMTPMailer sends through net/smtp, which upgrades with STARTTLS when offered.
type SMTPMailer struct{}

func (SMTPMailer) Send(ctx context.Context, s EmailSettings, msg EmailMessage) error {
	addr := net.JoinHostPort(s.SMTPServer, strconv.Itoa(s.SMTPPort))
	auth := smtp.PlainAuth("", s.Username, s.Password, s.SMTPServer)
	body := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=UTF-8\r\n\r\n%s\r\n",
		msg.From, msg.To, msg.Subject, msg.Body)

	done := make(chan error, 1)
	go func() { done <- smtp.SendMail(addr, auth, msg.From, []string{msg.To}, []byte(body)) }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Email sends the extracted message to the extracted recipient.
func Email(mailer Mailer) Func {
	return func(ctx context.Context, in Input) model.ToolResult {
		var s EmailSettings
		if err := decodeSettings(in.Runtime.Settings, &s); err != nil {
			return model.FailedResult(ImplEmail, "Invalid email configuration", err.Error(), in.Data)
		}
		if s.SMTPPort == 0 {
			s.SMTPPort = 587
		}
		if s.Password == "" && s.PasswordEnv != "" {
			s.Password = os.Getenv(s.PasswordEnv)
		}

		recipient := firstString(in.Data, "email", "recipient")
		subject := firstString(in.Data, "subject")
		if subject == "" {
			subject = s.DefaultSubject
		}
		if subject == "" {
			subject = "Message from Assistant"
		}
		body := firstString(in.Data, "message", "body")
		if body == "" {
			body = "No message content provided"
		}

		if recipient == "" {
			return model.FailedResult(ImplEmail, "No recipient email address provided", "Missing recipient", in.Data)
		}
		if strings.TrimSpace(s.SMTPServer) == "" || s.Username == "" || s.Password == "" {
			return model.FailedResult(ImplEmail, "Email configuration incomplete (missing smtp_server, username, or password)",
				"Incomplete configuration", in.Data)
		}
		if mailer == nil {
			return model.FailedResult(ImplEmail, "No mailer configured", "Incomplete configuration", in.Data)
		}

		msg := EmailMessage{From: s.Username, To: recipient, Subject: subject, Body: body}
		if err := mailer.Send(ctx, s, msg); err != nil {
			return model.FailedResult(ImplEmail, "Email sending failed: "+err.Error(), err.Error(), in.Data)
		}
		message := "Email sent successfully to " + recipient
		return model.ToolResult{
			Success: true,
			Type:    ImplEmail,
			Message: message,
			Summary: message,
			Data: map[string]any{
				"recipient":   recipient,
				"subject":     subject,
				"message":     body,
				"smtp_server": s.SMTPServer,
			},
		}
	}
}
