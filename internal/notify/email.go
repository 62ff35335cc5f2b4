package notify

import (
	"bytes"
	"fmt"
	"net/smtp"
	"strings"

	"github.com/yuin/goldmark"
	"go.uber.org/zap"
)

// EmailClient sends HTML mail over SMTP. Markdown bodies are rendered to
// HTML before sending. An empty host means the channel is not configured
// and sends become no-ops.
type EmailClient struct {
	host     string
	port     int
	from     string
	username string
	password string
	logger   *zap.Logger

	// sendMail is smtp.SendMail, swapped out in tests.
	sendMail func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewEmailClient creates an SMTP client. Credentials may be empty for
// servers that accept unauthenticated relay.
func NewEmailClient(host string, port int, from, username, password string, log *zap.Logger) *EmailClient {
	return &EmailClient{
		host:     host,
		port:     port,
		from:     from,
		username: username,
		password: password,
		logger:   log,
		sendMail: smtp.SendMail,
	}
}

// SendMarkdown renders a markdown body to HTML and mails it.
func (e *EmailClient) SendMarkdown(to, subject, markdown string) error {
	var html bytes.Buffer
	if err := goldmark.Convert([]byte(markdown), &html); err != nil {
		return fmt.Errorf("rendering email body: %w", err)
	}
	return e.SendHTML(to, subject, html.String())
}

// SendHTML mails an HTML body as-is.
func (e *EmailClient) SendHTML(to, subject, htmlBody string) error {
	if e.host == "" {
		e.logger.Debug("smtp not configured, skipping email", zap.String("to", to))
		return nil
	}
	if to == "" {
		e.logger.Debug("no recipient configured, skipping email", zap.String("subject", subject))
		return nil
	}

	msg := buildMessage(e.from, to, subject, htmlBody)

	var auth smtp.Auth
	if e.username != "" {
		auth = smtp.PlainAuth("", e.username, e.password, e.host)
	}

	addr := fmt.Sprintf("%s:%d", e.host, e.port)
	if err := e.sendMail(addr, auth, e.from, []string{to}, msg); err != nil {
		return fmt.Errorf("sending email to %s: %w", to, err)
	}

	e.logger.Info("sent email", zap.String("to", to), zap.String("subject", subject))
	return nil
}

func buildMessage(from, to, subject, htmlBody string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + subject + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/html; charset=UTF-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(htmlBody)
	b.WriteString("\r\n")
	return []byte(b.String())
}
