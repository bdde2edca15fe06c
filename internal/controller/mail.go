package controller

import (
	"context"
	"crypto/tls"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"strings"

	"resource-broker-go/internal/config"
	"resource-broker-go/internal/model"
	"resource-broker-go/internal/resource"
)

const addressSep = ","

// SendFunc delivers a composed message. It has the signature of smtp.SendMail.
type SendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// Mail sends the request body as an e-mail. Names take the form
// mailto:a@example.com,b@example.com; options from, cc, bcc and subject fill
// the remaining headers.
type Mail struct {
	addr   string
	from   string
	auth   smtp.Auth
	send   SendFunc
	logger *slog.Logger
}

// NewMail creates a Mail controller. A nil send uses SMTP, over implicit TLS
// when cfg.TLS is set.
func NewMail(cfg config.MailConfig, logger *slog.Logger, send SendFunc) *Mail {
	m := &Mail{
		addr:   cfg.Addr(),
		from:   cfg.From,
		send:   send,
		logger: logger.With("component", "mail_controller"),
	}
	if cfg.Username != "" {
		m.auth = smtp.PlainAuth("", cfg.Username, cfg.Password, cfg.Host)
	}
	if m.send == nil {
		m.send = smtp.SendMail
		if cfg.TLS {
			m.send = sendTLS
		}
	}
	return m
}

// Serve implements broker.Controller.
func (m *Mail) Serve(ctx context.Context, req *model.Request) (*model.Response, error) {
	if req.Method != model.MethodPost && req.Method != model.MethodPut {
		return model.MethodNotAllowed(req.Method, req.Name), nil
	}

	to := splitAddresses(resource.Decode(req.Name.Path()))
	if len(to) == 0 {
		return model.Failure(http.StatusBadRequest, fmt.Sprintf("no recipients in %s", req.Name)), nil
	}
	from := req.Options.Get("from")
	if from == "" {
		from = m.from
	}
	if from == "" {
		return model.Failure(http.StatusBadRequest, "no sender: set the from option or mail.from"), nil
	}

	cc := splitAddresses(req.Options.Get("cc"))
	bcc := splitAddresses(req.Options.Get("bcc"))
	subject := req.Options.Get("subject")
	contentType := req.Options.Get("content-type")

	fields := append([]string{from, subject, contentType}, to...)
	fields = append(append(fields, cc...), bcc...)
	if hasLineBreak(fields...) {
		return model.Failure(http.StatusBadRequest, fmt.Sprintf("line break in mail header for %s", req.Name)), nil
	}

	body, err := readBody(ctx, req)
	if err != nil {
		return nil, err
	}

	msg := composeMessage(from, to, cc, subject, contentType, body)

	recipients := append(append(append([]string(nil), to...), cc...), bcc...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.send(m.addr, m.auth, from, recipients, msg); err != nil {
		return nil, fmt.Errorf("mail %s: %w", req.Name, err)
	}

	m.logger.Debug("message sent", "recipients", len(recipients))
	return model.NewResponse(http.StatusAccepted, nil), nil
}

func splitAddresses(s string) []string {
	var out []string
	for _, a := range strings.Split(s, addressSep) {
		if a = strings.TrimSpace(a); a != "" {
			out = append(out, a)
		}
	}
	return out
}

func hasLineBreak(values ...string) bool {
	for _, v := range values {
		if strings.ContainsAny(v, "\r\n") {
			return true
		}
	}
	return false
}

// composeMessage renders RFC 5322 headers followed by body. Bcc recipients
// never appear in the headers.
func composeMessage(from string, to, cc []string, subject, contentType string, body []byte) []byte {
	if contentType == "" {
		contentType = contentTypeText
	}
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + strings.Join(to, ", ") + "\r\n")
	if len(cc) > 0 {
		b.WriteString("Cc: " + strings.Join(cc, ", ") + "\r\n")
	}
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: " + contentType + "\r\n")
	b.WriteString("\r\n")
	b.Write(body)
	return []byte(b.String())
}

// sendTLS delivers msg over an implicit TLS connection (SMTPS).
func sendTLS(addr string, auth smtp.Auth, from string, to []string, msg []byte) error {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return err
	}
	conn, err := tls.Dial("tcp", addr, &tls.Config{ServerName: host, MinVersion: tls.VersionTLS12})
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}

	c, err := smtp.NewClient(conn, host)
	if err != nil {
		conn.Close()
		return err
	}
	defer c.Close()

	if auth != nil {
		if err := c.Auth(auth); err != nil {
			return err
		}
	}
	if err := c.Mail(from); err != nil {
		return err
	}
	for _, rcpt := range to {
		if err := c.Rcpt(rcpt); err != nil {
			return err
		}
	}
	w, err := c.Data()
	if err != nil {
		return err
	}
	if _, err := w.Write(msg); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	return c.Quit()
}
