package client

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/base64"
	"fmt"
	"mime"
	"net"
	"net/smtp"
	"time"
)

// EmailClient sends transactional email over SMTP with STARTTLS-capable
// authentication.
type EmailClient struct {
	host     string
	port     int
	username string
	password string
	from     string
}

// NewEmailClient creates an SMTP email client.
func NewEmailClient(host string, port int, username, password, from string) *EmailClient {
	return &EmailClient{
		host:     host,
		port:     port,
		username: username,
		password: password,
		from:     from,
	}
}

// SendEmail sends an HTML email.
func (c *EmailClient) SendEmail(ctx context.Context, to, subject, htmlBody string) error {
	var msg bytes.Buffer
	writeHeaders(&msg, c.from, to, subject)
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(htmlBody)

	return c.send(ctx, to, msg.Bytes())
}

// SendDocumentEmail sends an HTML email carrying one binary attachment.
func (c *EmailClient) SendDocumentEmail(ctx context.Context, to string, meta DocumentMeta, attachment []byte) error {
	const boundary = "be-orders-mixed"

	var msg bytes.Buffer
	writeHeaders(&msg, c.from, to, meta.Subject)
	fmt.Fprintf(&msg, "Content-Type: multipart/mixed; boundary=%q\r\n\r\n", boundary)

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	msg.WriteString("Content-Type: text/html; charset=\"utf-8\"\r\n\r\n")
	msg.WriteString(meta.Description)
	msg.WriteString("\r\n")

	fmt.Fprintf(&msg, "--%s\r\n", boundary)
	fmt.Fprintf(&msg, "Content-Type: application/octet-stream; name=%q\r\n", meta.Filename)
	fmt.Fprintf(&msg, "Content-Disposition: attachment; filename=%q\r\n", meta.Filename)
	msg.WriteString("Content-Transfer-Encoding: base64\r\n\r\n")

	encoded := base64.StdEncoding.EncodeToString(attachment)
	for len(encoded) > 76 {
		msg.WriteString(encoded[:76])
		msg.WriteString("\r\n")
		encoded = encoded[76:]
	}
	msg.WriteString(encoded)
	msg.WriteString("\r\n")
	fmt.Fprintf(&msg, "--%s--\r\n", boundary)

	return c.send(ctx, to, msg.Bytes())
}

func writeHeaders(msg *bytes.Buffer, from, to, subject string) {
	fmt.Fprintf(msg, "From: %s\r\n", from)
	fmt.Fprintf(msg, "To: %s\r\n", to)
	fmt.Fprintf(msg, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	msg.WriteString("MIME-Version: 1.0\r\n")
}

// send dials the SMTP server honoring the context deadline and submits the
// message.
func (c *EmailClient) send(ctx context.Context, to string, msg []byte) error {
	addr := fmt.Sprintf("%s:%d", c.host, c.port)

	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	} else {
		_ = conn.SetDeadline(time.Now().Add(30 * time.Second))
	}

	cl, err := smtp.NewClient(conn, c.host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer cl.Close()

	if ok, _ := cl.Extension("STARTTLS"); ok {
		if err := cl.StartTLS(&tls.Config{ServerName: c.host}); err != nil {
			return fmt.Errorf("starttls: %w", err)
		}
	}
	if c.username != "" {
		auth := smtp.PlainAuth("", c.username, c.password, c.host)
		if err := cl.Auth(auth); err != nil {
			return fmt.Errorf("smtp auth: %w", err)
		}
	}

	if err := cl.Mail(c.from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := cl.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}
	w, err := cl.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(msg); err != nil {
		return fmt.Errorf("smtp write: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("smtp close: %w", err)
	}
	return cl.Quit()
}
