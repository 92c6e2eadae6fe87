package sender

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/smtp"
	"net/textproto"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fulfillment-service/catalog"
)

// Limits on attachment resolution. Remote references beyond the size limit
// fail the send rather than producing a truncated file.
const (
	remoteFetchTimeout = 15 * time.Second
	maxAttachmentBytes = 25 * 1024 * 1024
)

type SMTPSender struct {
	host     string
	port     string
	username string
	password string
	from     string

	httpClient *http.Client
}

func NewSMTPSender(host, port, username, password, from string) (*SMTPSender, error) {
	if host == "" {
		return nil, fmt.Errorf("SMTP host not set")
	}
	if port == "" {
		return nil, fmt.Errorf("SMTP port not set")
	}
	if username == "" {
		return nil, fmt.Errorf("SMTP username not set")
	}
	if password == "" {
		return nil, fmt.Errorf("SMTP password not set")
	}
	if from == "" {
		from = username
	}
	return &SMTPSender{
		host:       host,
		port:       port,
		username:   username,
		password:   password,
		from:       from,
		httpClient: &http.Client{Timeout: remoteFetchTimeout},
	}, nil
}

func (s *SMTPSender) SendEmail(ctx context.Context, to, subject, body string, attachments []catalog.Attachment) (SendResult, error) {
	msg, err := s.buildMessage(ctx, to, subject, body, attachments)
	if err != nil {
		return SendResult{}, err
	}

	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	auth := smtp.PlainAuth("", s.username, s.password, s.host)

	if err := smtp.SendMail(addr, auth, s.from, []string{to}, msg); err != nil {
		return SendResult{}, fmt.Errorf("smtp send failed: %w", err)
	}

	return SendResult{
		MessageID: fmt.Sprintf("smtp-%d", time.Now().UnixNano()),
		SentAt:    time.Now(),
	}, nil
}

// buildMessage assembles a multipart/mixed MIME message with a text part
// followed by one base64 part per attachment.
func (s *SMTPSender) buildMessage(ctx context.Context, to, subject, body string, attachments []catalog.Attachment) ([]byte, error) {
	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)

	fmt.Fprintf(&buf, "From: %s\r\n", s.from)
	fmt.Fprintf(&buf, "To: %s\r\n", to)
	fmt.Fprintf(&buf, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	buf.WriteString("MIME-Version: 1.0\r\n")
	fmt.Fprintf(&buf, "Content-Type: multipart/mixed; boundary=%q\r\n", writer.Boundary())
	buf.WriteString("\r\n")

	textHeader := textproto.MIMEHeader{}
	textHeader.Set("Content-Type", "text/plain; charset=UTF-8")
	textPart, err := writer.CreatePart(textHeader)
	if err != nil {
		return nil, err
	}
	if _, err := io.WriteString(textPart, body); err != nil {
		return nil, err
	}

	for _, att := range attachments {
		content, err := s.resolveFileRef(ctx, att.FileRef)
		if err != nil {
			return nil, fmt.Errorf("resolve attachment %s: %w", att.Filename, err)
		}

		partHeader := textproto.MIMEHeader{}
		partHeader.Set("Content-Type", contentTypeFor(att.Filename))
		partHeader.Set("Content-Transfer-Encoding", "base64")
		partHeader.Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", att.Filename))
		part, err := writer.CreatePart(partHeader)
		if err != nil {
			return nil, err
		}
		if err := writeBase64(part, content); err != nil {
			return nil, err
		}
	}

	if err := writer.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// resolveFileRef loads attachment content from a local path or an http(s)
// URL. Deterministic failures (bad catalog reference, missing file, 4xx,
// oversize) come back as PermanentError; network trouble stays transient.
func (s *SMTPSender) resolveFileRef(ctx context.Context, fileRef string) ([]byte, error) {
	if strings.HasPrefix(fileRef, "http://") || strings.HasPrefix(fileRef, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fileRef, nil)
		if err != nil {
			return nil, Permanent(err)
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			err := fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, fileRef)
			if resp.StatusCode >= 400 && resp.StatusCode < 500 {
				return nil, Permanent(err)
			}
			return nil, err
		}
		content, err := io.ReadAll(io.LimitReader(resp.Body, maxAttachmentBytes+1))
		if err != nil {
			return nil, err
		}
		if len(content) > maxAttachmentBytes {
			return nil, Permanent(fmt.Errorf("attachment %s exceeds %d bytes", fileRef, maxAttachmentBytes))
		}
		return content, nil
	}

	content, err := os.ReadFile(fileRef)
	if err != nil {
		return nil, Permanent(err)
	}
	if len(content) > maxAttachmentBytes {
		return nil, Permanent(fmt.Errorf("attachment %s exceeds %d bytes", fileRef, maxAttachmentBytes))
	}
	return content, nil
}

// writeBase64 writes base64 content in 76-character lines, the limit SMTP
// relays tolerate.
func writeBase64(w io.Writer, content []byte) error {
	encoded := base64.StdEncoding.EncodeToString(content)
	for len(encoded) > 0 {
		n := 76
		if len(encoded) < n {
			n = len(encoded)
		}
		if _, err := io.WriteString(w, encoded[:n]+"\r\n"); err != nil {
			return err
		}
		encoded = encoded[n:]
	}
	return nil
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
