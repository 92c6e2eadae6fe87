package sender

import (
	"context"
	"encoding/base64"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/mail"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"fulfillment-service/catalog"

	"github.com/stretchr/testify/assert"
)

func newTestSender(t *testing.T) *SMTPSender {
	t.Helper()
	s, err := NewSMTPSender("smtp.example.com", "587", "store@example.com", "secret", "")
	assert.NoError(t, err)
	return s
}

func TestNewSMTPSender(t *testing.T) {
	t.Run("Defaults From To Username", func(t *testing.T) {
		s := newTestSender(t)
		assert.Equal(t, "store@example.com", s.from)
	})

	t.Run("Missing Host", func(t *testing.T) {
		_, err := NewSMTPSender("", "587", "u", "p", "")
		assert.Error(t, err)
	})
}

func TestBuildMessage(t *testing.T) {
	s := newTestSender(t)

	pdfContent := []byte("%PDF-1.4 fake content")
	pdfPath := filepath.Join(t.TempDir(), "product1.pdf")
	assert.NoError(t, os.WriteFile(pdfPath, pdfContent, 0o600))

	raw, err := s.buildMessage(context.Background(), "buyer@example.com", "Your Digital Products",
		"Thanks for your purchase! Your files are attached.",
		[]catalog.Attachment{{Filename: "Ebook.pdf", FileRef: pdfPath}})
	assert.NoError(t, err)

	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	assert.NoError(t, err)
	assert.Equal(t, "buyer@example.com", msg.Header.Get("To"))
	assert.Equal(t, "store@example.com", msg.Header.Get("From"))

	mediaType, params, err := mime.ParseMediaType(msg.Header.Get("Content-Type"))
	assert.NoError(t, err)
	assert.Equal(t, "multipart/mixed", mediaType)

	reader := multipart.NewReader(msg.Body, params["boundary"])

	textPart, err := reader.NextPart()
	assert.NoError(t, err)
	textBody, _ := io.ReadAll(textPart)
	assert.Contains(t, string(textBody), "Thanks for your purchase")

	attPart, err := reader.NextPart()
	assert.NoError(t, err)
	assert.Equal(t, "Ebook.pdf", attPart.FileName())
	assert.Equal(t, "base64", attPart.Header.Get("Content-Transfer-Encoding"))
	encoded, _ := io.ReadAll(attPart)
	decoded, err := base64.StdEncoding.DecodeString(strings.ReplaceAll(string(encoded), "\r\n", ""))
	assert.NoError(t, err)
	assert.Equal(t, pdfContent, decoded)

	_, err = reader.NextPart()
	assert.Equal(t, io.EOF, err)
}

func TestBuildMessage_MissingFile(t *testing.T) {
	s := newTestSender(t)
	_, err := s.buildMessage(context.Background(), "buyer@example.com", "s", "b",
		[]catalog.Attachment{{Filename: "Ghost.pdf", FileRef: "/does/not/exist.pdf"}})
	assert.Error(t, err)
	assert.True(t, IsPermanent(err))
}

func TestResolveFileRef_RemoteURL(t *testing.T) {
	content := []byte("remote pdf bytes")
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(content)
	}))
	defer srv.Close()

	s := newTestSender(t)
	got, err := s.resolveFileRef(context.Background(), srv.URL+"/file.pdf")
	assert.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestResolveFileRef_RemoteError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := newTestSender(t)
	_, err := s.resolveFileRef(context.Background(), srv.URL+"/missing.pdf")
	assert.Error(t, err)
	assert.True(t, IsPermanent(err))
}
