package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/letterdrop/letterdrop/internal/config"
	"github.com/letterdrop/letterdrop/internal/handler"
	"github.com/letterdrop/letterdrop/internal/letter"
	"github.com/letterdrop/letterdrop/internal/logger"
	"github.com/letterdrop/letterdrop/internal/mailer"
	"github.com/letterdrop/letterdrop/internal/model"
	"github.com/letterdrop/letterdrop/internal/service"
)

type okSender struct{ sent int }

func (s *okSender) Send(ctx context.Context, msg mailer.Message) error {
	s.sent++
	return nil
}

func newTestHandler(t *testing.T, sender mailer.Sender) *handler.Handler {
	t.Helper()
	cfg := &config.Config{
		Server: config.ServerConfig{MaxUploadBytes: 1 << 20},
		Letter: config.LetterConfig{OutputRoot: t.TempDir(), Subject: "Job Appointment Letter"},
		Email:  config.EmailConfig{SessionTimeout: time.Second},
	}
	log := logger.New("error", "json")
	gen := letter.NewGenerator(nil, log)
	svc := service.NewBatchService(gen, func(model.SMTPCredentials) mailer.Sender {
		return sender
	}, cfg, log)
	return handler.New(log, cfg, svc, nil)
}

// buildForm assembles the multipart request body the front-end posts
func buildForm(t *testing.T, fields map[string]string, files map[string][]byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	for name, content := range files {
		fw, err := w.CreateFormFile(name, name+".txt")
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	return &buf, w.FormDataContentType()
}

func singleModeFields() map[string]string {
	return map[string]string{
		"recipient_mode":  "single",
		"sender_email":    "hr@example.com",
		"sender_password": "secret",
		"smtp_server":     "smtp.example.com",
		"smtp_port":       "587",
		"encryption":      "starttls",
		"email_body":      "Dear {{name}},",
		"recipient_name":  "Jane Doe",
		"date_of_joining": "2024-03-01",
		"recipient_email": "jane@example.com",
	}
}

func TestGenerateLetters_SingleSuccess(t *testing.T) {
	sender := &okSender{}
	h := newTestHandler(t, sender)

	body, contentType := buildForm(t, singleModeFields(),
		map[string][]byte{"template_file": []byte("Dear {{name}}")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/letters/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.GenerateLetters(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handler.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Processed 1 out of 1 letters successfully", resp.Message)
	require.NotNil(t, resp.Report)
	assert.Equal(t, 1, resp.Report.SuccessCount)
	assert.Empty(t, resp.Failed)
	assert.Equal(t, 1, sender.sent)
}

func TestGenerateLetters_InvalidRecipientEmail(t *testing.T) {
	h := newTestHandler(t, &okSender{})

	fields := singleModeFields()
	fields["recipient_email"] = "not-an-email"
	body, contentType := buildForm(t, fields,
		map[string][]byte{"template_file": []byte("Dear {{name}}")})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/letters/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.GenerateLetters(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Invalid email format")
}

func TestGenerateLetters_MissingTemplate(t *testing.T) {
	h := newTestHandler(t, &okSender{})

	body, contentType := buildForm(t, singleModeFields(), nil)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/letters/generate", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()

	h.GenerateLetters(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "template_file")
}

func TestGenerateLetters_BatchWithFailedSubset(t *testing.T) {
	h := newTestHandler(t, &okSender{})

	fields := singleModeFields()
	fields["recipient_mode"] = "batch"
	data := []byte("name,date_of_joining,email\n" +
		"Jane Doe,2024-03-01,jane@example.com\n" +
		"Bob,2024-04-15,not-an-email\n")

	// Assembled by hand: the spreadsheet part needs a .csv filename so
	// the reader picks the right format.
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	fw, err := w.CreateFormFile("template_file", "template.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Dear {{name}}"))
	require.NoError(t, err)
	fw, err = w.CreateFormFile("excel_file", "candidates.csv")
	require.NoError(t, err)
	_, err = fw.Write(data)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/letters/generate", &buf)
	req.Header.Set("Content-Type", w.FormDataContentType())
	rec := httptest.NewRecorder()

	h.GenerateLetters(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var resp handler.GenerateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Processed 1 out of 2 letters successfully", resp.Message)
	require.Len(t, resp.Failed, 1)
	assert.Equal(t, "Bob", resp.Failed[0].Name)
	assert.Contains(t, resp.FailedCSV, "Bob,not-an-email,Invalid email format")
}

func TestTestEmail_ValidationError(t *testing.T) {
	h := newTestHandler(t, &okSender{})

	form := url.Values{
		"sender_email":    {"nope"},
		"sender_password": {"secret"},
		"smtp_server":     {"smtp.example.com"},
		"smtp_port":       {"587"},
		"encryption":      {"starttls"},
	}
	req := httptest.NewRequest(http.MethodPost, "/api/v1/letters/test-email",
		strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()

	h.TestEmail(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "sender_email")
}
