package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/letterdrop/letterdrop/internal/config"
	"github.com/letterdrop/letterdrop/internal/letter"
	"github.com/letterdrop/letterdrop/internal/logger"
	"github.com/letterdrop/letterdrop/internal/mailer"
	"github.com/letterdrop/letterdrop/internal/model"
	"github.com/letterdrop/letterdrop/internal/service"
	"github.com/letterdrop/letterdrop/internal/tabular"
)

// fakeSender records every message and checks whether the attachment
// file still existed at send time (it lives in the per-run work dir).
type fakeSender struct {
	sent             []mailer.Message
	attachmentExists []bool
}

func (f *fakeSender) Send(ctx context.Context, msg mailer.Message) error {
	exists := false
	if msg.AttachmentPath != "" {
		_, err := os.Stat(msg.AttachmentPath)
		exists = err == nil
	}
	f.sent = append(f.sent, msg)
	f.attachmentExists = append(f.attachmentExists, exists)
	return nil
}

// MockSender is a mock implementation of mailer.Sender for failure cases
type MockSender struct {
	mock.Mock
}

func (m *MockSender) Send(ctx context.Context, msg mailer.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Letter: config.LetterConfig{
			OutputRoot: t.TempDir(),
			Subject:    "Job Appointment Letter",
		},
		Email: config.EmailConfig{SessionTimeout: time.Second},
	}
}

func newService(cfg *config.Config, sender mailer.Sender) *service.BatchService {
	log := logger.New("error", "json")
	gen := letter.NewGenerator(nil, log)
	return service.NewBatchService(gen, func(model.SMTPCredentials) mailer.Sender {
		return sender
	}, cfg, log)
}

func validCreds() model.SMTPCredentials {
	return model.SMTPCredentials{
		SenderEmail:    "hr@example.com",
		SenderPassword: "secret",
		Server:         "smtp.example.com",
		Port:           587,
		Encryption:     model.EncryptionSTARTTLS,
	}
}

const templateText = "Dear {{name}}, you join on {{date_of_joining}}. Sent {{date_of_sending}}."

func singleRequest() service.RunRequest {
	return service.RunRequest{
		Mode:         service.ModeSingle,
		Template:     []byte(templateText),
		TemplateName: "template.txt",
		Credentials:  validCreds(),
		BodyTemplate: "Dear {{name}}, see attached.",
		Single: &model.RecipientRecord{
			Name:          "Jane Doe",
			DateOfJoining: "2024-03-01",
			Email:         "jane@example.com",
		},
	}
}

func TestRun_SingleSuccess(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}
	svc := newService(cfg, sender)

	report, err := svc.Run(context.Background(), singleRequest())
	require.NoError(t, err)

	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.SuccessCount)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, "Success", report.Outcomes[0].Label())

	// Exactly one artifact in the output directory
	entries, err := os.ReadDir(report.OutputDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "appointment_Jane Doe.txt", entries[0].Name())

	// The message that went out
	require.Len(t, sender.sent, 1)
	msg := sender.sent[0]
	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Job Appointment Letter", msg.Subject)
	assert.Equal(t, "Dear Jane Doe, see attached.", msg.TextBody)
	assert.True(t, sender.attachmentExists[0], "attachment should exist at send time")
}

func TestRun_RemovesWorkDir(t *testing.T) {
	tmpRoot := t.TempDir()
	t.Setenv("TMPDIR", tmpRoot)

	svc := newService(testConfig(t), &fakeSender{})
	_, err := svc.Run(context.Background(), singleRequest())
	require.NoError(t, err)

	entries, err := os.ReadDir(tmpRoot)
	require.NoError(t, err)
	assert.Empty(t, entries, "work dir must be removed after the run")
}

func TestRun_SingleValidationFailsFast(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}
	svc := newService(cfg, sender)

	req := singleRequest()
	req.Single.Email = "not-an-email"

	_, err := svc.Run(context.Background(), req)
	require.Error(t, err)

	var vErr *model.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Empty(t, sender.sent)
}

func TestRun_InvalidSenderEmail(t *testing.T) {
	svc := newService(testConfig(t), &fakeSender{})

	req := singleRequest()
	req.Credentials.SenderEmail = "nope"

	_, err := svc.Run(context.Background(), req)
	var vErr *model.ValidationError
	require.ErrorAs(t, err, &vErr)
	assert.Equal(t, "sender_email", vErr.Field)
}

func TestRun_BatchMixedOutcomes(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}
	svc := newService(cfg, sender)

	data := []byte("name,date_of_joining,email\n" +
		"Jane Doe,2024-03-01,jane@example.com\n" +
		"Bob,2024-04-15,not-an-email\n" +
		"Ann,2024-05-01,ann@example.com\n")

	report, err := svc.Run(context.Background(), service.RunRequest{
		Mode:         service.ModeBatch,
		Template:     []byte(templateText),
		TemplateName: "template.txt",
		Credentials:  validCreds(),
		BodyTemplate: "Dear {{name}},",
		TableData:    data,
		TableFormat:  tabular.FormatCSV,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, report.Total)
	assert.Equal(t, 2, report.SuccessCount)
	require.Len(t, report.Outcomes, 3)

	// Outcomes keep the data source's order
	assert.Equal(t, "Jane Doe", report.Outcomes[0].Name)
	assert.Equal(t, model.DispatchSuccess, report.Outcomes[0].Status)
	assert.Equal(t, "Failed: Invalid email format", report.Outcomes[1].Label())
	assert.Equal(t, model.DispatchSuccess, report.Outcomes[2].Status)

	// The invalid row never got a letter or an email
	require.Len(t, sender.sent, 2)
	entries, err := os.ReadDir(report.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestRun_BatchMissingColumnAbortsBeforeAnyRow(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}
	svc := newService(cfg, sender)

	data := []byte("name,start_date\nJane,2024-03-01\n")

	_, err := svc.Run(context.Background(), service.RunRequest{
		Mode:         service.ModeBatch,
		Template:     []byte(templateText),
		TemplateName: "template.txt",
		Credentials:  validCreds(),
		TableData:    data,
		TableFormat:  tabular.FormatCSV,
	})
	require.Error(t, err)

	var vErr *model.ValidationError
	assert.ErrorAs(t, err, &vErr)
	assert.Empty(t, sender.sent)

	// Zero artifacts anywhere under the output root
	dirs, err := os.ReadDir(cfg.Letter.OutputRoot)
	require.NoError(t, err)
	for _, d := range dirs {
		files, err := os.ReadDir(filepath.Join(cfg.Letter.OutputRoot, d.Name()))
		require.NoError(t, err)
		assert.Empty(t, files)
	}
}

func TestRun_BatchBadJoinDateFailsRowOnly(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}
	svc := newService(cfg, sender)

	data := []byte("name,date_of_joining,email\n" +
		"Jane Doe,definitely not a date,jane@example.com\n" +
		"Ann,2024-05-01,ann@example.com\n")

	report, err := svc.Run(context.Background(), service.RunRequest{
		Mode:         service.ModeBatch,
		Template:     []byte(templateText),
		TemplateName: "template.txt",
		Credentials:  validCreds(),
		BodyTemplate: "hi",
		TableData:    data,
		TableFormat:  tabular.FormatCSV,
	})
	require.NoError(t, err)

	assert.Equal(t, 1, report.SuccessCount)
	require.Len(t, report.Outcomes, 2)
	assert.Equal(t, model.DispatchFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Reason, "date_of_joining")
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "ann@example.com", sender.sent[0].To)
}

func TestRun_SendFailureKeepsArtifact(t *testing.T) {
	cfg := testConfig(t)
	sender := new(MockSender)
	sender.On("Send", mock.Anything, mock.Anything).
		Return(errors.New("auth: 535 5.7.8 authentication failed"))
	svc := newService(cfg, sender)

	report, err := svc.Run(context.Background(), singleRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, report.SuccessCount)
	require.Len(t, report.Outcomes, 1)
	assert.Equal(t, model.DispatchFailed, report.Outcomes[0].Status)
	assert.Contains(t, report.Outcomes[0].Reason, "535")

	// Generation succeeded before the send, so the artifact stays
	entries, err := os.ReadDir(report.OutputDir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	sender.AssertExpectations(t)
}

func TestRun_PerRecipientSendingDate(t *testing.T) {
	cfg := testConfig(t)
	sender := &fakeSender{}
	svc := newService(cfg, sender)

	report, err := svc.Run(context.Background(), singleRequest())
	require.NoError(t, err)
	require.Equal(t, 1, report.SuccessCount)

	content, err := os.ReadFile(filepath.Join(report.OutputDir, "appointment_Jane Doe.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(content), "Sent "+time.Now().Format("2006-01-02"))
}

func TestTestConnection_ValidatesCredentials(t *testing.T) {
	svc := newService(testConfig(t), &fakeSender{})

	creds := validCreds()
	creds.SenderEmail = "nope"

	err := svc.TestConnection(context.Background(), creds)
	var vErr *model.ValidationError
	assert.ErrorAs(t, err, &vErr)
}

func TestTestConnection_UnreachableServer(t *testing.T) {
	svc := newService(testConfig(t), &fakeSender{})

	creds := validCreds()
	creds.Server = "127.0.0.1"
	creds.Port = 1 // nothing listens here

	err := svc.TestConnection(context.Background(), creds)
	assert.Error(t, err)
}
