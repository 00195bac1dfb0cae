package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/letterdrop/letterdrop/internal/config"
	"github.com/letterdrop/letterdrop/internal/letter"
	"github.com/letterdrop/letterdrop/internal/logger"
	"github.com/letterdrop/letterdrop/internal/mailer"
	"github.com/letterdrop/letterdrop/internal/model"
	"github.com/letterdrop/letterdrop/internal/tabular"
	"github.com/letterdrop/letterdrop/internal/validate"
)

// RunMode selects single-recipient or spreadsheet-driven processing
type RunMode string

const (
	ModeSingle RunMode = "single"
	ModeBatch  RunMode = "batch"
)

// requiredColumns is the structural precondition for batch mode
var requiredColumns = []string{"name", "date_of_joining", "email"}

// joinDateLayouts are the accepted date_of_joining spellings, normalized
// to ISO before rendering. Spreadsheet cells come back formatted, so the
// short xlsx default is included.
var joinDateLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006/01/02",
	"01/02/2006",
	"01-02-06",
	"02 Jan 2006",
	"2 January 2006",
	"January 2, 2006",
}

// SenderFactory builds the Sender used for one run from the run's
// credentials. The SMTP provider consumes the credentials; the Gmail
// provider ignores them and uses its static configuration.
type SenderFactory func(creds model.SMTPCredentials) mailer.Sender

// RunRequest carries everything one invocation needs. Credentials are
// held in memory for the duration of the call only.
type RunRequest struct {
	Mode         RunMode
	Template     []byte
	TemplateName string // original filename, decides the template kind
	Credentials  model.SMTPCredentials
	Subject      string // empty means the configured default
	BodyTemplate string
	Single       *model.RecipientRecord
	TableData    []byte
	TableFormat  tabular.Format
}

// BatchService drives the mail-merge workflow: per recipient it
// generates a letter and dispatches it, accumulating outcomes into a
// BatchReport. Processing is strictly sequential.
type BatchService struct {
	gen       *letter.Generator
	newSender SenderFactory
	cfg       *config.Config
	log       *logger.Logger
}

// NewBatchService creates a new BatchService.
func NewBatchService(gen *letter.Generator, newSender SenderFactory, cfg *config.Config, log *logger.Logger) *BatchService {
	return &BatchService{
		gen:       gen,
		newSender: newSender,
		cfg:       cfg,
		log:       log.WithComponent("batch"),
	}
}

// Run executes one batch run. It returns an error only for structural
// failures (bad credentials, malformed data source, missing columns,
// invalid single-recipient input) detected before any recipient is
// processed; per-recipient failures are recorded as outcomes instead.
func (s *BatchService) Run(ctx context.Context, req RunRequest) (*model.BatchReport, error) {
	if err := validate.Credentials(req.Credentials); err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	log := s.log.WithRunID(runID)

	// The working directory holds the uploaded template and all
	// intermediate files. It is removed whatever happens; the output
	// directory is never removed automatically.
	workDir, err := os.MkdirTemp("", "letterdrop-")
	if err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	outputDir := filepath.Join(s.cfg.Letter.OutputRoot,
		"generated_letters_"+time.Now().Format("20060102_150405"))
	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}

	templatePath, err := s.stageTemplate(req, workDir)
	if err != nil {
		return nil, err
	}

	sender := s.newSender(req.Credentials)
	subject := req.Subject
	if subject == "" {
		subject = s.cfg.Letter.Subject
	}

	report := &model.BatchReport{RunID: runID, OutputDir: outputDir}

	switch req.Mode {
	case ModeSingle:
		if req.Single == nil {
			return nil, model.NewValidationError("recipient", "Missing recipient details")
		}
		if err := validate.Recipient(*req.Single); err != nil {
			return nil, err
		}
		report.Total = 1
		s.processRecipient(ctx, *req.Single, templatePath, workDir, sender, subject, req.BodyTemplate, report, log)

	case ModeBatch:
		if len(req.TableData) == 0 {
			return nil, model.NewValidationError("excel_file", "data source required for multiple recipients")
		}
		table, err := tabular.Read(req.TableData, req.TableFormat)
		if err != nil {
			return nil, err
		}
		if err := table.RequireColumns(requiredColumns...); err != nil {
			return nil, err
		}
		report.Total = len(table.Rows)
		for _, row := range table.Rows {
			rec := model.RecipientRecord{
				Name:          row["name"],
				DateOfJoining: row["date_of_joining"],
				Email:         row["email"],
			}
			if !validate.ValidEmail(rec.Email) {
				report.Append(model.FailedOutcome(rec.Name, rec.Email, model.ReasonInvalidEmail))
				continue
			}
			s.processRecipient(ctx, rec, templatePath, workDir, sender, subject, req.BodyTemplate, report, log)
		}

	default:
		return nil, model.NewValidationError("recipient_mode", `must be "single" or "batch"`)
	}

	log.Info().
		Int("total", report.Total).
		Int("success", report.SuccessCount).
		Str("output_dir", outputDir).
		Msg("run finished")

	return report, nil
}

// processRecipient completes one recipient fully (generate, then send)
// before the caller moves on. The recipient's email syntax has already
// been checked. Failures never propagate; they become outcomes.
func (s *BatchService) processRecipient(ctx context.Context, rec model.RecipientRecord, templatePath, workDir string, sender mailer.Sender, subject, bodyTemplate string, report *model.BatchReport, log *logger.Logger) {
	lctx, err := buildLetterContext(rec)
	if err != nil {
		report.Append(model.FailedOutcome(rec.Name, rec.Email, err.Error()))
		return
	}

	attachPath, err := s.gen.Generate(ctx, templatePath, lctx, workDir, report.OutputDir)
	if err != nil {
		log.Warn().Err(err).Str("recipient", rec.Name).Msg("letter generation failed")
		report.Append(model.FailedOutcome(rec.Name, rec.Email, err.Error()))
		return
	}

	msg := mailer.Message{
		To:             rec.Email,
		Subject:        subject,
		TextBody:       letter.Substitute(bodyTemplate, lctx.Placeholders()),
		AttachmentPath: attachPath,
	}
	if err := sender.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Str("recipient", rec.Name).Msg("send failed")
		report.Append(model.FailedOutcome(rec.Name, rec.Email, err.Error()))
		return
	}

	log.Info().Str("recipient", rec.Name).Str("email", rec.Email).Msg("letter sent")
	report.Append(model.SuccessOutcome(rec.Name, rec.Email))
}

// TestConnection opens an SMTP session with the given credentials and
// sends a fixed self-addressed message. No letter is generated.
func (s *BatchService) TestConnection(ctx context.Context, creds model.SMTPCredentials) error {
	if err := validate.Credentials(creds); err != nil {
		return err
	}
	sender := mailer.NewSMTPSender(creds, s.cfg.Email.SessionTimeout)
	return sender.Send(ctx, mailer.Message{
		To:       creds.SenderEmail,
		Subject:  "Letterdrop SMTP test",
		TextBody: "This is a test email to verify SMTP settings.",
	})
}

// stageTemplate writes the uploaded template into the working directory
// so the renderer reads a private copy for the whole run
func (s *BatchService) stageTemplate(req RunRequest, workDir string) (string, error) {
	if len(req.Template) == 0 {
		return "", model.NewValidationError("template_file", "is required")
	}
	ext := strings.ToLower(filepath.Ext(req.TemplateName))
	if ext == "" {
		ext = ".docx"
	}
	templatePath := filepath.Join(workDir, "template"+ext)
	if err := os.WriteFile(templatePath, req.Template, 0o644); err != nil {
		return "", fmt.Errorf("stage template: %w", err)
	}
	return templatePath, nil
}

// buildLetterContext derives the placeholder values for one recipient.
// date_of_sending is the wall clock at this moment, so rows generated
// after midnight in a long batch carry the later date.
func buildLetterContext(rec model.RecipientRecord) (model.LetterContext, error) {
	joined, err := parseJoinDate(rec.DateOfJoining)
	if err != nil {
		return model.LetterContext{}, err
	}
	return model.LetterContext{
		Name:          rec.Name,
		DateOfJoining: joined,
		DateOfSending: time.Now().Format("2006-01-02"),
		Email:         rec.Email,
	}, nil
}

func parseJoinDate(s string) (string, error) {
	value := strings.TrimSpace(s)
	for _, layout := range joinDateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("invalid date_of_joining %q", s)
}
