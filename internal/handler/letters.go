package handler

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/letterdrop/letterdrop/internal/model"
	"github.com/letterdrop/letterdrop/internal/service"
	"github.com/letterdrop/letterdrop/internal/tabular"
)

// GenerateResponse is the envelope returned by GenerateLetters
type GenerateResponse struct {
	Message   string                  `json:"message"`
	Report    *model.BatchReport      `json:"report"`
	Failed    []model.DispatchOutcome `json:"failed,omitempty"`
	FailedCSV string                  `json:"failedCsv,omitempty"`
}

// GenerateLetters handles the mail-merge request. It accepts a
// multipart form with the template upload, SMTP credentials, the email
// body template, and either single-recipient fields or a spreadsheet.
func (h *Handler) GenerateLetters(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.cfg.Server.MaxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid multipart form: "+err.Error())
		return
	}

	creds, err := credentialsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	template, templateName, err := readFormFile(r, "template_file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "template_file: "+err.Error())
		return
	}

	req := service.RunRequest{
		Template:     template,
		TemplateName: templateName,
		Credentials:  creds,
		Subject:      strings.TrimSpace(r.FormValue("subject")),
		BodyTemplate: r.FormValue("email_body"),
	}

	switch strings.ToLower(strings.TrimSpace(r.FormValue("recipient_mode"))) {
	case "single", "single recipient":
		req.Mode = service.ModeSingle
		req.Single = &model.RecipientRecord{
			Name:          strings.TrimSpace(r.FormValue("recipient_name")),
			DateOfJoining: strings.TrimSpace(r.FormValue("date_of_joining")),
			Email:         strings.TrimSpace(r.FormValue("recipient_email")),
		}
	default:
		req.Mode = service.ModeBatch
		data, dataName, err := readFormFile(r, "excel_file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_error", "excel_file: "+err.Error())
			return
		}
		req.TableData = data
		req.TableFormat = tabular.DetectFormat(dataName)
	}

	report, err := h.batchSvc.Run(r.Context(), req)
	if err != nil {
		h.respondRunError(w, r, err)
		return
	}

	resp := GenerateResponse{
		Message: "Processed " + strconv.Itoa(report.SuccessCount) + " out of " +
			strconv.Itoa(report.Total) + " letters successfully",
		Report: report,
		Failed: report.Failed(),
	}
	if len(resp.Failed) > 0 {
		resp.FailedCSV = report.FailedCSV()
	}
	writeJSON(w, http.StatusOK, resp)
}

// TestEmail sends a fixed self-addressed message with the supplied SMTP
// credentials, without generating any letter.
func (h *Handler) TestEmail(w http.ResponseWriter, r *http.Request) {
	// The front-end posts this as a form too; tolerate both encodings.
	if err := r.ParseMultipartForm(h.cfg.Server.MaxUploadBytes); err != nil && !errors.Is(err, http.ErrNotMultipart) {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid form: "+err.Error())
		return
	}

	creds, err := credentialsFromForm(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", err.Error())
		return
	}

	if err := h.batchSvc.TestConnection(r.Context(), creds); err != nil {
		var vErr *model.ValidationError
		if errors.As(err, &vErr) {
			writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, "smtp_error", "Failed to send test email: "+err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"message": "Test email sent successfully"})
}

func (h *Handler) respondRunError(w http.ResponseWriter, r *http.Request, err error) {
	var vErr *model.ValidationError
	var pErr *model.ParseError
	switch {
	case errors.As(err, &vErr):
		writeError(w, http.StatusBadRequest, "validation_error", vErr.Error())
	case errors.As(err, &pErr):
		writeError(w, http.StatusBadRequest, "parse_error", pErr.Error())
	default:
		h.log.Error().Err(err).Str("path", r.URL.Path).Msg("run failed")
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

// credentialsFromForm builds SMTPCredentials from the request form,
// accepting the legacy encryption spellings ("SSL", "TLS")
func credentialsFromForm(r *http.Request) (model.SMTPCredentials, error) {
	port, err := strconv.Atoi(strings.TrimSpace(r.FormValue("smtp_port")))
	if err != nil {
		return model.SMTPCredentials{}, model.NewValidationError("smtp_port", "must be a number")
	}

	var encryption model.EncryptionMode
	switch strings.ToLower(strings.TrimSpace(r.FormValue("encryption"))) {
	case "ssl", "tls":
		encryption = model.EncryptionSSL
	case "starttls", "":
		encryption = model.EncryptionSTARTTLS
	default:
		return model.SMTPCredentials{}, model.NewValidationError("encryption", `must be "starttls" or "ssl"`)
	}

	return model.SMTPCredentials{
		SenderEmail:    strings.TrimSpace(r.FormValue("sender_email")),
		SenderPassword: r.FormValue("sender_password"),
		Server:         strings.TrimSpace(r.FormValue("smtp_server")),
		Port:           port,
		Encryption:     encryption,
	}, nil
}

func readFormFile(r *http.Request, field string) ([]byte, string, error) {
	f, fh, err := r.FormFile(field)
	if err != nil {
		return nil, "", errors.New("file is required")
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, "", err
	}
	return data, fh.Filename, nil
}
