package validate

import (
	"regexp"
	"strings"

	"github.com/letterdrop/letterdrop/internal/model"
)

// emailPattern is deliberately permissive: non-empty local part, "@",
// non-empty domain with at least one dot. Deliverability is not checked.
var emailPattern = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// ValidEmail reports whether s looks like an email address
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

// Recipient checks that a recipient record has all required fields and
// a syntactically valid email address
func Recipient(rec model.RecipientRecord) error {
	if strings.TrimSpace(rec.Name) == "" {
		return model.NewValidationError("name", "is required")
	}
	if strings.TrimSpace(rec.DateOfJoining) == "" {
		return model.NewValidationError("date_of_joining", "is required")
	}
	if !ValidEmail(rec.Email) {
		return model.NewValidationError("email", model.ReasonInvalidEmail)
	}
	return nil
}

// Credentials checks the structural SMTP preconditions before a run starts
func Credentials(creds model.SMTPCredentials) error {
	if !ValidEmail(creds.SenderEmail) {
		return model.NewValidationError("sender_email", "Invalid sender email format")
	}
	if strings.TrimSpace(creds.Server) == "" {
		return model.NewValidationError("smtp_server", "is required")
	}
	if creds.Port <= 0 || creds.Port > 65535 {
		return model.NewValidationError("smtp_port", "must be a valid port number")
	}
	switch creds.Encryption {
	case model.EncryptionSTARTTLS, model.EncryptionSSL:
	default:
		return model.NewValidationError("encryption", `must be "starttls" or "ssl"`)
	}
	return nil
}
