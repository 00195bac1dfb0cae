package model

import "fmt"

// EncryptionMode selects how the SMTP session is secured
type EncryptionMode string

const (
	// EncryptionSTARTTLS connects in plaintext and upgrades before auth
	EncryptionSTARTTLS EncryptionMode = "starttls"
	// EncryptionSSL connects directly over a TLS socket (implicit TLS)
	EncryptionSSL EncryptionMode = "ssl"
)

// SMTPCredentials carries the sender's SMTP session parameters.
// They are supplied per invocation and held in memory only.
type SMTPCredentials struct {
	SenderEmail    string         `json:"senderEmail"`
	SenderPassword string         `json:"-"` // never expose the password
	Server         string         `json:"server"`
	Port           int            `json:"port"`
	Encryption     EncryptionMode `json:"encryption"`
}

// Addr returns the host:port dial address
func (c SMTPCredentials) Addr() string {
	return fmt.Sprintf("%s:%d", c.Server, c.Port)
}

// RecipientRecord represents one recipient as read from the form or
// from a spreadsheet row
type RecipientRecord struct {
	Name          string `json:"name"`
	DateOfJoining string `json:"dateOfJoining"`
	Email         string `json:"email"`
}

// LetterContext is the fixed placeholder set bound into a letter.
// Dates are ISO (YYYY-MM-DD) strings; DateOfSending is the wall-clock
// date at the moment this recipient's letter is generated.
type LetterContext struct {
	Name          string
	DateOfJoining string
	DateOfSending string
	Email         string
}

// Placeholders returns the substitution map keyed on the recognized
// placeholder names
func (c LetterContext) Placeholders() map[string]string {
	return map[string]string{
		"name":            c.Name,
		"date_of_joining": c.DateOfJoining,
		"date_of_sending": c.DateOfSending,
		"email":           c.Email,
	}
}
