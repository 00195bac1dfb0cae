// Package mailer sends appointment emails with the generated letter
// attached. Providers implement Sender; the SMTP provider is built per
// run from caller-supplied credentials, the Gmail provider from static
// configuration.
package mailer

import "context"

// Sender is the interface that all email providers must implement.
// This abstraction allows swapping providers (SMTP, Gmail, etc.)
// without changing the orchestration logic.
type Sender interface {
	// Send sends one message. A failed send is reported once through
	// the returned error and is never retried.
	Send(ctx context.Context, msg Message) error
}

// Message represents an email message to be sent.
type Message struct {
	To             string // recipient email address
	Subject        string // email subject
	TextBody       string // plain-text body
	AttachmentPath string // optional path of a file to attach
}
