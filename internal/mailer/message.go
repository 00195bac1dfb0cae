package mailer

import (
	"encoding/base64"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// buildMIME assembles the RFC 5322 message: a plain-text body and, when
// msg.AttachmentPath is set, one base64 octet-stream attachment carrying
// the file's original name.
func buildMIME(from string, msg Message) ([]byte, error) {
	if msg.AttachmentPath == "" {
		plain := strings.Join([]string{
			"From: " + from,
			"To: " + msg.To,
			"Subject: " + msg.Subject,
			"MIME-Version: 1.0",
			"Content-Type: text/plain; charset=UTF-8",
			"",
			msg.TextBody,
		}, "\r\n")
		return []byte(plain), nil
	}

	payload, err := os.ReadFile(msg.AttachmentPath)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}
	filename := filepath.Base(msg.AttachmentPath)
	boundary := "part_" + uuid.NewString()

	mixed := strings.Join([]string{
		"From: " + from,
		"To: " + msg.To,
		"Subject: " + msg.Subject,
		"MIME-Version: 1.0",
		"Content-Type: multipart/mixed; boundary=" + boundary,
		"",
		"--" + boundary,
		"Content-Type: text/plain; charset=UTF-8",
		"Content-Transfer-Encoding: 7bit",
		"",
		msg.TextBody,
		"",
		"--" + boundary,
		"Content-Type: application/octet-stream",
		"Content-Transfer-Encoding: base64",
		fmt.Sprintf("Content-Disposition: attachment; filename=%q", filename),
		"",
		encodeBase64(payload),
		"--" + boundary + "--",
	}, "\r\n")
	return []byte(mixed), nil
}

// encodeBase64 wraps the encoded payload at 76 characters per RFC 2045
func encodeBase64(payload []byte) string {
	encoded := base64.StdEncoding.EncodeToString(payload)
	var b strings.Builder
	for len(encoded) > 76 {
		b.WriteString(encoded[:76])
		b.WriteString("\r\n")
		encoded = encoded[76:]
	}
	b.WriteString(encoded)
	b.WriteString("\r\n")
	return b.String()
}
