// Package letter renders appointment letters from document templates and
// produces per-recipient artifacts.
package letter

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	docx "github.com/lukasjarosch/go-docx"

	"github.com/letterdrop/letterdrop/internal/model"
)

// Substitute replaces every recognized placeholder in s with its value.
// Placeholders are written {{key}} or {key}; unmatched placeholders are
// left intact. Used for text templates and for the email body.
func Substitute(s string, values map[string]string) string {
	pairs := make([]string, 0, len(values)*4)
	for k, v := range values {
		pairs = append(pairs, "{{"+k+"}}", v, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(s)
}

// render writes the template at templatePath, with placeholders bound to
// values, to outPath. The template kind is chosen by file extension:
// .docx goes through the docx placeholder engine, anything else is
// treated as plain text.
func render(templatePath string, values map[string]string, outPath string) error {
	if strings.EqualFold(filepath.Ext(templatePath), ".docx") {
		return renderDocx(templatePath, values, outPath)
	}
	return renderText(templatePath, values, outPath)
}

func renderDocx(templatePath string, values map[string]string, outPath string) error {
	doc, err := docx.Open(templatePath)
	if err != nil {
		return &model.RenderError{Template: filepath.Base(templatePath), Err: err}
	}

	for k, v := range values {
		// Try both the native {key} form and the braced key that
		// matches {{key}} templates. Keys absent from the document
		// are not an error.
		for _, key := range []string{k, "{" + k + "}"} {
			if err := doc.Replace(key, v); err != nil && !errors.Is(err, docx.ErrPlaceholderNotFound) {
				return &model.RenderError{Template: filepath.Base(templatePath), Err: err}
			}
		}
	}

	if err := doc.WriteToFile(outPath); err != nil {
		return &model.RenderError{Template: filepath.Base(templatePath), Err: fmt.Errorf("write rendered document: %w", err)}
	}
	return nil
}

func renderText(templatePath string, values map[string]string, outPath string) error {
	raw, err := os.ReadFile(templatePath)
	if err != nil {
		return &model.RenderError{Template: filepath.Base(templatePath), Err: err}
	}
	rendered := Substitute(string(raw), values)
	if err := os.WriteFile(outPath, []byte(rendered), 0o644); err != nil {
		return &model.RenderError{Template: filepath.Base(templatePath), Err: fmt.Errorf("write rendered document: %w", err)}
	}
	return nil
}
