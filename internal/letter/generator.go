package letter

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/letterdrop/letterdrop/internal/logger"
	"github.com/letterdrop/letterdrop/internal/model"
)

// Generator renders one letter per recipient into a working directory,
// optionally converts it to PDF, and copies the artifacts into the
// persistent output directory.
type Generator struct {
	converter *Converter // nil when conversion is disabled
	log       *logger.Logger
}

// NewGenerator creates a Generator. Pass a nil converter to disable
// fixed-layout conversion.
func NewGenerator(converter *Converter, log *logger.Logger) *Generator {
	return &Generator{
		converter: converter,
		log:       log.WithComponent("letter"),
	}
}

// Generate renders the template with the recipient's context into
// workDir, converts it when conversion is enabled, and copies the final
// artifacts into outputDir. It returns the path of the file to attach:
// the PDF when conversion is on, the rendered document otherwise.
// Nothing is copied into outputDir unless every step succeeded.
func (g *Generator) Generate(ctx context.Context, templatePath string, lctx model.LetterContext, workDir, outputDir string) (string, error) {
	ext := filepath.Ext(templatePath)
	if ext == "" {
		ext = ".docx"
	}
	base := "appointment_" + sanitizeName(lctx.Name)
	renderedPath := filepath.Join(workDir, base+ext)

	if err := render(templatePath, lctx.Placeholders(), renderedPath); err != nil {
		return "", err
	}

	artifacts := []string{renderedPath}
	attachPath := renderedPath

	if g.converter != nil {
		pdfPath, err := g.converter.Convert(ctx, renderedPath)
		if err != nil {
			return "", &model.ConversionError{Path: renderedPath, Err: err}
		}
		artifacts = append(artifacts, pdfPath)
		attachPath = pdfPath
	}

	for _, src := range artifacts {
		dst := filepath.Join(outputDir, filepath.Base(src))
		if err := copyFile(src, dst); err != nil {
			return "", fmt.Errorf("copy artifact to output dir: %w", err)
		}
	}

	g.log.Debug().
		Str("recipient", lctx.Name).
		Str("artifact", filepath.Base(attachPath)).
		Msg("letter generated")

	return attachPath, nil
}

// sanitizeName keeps recipient names readable in filenames while making
// sure the artifact stays inside the run directories
func sanitizeName(name string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', 0:
			return '_'
		}
		return r
	}, name)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Close()
}
