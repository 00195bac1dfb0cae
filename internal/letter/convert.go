package letter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// Converter turns a rendered document into a fixed-layout PDF using
// headless LibreOffice. Conversion is never retried.
type Converter struct {
	bin     string
	timeout time.Duration
}

// NewConverter creates a Converter using the given LibreOffice binary
func NewConverter(bin string, timeout time.Duration) *Converter {
	if bin == "" {
		bin = "soffice"
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	return &Converter{bin: bin, timeout: timeout}
}

// Available reports whether the converter binary can be found
func (c *Converter) Available() bool {
	_, err := exec.LookPath(c.bin)
	return err == nil
}

// Convert produces a PDF next to docPath and returns its path. A missing
// output file counts as failure even when the converter exits zero.
func (c *Converter) Convert(ctx context.Context, docPath string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	outDir := filepath.Dir(docPath)
	cmd := exec.CommandContext(ctx, c.bin, "--headless", "--convert-to", "pdf", "--outdir", outDir, docPath)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("%s: %w (%s)", c.bin, err, bytes.TrimSpace(out))
	}

	pdfPath := strings.TrimSuffix(docPath, filepath.Ext(docPath)) + ".pdf"
	if _, err := os.Stat(pdfPath); err != nil {
		return "", errors.New("converter produced no output file")
	}
	return pdfPath, nil
}
