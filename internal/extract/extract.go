// Package extract pulls plain text out of uploaded documents.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/corpusworks/corpusd/internal/domain"
	"github.com/ledongthuc/pdf"
)

// Text extracts plain text from the document content, dispatching on the
// filename extension. Supported: .pdf and .txt (plus extensionless files,
// treated as plain text).
func Text(filename string, r io.Reader) (string, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".pdf":
		return PDFText(r)
	case ".txt", ".text", ".md", "":
		b, err := io.ReadAll(r)
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", filename, err)
		}
		return string(b), nil
	default:
		return "", domain.NewDomainError(domain.ErrCodeValidation,
			fmt.Sprintf("unsupported document type %q", filepath.Ext(filename)))
	}
}

// PDFText reads the entire content of r and extracts plain text from the PDF.
// A PDF with no extractable text yields an empty string and no error.
func PDFText(r io.Reader) (string, error) {
	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf: %w", err)
	}
	if len(b) == 0 {
		return "", nil
	}

	pdfReader, err := pdf.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return "", fmt.Errorf("failed to parse pdf: %w", err)
	}

	plainReader, err := pdfReader.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("failed to extract pdf text: %w", err)
	}

	out, err := io.ReadAll(plainReader)
	if err != nil {
		return "", fmt.Errorf("failed to read pdf text: %w", err)
	}
	return string(out), nil
}

// SourceID derives a stable source identifier from an uploaded filename:
// the base name, which makes re-uploads of the same file replace the prior
// chunks rather than duplicate them.
func SourceID(filename string) string {
	return filepath.Base(filename)
}
