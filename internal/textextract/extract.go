// Package textextract turns downloaded PDFs into plain-text siblings that the
// document QA path can send to text-only models.
package textextract

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dslipak/pdf"
)

// MaxFileSize is the largest PDF Extract will open.
const MaxFileSize = 100 * 1024 * 1024

// Extensions of source documents and their extracted text.
const (
	PDFExt  = ".pdf"
	TextExt = ".txt"
)

var (
	// ErrTooLarge is returned for files over MaxFileSize.
	ErrTooLarge = errors.New("file exceeds extraction size limit")
	// ErrNotPDF is returned for files without a .pdf extension.
	ErrNotPDF = errors.New("not a pdf file")
)

// SiblingPath returns the text path for a document: the extension is replaced
// by .txt ("paper.pdf" becomes "paper.txt").
func SiblingPath(path string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + TextExt
}

// HasSibling reports whether the text file for path already exists.
func HasSibling(path string) bool {
	_, err := os.Stat(SiblingPath(path))
	return err == nil
}

// IsPDF reports whether the name carries a .pdf extension, in any case.
func IsPDF(name string) bool {
	return strings.EqualFold(filepath.Ext(name), PDFExt)
}

// Extract returns the plain text of the PDF at path.
func Extract(path string) (text string, err error) {
	if !IsPDF(path) {
		return "", ErrNotPDF
	}
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("stat pdf: %w", err)
	}
	if info.Size() > MaxFileSize {
		return "", ErrTooLarge
	}

	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parse pdf: %v", r)
		}
	}()

	r, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return "", fmt.Errorf("parse pdf: %w", err)
	}
	plain, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(plain); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}

// WriteSibling extracts path and writes the text next to it, returning the
// text file's base name. The file appears atomically.
func WriteSibling(path string) (string, error) {
	text, err := Extract(path)
	if err != nil {
		return "", err
	}
	target := SiblingPath(path)
	if err := WriteFileAtomic(target, []byte(text)); err != nil {
		return "", err
	}
	return filepath.Base(target), nil
}

// WriteFileAtomic writes data to a temp file in the target directory and renames it into place.
func WriteFileAtomic(target string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(target), ".tmp-*"+filepath.Ext(target))
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, target); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename into place: %w", err)
	}
	return nil
}
