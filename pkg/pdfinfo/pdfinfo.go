// Package pdfinfo inspects uploaded PDF documents without rendering them.
package pdfinfo

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ledongthuc/pdf"
)

var (
	// ErrNotPDF signals the bytes do not carry the PDF file signature.
	ErrNotPDF = errors.New("missing pdf signature")
	// ErrMalformed signals the document structure could not be walked.
	ErrMalformed = errors.New("malformed pdf structure")
)

var pdfMagic = []byte("%PDF-")

// IsPDF reports whether the byte stream starts with the PDF signature.
func IsPDF(data []byte) bool {
	return bytes.HasPrefix(data, pdfMagic)
}

// PageCount verifies the signature and counts pages by walking the document's
// cross-reference table. A truncated or corrupt document returns ErrMalformed;
// it never panics into the caller.
func PageCount(data []byte) (count int, err error) {
	if len(data) == 0 || !IsPDF(data) {
		return 0, ErrNotPDF
	}

	// The reader panics on some malformed xref tables.
	defer func() {
		if r := recover(); r != nil {
			count = 0
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	n := reader.NumPage()
	if n < 0 {
		return 0, ErrMalformed
	}
	return n, nil
}
