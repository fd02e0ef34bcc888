// Package pdfutil probes PDF inputs before they are handed to the office
// converter.
package pdfutil

import (
	"fmt"
	"os"

	pdf "github.com/ledongthuc/pdf"
)

// PageCount opens a PDF and returns its page count. A parse failure here
// rejects the input before an expensive office-suite invocation starts.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return 0, fmt.Errorf("stat pdf: %w", err)
	}
	doc, err := pdf.NewReader(f, info.Size())
	if err != nil {
		return 0, fmt.Errorf("parse pdf: %w", err)
	}
	return doc.NumPage(), nil
}
