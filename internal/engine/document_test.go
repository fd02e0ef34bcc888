package engine

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
)

func TestConvertToArg(t *testing.T) {
	cases := map[string]string{
		"pdf":  "pdf:writer_pdf_Export",
		"xlsx": "xlsx:Calc MS Excel 2007 XML",
		"html": "html:HTML (StarWriter)",
		"odp":  "odp",
	}
	for target, want := range cases {
		if got := convertToArg(target); got != want {
			t.Errorf("convertToArg(%q) = %q, want %q", target, got, want)
		}
	}
}

func TestConversionChains(t *testing.T) {
	// PDF to spreadsheet formats must route through HTML.
	for _, target := range []string{"xlsx", "ods", "csv"} {
		steps := conversionChains["pdf"][target]
		if len(steps) != 1 || steps[0] != "html" {
			t.Errorf("chain pdf -> %s = %v, want [html]", target, steps)
		}
	}
	if steps := conversionChains["docx"]["pdf"]; steps != nil {
		t.Errorf("docx -> pdf should be direct, got %v", steps)
	}
}

func TestDocumentMissingBinaryIsUnavailable(t *testing.T) {
	eng := NewDocumentEngine("definitely-not-soffice", "definitely-not-ebook-convert")
	dir := t.TempDir()

	err := eng.Convert(context.Background(), Request{
		InputPath:    filepath.Join(dir, "in.docx"),
		OutputPath:   filepath.Join(dir, "out.pdf"),
		SourceFormat: "docx",
		TargetFormat: "pdf",
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("office err = %v, want ErrUnavailable", err)
	}

	err = eng.Convert(context.Background(), Request{
		InputPath:    filepath.Join(dir, "in.epub"),
		OutputPath:   filepath.Join(dir, "out.mobi"),
		SourceFormat: "epub",
		TargetFormat: "mobi",
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("ebook err = %v, want ErrUnavailable", err)
	}
}
