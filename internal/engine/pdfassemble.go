package engine

import (
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"strings"

	"github.com/go-pdf/fpdf"
)

// PDFAssembler wraps a raster image into a single-page PDF sized to the
// image. Wrapping is cheaper than a general document conversion and carries
// no office-suite dependency, so image→PDF jobs bypass the DocumentEngine
// entirely. Inputs outside JPEG/PNG/GIF are rasterized to PNG by the image
// engine before they reach this path.
type PDFAssembler struct{}

// NewPDFAssembler constructs a PDFAssembler.
func NewPDFAssembler() *PDFAssembler {
	return &PDFAssembler{}
}

func (a *PDFAssembler) Name() string { return "pdf-assemble" }

// Healthy always succeeds; assembly is pure Go.
func (a *PDFAssembler) Healthy(context.Context) error { return nil }

// Accepts reports whether the assembler can embed the format directly.
func (a *PDFAssembler) Accepts(ext string) bool {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg", "png", "gif":
		return true
	}
	return false
}

// Convert embeds the input image on a page matching its pixel dimensions at
// 96 DPI.
func (a *PDFAssembler) Convert(_ context.Context, req Request) error {
	if !a.Accepts(req.SourceFormat) {
		return fmt.Errorf("cannot embed %q directly", req.SourceFormat)
	}
	req.report(10)

	f, err := os.Open(req.InputPath)
	if err != nil {
		return fmt.Errorf("open image: %w", err)
	}
	cfg, _, err := image.DecodeConfig(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("decode image: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return fmt.Errorf("image has no dimensions")
	}

	// 1 CSS pixel = 0.75 pt.
	wPt := float64(cfg.Width) * 0.75
	hPt := float64(cfg.Height) * 0.75

	doc := fpdf.NewCustom(&fpdf.InitType{
		UnitStr: "pt",
		Size:    fpdf.SizeType{Wd: wPt, Ht: hPt},
	})
	doc.AddPage()
	opts := fpdf.ImageOptions{ImageType: imageType(req.SourceFormat)}
	doc.ImageOptions(req.InputPath, 0, 0, wPt, hPt, false, opts, 0, "")
	req.report(80)

	if err := doc.OutputFileAndClose(req.OutputPath); err != nil {
		_ = os.Remove(req.OutputPath)
		return fmt.Errorf("write pdf: %w", err)
	}
	req.report(100)
	return nil
}

func imageType(ext string) string {
	switch strings.ToLower(ext) {
	case "jpg", "jpeg":
		return "JPG"
	case "gif":
		return "GIF"
	default:
		return "PNG"
	}
}
