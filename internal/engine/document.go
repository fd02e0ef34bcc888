package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/formatforge/formatforge/internal/format"
	"github.com/formatforge/formatforge/internal/pdfutil"
)

// DocumentEngine converts office documents, vector graphics, and ebooks.
// Office and vector targets go through LibreOffice; ebook targets go through
// calibre's ebook-convert. Some pairs are only reliable via an intermediate
// format, so a conversion may run as a chain of steps with intermediate
// artifacts scoped to the invocation.
type DocumentEngine struct {
	sofficePath      string
	ebookConvertPath string
}

// NewDocumentEngine constructs a DocumentEngine.
func NewDocumentEngine(sofficePath, ebookConvertPath string) *DocumentEngine {
	return &DocumentEngine{sofficePath: sofficePath, ebookConvertPath: ebookConvertPath}
}

func (e *DocumentEngine) Name() string { return "document" }

// Healthy checks the soffice binary responds. ebook-convert is probed lazily
// because most deployments never convert ebooks.
func (e *DocumentEngine) Healthy(ctx context.Context) error {
	return binaryHealthy(ctx, e.sofficePath, "--version")
}

// conversionChains lists pairs that must route through an intermediate
// format. Extracting tabular data straight out of a PDF is unreliable in
// LibreOffice; PDF→HTML→spreadsheet is the path that works.
var conversionChains = map[string]map[string][]string{
	"pdf": {
		"xlsx": {"html"},
		"ods":  {"html"},
		"csv":  {"html"},
	},
}

// Convert dispatches to the ebook or office path and, for office targets,
// runs the (possibly multi-hop) chain. Intermediates live in a directory
// removed on every exit path.
func (e *DocumentEngine) Convert(ctx context.Context, req Request) error {
	target, _ := format.Lookup(req.TargetFormat)
	if target.Category == format.CategoryEbook {
		return e.convertEbook(ctx, req)
	}

	if req.SourceFormat == "pdf" {
		pages, err := pdfutil.PageCount(req.InputPath)
		if err != nil {
			return fmt.Errorf("pdf input rejected: %w", err)
		}
		if pages == 0 {
			return fmt.Errorf("pdf input rejected: no pages")
		}
	}

	steps := append([]string{}, conversionChains[req.SourceFormat][req.TargetFormat]...)
	steps = append(steps, req.TargetFormat)

	workDir, err := os.MkdirTemp(filepath.Dir(req.OutputPath), "docchain-")
	if err != nil {
		return fmt.Errorf("create chain dir: %w", err)
	}
	defer os.RemoveAll(workDir)

	input := req.InputPath
	for i, stepTarget := range steps {
		req.report((i * 100) / len(steps))
		produced, err := e.convertOffice(ctx, input, workDir, stepTarget)
		if err != nil {
			return fmt.Errorf("chain step %s: %w", stepTarget, err)
		}
		input = produced
	}
	if err := os.Rename(input, req.OutputPath); err != nil {
		return fmt.Errorf("move chain output: %w", err)
	}
	req.report(100)
	return nil
}

// convertOffice runs one LibreOffice conversion step. The explicit-filter
// invocation is tried first; when it fails the step falls back to a bare
// --convert-to run, whose output name LibreOffice derives from the input
// base name rather than taking it from us.
func (e *DocumentEngine) convertOffice(ctx context.Context, input, outDir, target string) (string, error) {
	if _, err := exec.LookPath(e.sofficePath); err != nil {
		return "", fmt.Errorf("%w: %s not found", ErrUnavailable, e.sofficePath)
	}
	produced, primaryErr := e.runSoffice(ctx, input, outDir, convertToArg(target))
	if primaryErr == nil {
		return produced, nil
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	produced, fallbackErr := e.runSoffice(ctx, input, outDir, target)
	if fallbackErr != nil {
		return "", fmt.Errorf("primary: %v; fallback: %w", primaryErr, fallbackErr)
	}
	return produced, nil
}

// runSoffice invokes soffice headless and returns the path of the produced
// file: the input's base name with the target extension, inside outDir.
func (e *DocumentEngine) runSoffice(ctx context.Context, input, outDir, convertTo string) (string, error) {
	cmd := exec.CommandContext(ctx, e.sofficePath,
		"--headless", "--norestore",
		"--convert-to", convertTo,
		"--outdir", outDir,
		input)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := lastStderrLine(stderr.String()); msg != "" {
			return "", fmt.Errorf("soffice: %s: %s", err, msg)
		}
		return "", fmt.Errorf("soffice: %w", err)
	}
	ext, _, _ := strings.Cut(convertTo, ":")
	base := strings.TrimSuffix(filepath.Base(input), filepath.Ext(input))
	produced := filepath.Join(outDir, base+"."+ext)
	if _, err := os.Stat(produced); err != nil {
		return "", fmt.Errorf("soffice produced no output: %w", err)
	}
	return produced, nil
}

func (e *DocumentEngine) convertEbook(ctx context.Context, req Request) error {
	if _, err := exec.LookPath(e.ebookConvertPath); err != nil {
		return fmt.Errorf("%w: %s not found", ErrUnavailable, e.ebookConvertPath)
	}
	req.report(5)
	cmd := exec.CommandContext(ctx, e.ebookConvertPath, req.InputPath, req.OutputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := lastStderrLine(stderr.String()); msg != "" {
			return fmt.Errorf("ebook-convert: %s: %s", err, msg)
		}
		return fmt.Errorf("ebook-convert: %w", err)
	}
	req.report(100)
	return nil
}

// officeFilters maps target extensions to LibreOffice export filter names.
// Explicit filters disambiguate targets that several applications can write.
var officeFilters = map[string]string{
	"pdf":  "writer_pdf_Export",
	"docx": "MS Word 2007 XML",
	"odt":  "writer8",
	"xlsx": "Calc MS Excel 2007 XML",
	"ods":  "calc8",
	"csv":  "Text - txt - csv (StarCalc)",
	"html": "HTML (StarWriter)",
	"rtf":  "Rich Text Format",
	"txt":  "Text",
}

func convertToArg(target string) string {
	if filter, ok := officeFilters[target]; ok {
		return target + ":" + filter
	}
	return target
}
