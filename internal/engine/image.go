package engine

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// ImageEngine converts raster images through an external vips process. vips
// decodes camera raw and PSD directly, so layered sources take the same
// direct path as plain rasters instead of detouring through a document
// renderer.
type ImageEngine struct {
	vipsPath string
}

// NewImageEngine constructs an ImageEngine.
func NewImageEngine(vipsPath string) *ImageEngine {
	return &ImageEngine{vipsPath: vipsPath}
}

func (e *ImageEngine) Name() string { return "image" }

// Healthy checks the vips binary responds.
func (e *ImageEngine) Healthy(ctx context.Context) error {
	return binaryHealthy(ctx, e.vipsPath, "--version")
}

// Convert runs vips copy. The output is written to a temporary file with the
// target extension (vips derives the encoder from the filename) and renamed
// into place only on success, so a failed run leaves no partial output.
func (e *ImageEngine) Convert(ctx context.Context, req Request) error {
	if _, err := exec.LookPath(e.vipsPath); err != nil {
		return fmt.Errorf("%w: %s not found", ErrUnavailable, e.vipsPath)
	}
	req.report(5)

	dstExt := filepath.Ext(req.OutputPath)
	tmpPath := strings.TrimSuffix(req.OutputPath, dstExt) + ".converting" + dstExt

	cmd := exec.CommandContext(ctx, e.vipsPath, "copy", req.InputPath, tmpPath+e.outputSuffix(req))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		_ = os.Remove(tmpPath)
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if stderr.Len() > 0 {
			return fmt.Errorf("vips copy: %s: %s", err, strings.TrimSpace(stderr.String()))
		}
		return fmt.Errorf("vips copy: %w", err)
	}
	req.report(90)

	if err := os.Rename(tmpPath, req.OutputPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename output: %w", err)
	}
	req.report(100)
	return nil
}

// outputSuffix builds the bracketed save parameters vips accepts after the
// output filename, e.g. out.webp[Q=80,strip].
func (e *ImageEngine) outputSuffix(req Request) string {
	var params []string
	if q, ok := req.Options["quality"]; ok && supportsQuality(req.TargetFormat) {
		params = append(params, "Q="+q)
	}
	if req.Options["strip-metadata"] == "true" {
		params = append(params, "strip")
	}
	if len(params) == 0 {
		return ""
	}
	return "[" + strings.Join(params, ",") + "]"
}

func supportsQuality(ext string) bool {
	switch ext {
	case "jpg", "jpeg", "webp", "heic":
		return true
	}
	return false
}
