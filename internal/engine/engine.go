// Package engine contains the conversion engine adapters the dispatcher fans
// out to: external-process wrappers for images (vips), audio/video (ffmpeg),
// office documents and ebooks (soffice, ebook-convert), a native archiver,
// and a lightweight image→PDF assembler.
//
// Every adapter conforms to the same contract: convert one input file to one
// output file, report coarse progress through a callback, and leave nothing
// behind on failure. Engines never mutate job state; that belongs to the
// dispatcher.
package engine

import (
	"context"
	"errors"
	"os/exec"

	"github.com/formatforge/formatforge/internal/model"
)

// ErrUnavailable marks failures caused by a missing or broken external
// binary rather than by the input. The dispatcher maps it to the
// ENGINE_UNAVAILABLE job error code.
var ErrUnavailable = errors.New("conversion engine unavailable")

// Request describes one conversion invocation.
type Request struct {
	InputPath    string
	OutputPath   string
	SourceName   string
	SourceFormat string
	TargetFormat string
	Options      model.Options

	// Progress receives percentages in [0,100]. May be nil. Engines report
	// best-effort values; the dispatcher throttles and clamps them.
	Progress func(pct int)
}

func (r Request) report(pct int) {
	if r.Progress != nil {
		r.Progress(pct)
	}
}

// Engine converts one file into another format.
type Engine interface {
	Name() string
	Convert(ctx context.Context, req Request) error
	// Healthy probes the engine's external dependencies. A healthy error is
	// advisory at startup; a job routed to an unhealthy engine fails with
	// ErrUnavailable.
	Healthy(ctx context.Context) error
}

func binaryHealthy(ctx context.Context, path string, arg string) error {
	if _, err := exec.LookPath(path); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	cmd := exec.CommandContext(ctx, path, arg)
	if err := cmd.Run(); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}
