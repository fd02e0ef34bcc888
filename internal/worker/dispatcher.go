// Package worker contains the conversion dispatcher: it claims accepted
// jobs, routes them to the right engine, relays progress, and drives every
// job to a terminal state no matter how the engine exits.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"github.com/formatforge/formatforge/internal/engine"
	"github.com/formatforge/formatforge/internal/format"
	"github.com/formatforge/formatforge/internal/logging"
	"github.com/formatforge/formatforge/internal/model"
	"github.com/formatforge/formatforge/internal/queue"
	"github.com/formatforge/formatforge/internal/repository"
)

// progressThreshold is the minimum advance (in percentage points) that gets
// persisted. Engine callbacks can fire far more often than the store should
// be written.
const progressThreshold = 3

// ObjectStore is the object-storage surface the dispatcher needs.
type ObjectStore interface {
	DownloadSourceTo(ctx context.Context, objectKey, destPath string) error
	UploadResultFile(ctx context.Context, objectKey, filePath, contentType string) error
	RemoveSource(ctx context.Context, objectKey string) error
	RemoveResult(ctx context.Context, objectKey string) error
}

// Assembler is the direct image→PDF path.
type Assembler interface {
	engine.Engine
	Accepts(ext string) bool
}

// Engines groups the conversion engines by the concern they serve.
type Engines struct {
	Image     engine.Engine
	Media     engine.Engine
	Document  engine.Engine
	Archive   engine.Engine
	Assembler Assembler
}

// Dispatcher owns job processing from claim to terminal state. Engines are
// injected so tests can run against fakes.
type Dispatcher struct {
	store   repository.Store
	objects ObjectStore
	engines Engines
	timeout time.Duration
	tempDir string
	log     *slog.Logger
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(store repository.Store, objects ObjectStore, engines Engines, timeout time.Duration, tempDir string, log *slog.Logger) *Dispatcher {
	if tempDir == "" {
		tempDir = os.TempDir()
	}
	return &Dispatcher{
		store:   store,
		objects: objects,
		engines: engines,
		timeout: timeout,
		tempDir: tempDir,
		log:     log,
	}
}

// Handler registers the conversion task handler for the asynq worker loop.
func (d *Dispatcher) Handler() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(queue.ProcessConversionTask, d.handleProcess)
	return mux
}

func (d *Dispatcher) handleProcess(ctx context.Context, task *asynq.Task) error {
	var payload queue.ProcessPayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return d.ProcessJob(ctx, payload.JobID)
}

// ProcessJob claims and runs one conversion job. It is safe to invoke any
// number of times for the same id: the claim is a compare-and-swap on the
// persisted status, so at most one invocation does work. Every exit path
// leaves the job terminal and the scratch directory removed.
func (d *Dispatcher) ProcessJob(ctx context.Context, jobID string) error {
	job, err := d.store.ClaimQueued(ctx, jobID)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotClaimable):
			d.log.Debug("job already claimed", "job", jobID)
			return nil
		case errors.Is(err, repository.ErrNotFound):
			// Retention swept the record between enqueue and dispatch.
			d.log.Warn("job vanished before dispatch", "job", jobID)
			return nil
		default:
			return fmt.Errorf("claim job %s: %w", jobID, err)
		}
	}
	log := d.log.With("job", job.ID, "source", job.SourceFormat, "target", job.TargetFormat)
	log.Info("job claimed")

	workDir, err := os.MkdirTemp(d.tempDir, "convert-"+job.ID+"-")
	if err != nil {
		return d.fail(ctx, log, job.ID, model.JobError{Code: model.ErrCodeWorker, Message: fmt.Sprintf("create scratch dir: %v", err)})
	}
	defer os.RemoveAll(workDir)

	inputPath := filepath.Join(workDir, "source."+job.SourceFormat)
	if err := d.objects.DownloadSourceTo(ctx, job.SourceKey, inputPath); err != nil {
		return d.fail(ctx, log, job.ID, model.JobError{Code: model.ErrCodeWorker, Message: fmt.Sprintf("fetch source: %v", err)})
	}

	jobCtx := ctx
	if d.timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	outputPath := filepath.Join(workDir, "output."+job.TargetFormat)
	convErr := d.runConversion(jobCtx, job, inputPath, outputPath, d.progressFunc(ctx, job.ID, log))
	if convErr != nil {
		return d.fail(ctx, log, job.ID, classify(jobCtx, convErr))
	}

	info, err := os.Stat(outputPath)
	if err != nil {
		return d.fail(ctx, log, job.ID, model.JobError{Code: model.ErrCodeWorker, Message: fmt.Sprintf("engine produced no output: %v", err)})
	}
	res := model.Result{
		FileName:  resultFileName(job.SourceName, job.TargetFormat),
		Size:      info.Size(),
		MIME:      format.MIMEType(job.TargetFormat),
		ObjectKey: fmt.Sprintf("results/%s/%s", job.ID, resultFileName(job.SourceName, job.TargetFormat)),
	}
	if err := d.objects.UploadResultFile(ctx, res.ObjectKey, outputPath, res.MIME); err != nil {
		return d.fail(ctx, log, job.ID, model.JobError{Code: model.ErrCodeWorker, Message: fmt.Sprintf("store result: %v", err)})
	}
	if err := d.store.MarkCompleted(ctx, job.ID, res); err != nil {
		return fmt.Errorf("complete job %s: %w", job.ID, err)
	}
	log.Info("job completed", "size", res.Size, "mime", res.MIME)
	return nil
}

// runConversion picks the engine by target category, with two cross-cutting
// routes: camera-raw and PSD sources headed to raster targets stay on the
// image engine's direct path, and image→PDF goes through the lightweight
// assembler instead of the office converter.
func (d *Dispatcher) runConversion(ctx context.Context, job *model.Job, inputPath, outputPath string, progress func(int)) error {
	target, ok := format.Lookup(job.TargetFormat)
	if !ok {
		return fmt.Errorf("unknown target format %q", job.TargetFormat)
	}
	source, _ := format.Lookup(job.SourceFormat)

	req := engine.Request{
		InputPath:    inputPath,
		OutputPath:   outputPath,
		SourceName:   job.SourceName,
		SourceFormat: job.SourceFormat,
		TargetFormat: job.TargetFormat,
		Options:      job.Options,
		Progress:     progress,
	}

	if target.Extension == "pdf" && source.Category == format.CategoryImage {
		return d.assembleImagePDF(ctx, req)
	}

	switch target.Category {
	case format.CategoryImage:
		return d.engines.Image.Convert(ctx, req)
	case format.CategoryAudio, format.CategoryVideo:
		return d.engines.Media.Convert(ctx, req)
	case format.CategoryDocument, format.CategoryVector, format.CategoryEbook:
		return d.engines.Document.Convert(ctx, req)
	case format.CategoryArchive:
		return d.engines.Archive.Convert(ctx, req)
	default:
		return fmt.Errorf("no engine for category %q", target.Category)
	}
}

// assembleImagePDF wraps an image as a single-page PDF. Formats the
// assembler cannot embed are first rasterized to PNG by the image engine,
// with the two steps sharing the progress range.
func (d *Dispatcher) assembleImagePDF(ctx context.Context, req engine.Request) error {
	if d.engines.Assembler.Accepts(req.SourceFormat) {
		return d.engines.Assembler.Convert(ctx, req)
	}
	intermediate := strings.TrimSuffix(req.OutputPath, filepath.Ext(req.OutputPath)) + ".intermediate.png"
	defer os.Remove(intermediate)

	rasterReq := req
	rasterReq.OutputPath = intermediate
	rasterReq.TargetFormat = "png"
	rasterReq.Progress = scaleProgress(req.Progress, 0, 50)
	if err := d.engines.Image.Convert(ctx, rasterReq); err != nil {
		return fmt.Errorf("rasterize for pdf wrap: %w", err)
	}

	wrapReq := req
	wrapReq.InputPath = intermediate
	wrapReq.SourceFormat = "png"
	wrapReq.Progress = scaleProgress(req.Progress, 50, 100)
	return d.engines.Assembler.Convert(ctx, wrapReq)
}

// progressFunc builds the callback handed to engines: monotonic, throttled,
// and persisted with the parent context so a job deadline does not cut off
// the final progress write.
func (d *Dispatcher) progressFunc(ctx context.Context, jobID string, log *slog.Logger) func(int) {
	last := 0
	sampler := logging.NewProgressSampler(10)
	return func(pct int) {
		if pct <= last || pct-last < progressThreshold {
			return
		}
		last = pct
		if sampler.ShouldLog(pct) {
			log.Info("job progress", "progress", pct)
		}
		if err := d.store.SetProgress(ctx, jobID, pct); err != nil {
			log.Warn("persist progress", "error", err)
		}
	}
}

func (d *Dispatcher) fail(ctx context.Context, log *slog.Logger, jobID string, jobErr model.JobError) error {
	log.Error("job failed", "code", jobErr.Code, "error", jobErr.Message)
	if err := d.store.MarkFailed(ctx, jobID, jobErr); err != nil {
		return fmt.Errorf("record failure for job %s: %w", jobID, err)
	}
	// The failure is recorded on the job; nothing is returned to asynq so a
	// terminal job is never reprocessed.
	return nil
}

// classify maps an engine error onto the stable job error codes. A deadline
// on the job context wins over whatever the engine surfaced while dying.
func classify(jobCtx context.Context, err error) model.JobError {
	switch {
	case errors.Is(jobCtx.Err(), context.DeadlineExceeded):
		return model.JobError{Code: model.ErrCodeTimeout, Message: "conversion exceeded the job time limit"}
	case errors.Is(err, engine.ErrUnavailable):
		return model.JobError{Code: model.ErrCodeUnavailable, Message: err.Error()}
	default:
		return model.JobError{Code: model.ErrCodeWorker, Message: err.Error()}
	}
}

func resultFileName(sourceName, targetFormat string) string {
	base := strings.TrimSuffix(filepath.Base(sourceName), filepath.Ext(sourceName))
	if base == "" {
		base = "converted"
	}
	return base + "." + targetFormat
}

func scaleProgress(inner func(int), from, to int) func(int) {
	if inner == nil {
		return nil
	}
	return func(pct int) {
		inner(from + pct*(to-from)/100)
	}
}
