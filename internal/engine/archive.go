package engine

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/klauspost/compress/gzip"
)

// ArchiveEngine wraps a single source file into a container format. zip, tar,
// gz, and tgz are produced natively; 7z shells out to the 7z binary. rar is
// refused at admission time and never reaches this engine.
type ArchiveEngine struct {
	sevenZipPath string
}

// NewArchiveEngine constructs an ArchiveEngine.
func NewArchiveEngine(sevenZipPath string) *ArchiveEngine {
	return &ArchiveEngine{sevenZipPath: sevenZipPath}
}

func (e *ArchiveEngine) Name() string { return "archive" }

// Healthy always succeeds for the native formats; the 7z binary is probed
// only when a 7z target is actually dispatched.
func (e *ArchiveEngine) Healthy(context.Context) error { return nil }

// Convert produces the requested container. The archive member keeps the
// original upload filename so extraction round-trips it.
func (e *ArchiveEngine) Convert(ctx context.Context, req Request) error {
	req.report(5)
	var err error
	switch req.TargetFormat {
	case "zip":
		err = e.writeZip(req)
	case "tar":
		err = e.writeTar(req, false)
	case "tgz":
		err = e.writeTar(req, true)
	case "gz":
		err = e.writeGzip(req)
	case "7z":
		err = e.writeSevenZip(ctx, req)
	default:
		err = fmt.Errorf("unsupported container format %q", req.TargetFormat)
	}
	if err != nil {
		_ = os.Remove(req.OutputPath)
		return err
	}
	req.report(100)
	return nil
}

func (e *ArchiveEngine) writeZip(req Request) error {
	out, err := os.Create(req.OutputPath)
	if err != nil {
		return fmt.Errorf("create zip: %w", err)
	}
	defer out.Close()
	zw := zip.NewWriter(out)
	w, err := zw.Create(req.SourceName)
	if err != nil {
		return fmt.Errorf("zip entry: %w", err)
	}
	if err := copyFile(w, req.InputPath); err != nil {
		return err
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finalize zip: %w", err)
	}
	return out.Close()
}

func (e *ArchiveEngine) writeTar(req Request, gzipped bool) error {
	out, err := os.Create(req.OutputPath)
	if err != nil {
		return fmt.Errorf("create tar: %w", err)
	}
	defer out.Close()

	var dst io.Writer = out
	var gz *gzip.Writer
	if gzipped {
		gz = gzip.NewWriter(out)
		dst = gz
	}
	tw := tar.NewWriter(dst)

	info, err := os.Stat(req.InputPath)
	if err != nil {
		return fmt.Errorf("stat input: %w", err)
	}
	hdr := &tar.Header{
		Name:    req.SourceName,
		Mode:    0o644,
		Size:    info.Size(),
		ModTime: info.ModTime(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("tar header: %w", err)
	}
	if err := copyFile(tw, req.InputPath); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("finalize tar: %w", err)
	}
	if gz != nil {
		if err := gz.Close(); err != nil {
			return fmt.Errorf("finalize gzip: %w", err)
		}
	}
	return out.Close()
}

func (e *ArchiveEngine) writeGzip(req Request) error {
	out, err := os.Create(req.OutputPath)
	if err != nil {
		return fmt.Errorf("create gzip: %w", err)
	}
	defer out.Close()
	gz := gzip.NewWriter(out)
	gz.Name = req.SourceName
	if err := copyFile(gz, req.InputPath); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("finalize gzip: %w", err)
	}
	return out.Close()
}

func (e *ArchiveEngine) writeSevenZip(ctx context.Context, req Request) error {
	if _, err := exec.LookPath(e.sevenZipPath); err != nil {
		return fmt.Errorf("%w: %s not found", ErrUnavailable, e.sevenZipPath)
	}
	cmd := exec.CommandContext(ctx, e.sevenZipPath, "a", req.OutputPath, req.InputPath)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := lastStderrLine(stderr.String()); msg != "" {
			return fmt.Errorf("7z: %s: %s", err, msg)
		}
		return fmt.Errorf("7z: %w", err)
	}
	return nil
}

func copyFile(dst io.Writer, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open input: %w", err)
	}
	defer f.Close()
	if _, err := io.Copy(dst, f); err != nil {
		return fmt.Errorf("copy input: %w", err)
	}
	return nil
}
