package engine

import (
	"archive/tar"
	"archive/zip"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func archiveRequest(t *testing.T, target string) Request {
	t.Helper()
	dir := t.TempDir()
	input := filepath.Join(dir, "source.txt")
	if err := os.WriteFile(input, []byte("hello archive"), 0o644); err != nil {
		t.Fatalf("write input: %v", err)
	}
	return Request{
		InputPath:    input,
		OutputPath:   filepath.Join(dir, "output."+target),
		SourceName:   "notes.txt",
		SourceFormat: "txt",
		TargetFormat: target,
	}
}

func TestArchiveZipRoundTrip(t *testing.T) {
	req := archiveRequest(t, "zip")
	eng := NewArchiveEngine("7z")
	if err := eng.Convert(context.Background(), req); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	zr, err := zip.OpenReader(req.OutputPath)
	if err != nil {
		t.Fatalf("open zip: %v", err)
	}
	defer zr.Close()
	if len(zr.File) != 1 {
		t.Fatalf("zip has %d members, want 1", len(zr.File))
	}
	member := zr.File[0]
	if member.Name != "notes.txt" {
		t.Errorf("member name = %q, want notes.txt", member.Name)
	}
	rc, err := member.Open()
	if err != nil {
		t.Fatalf("open member: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read member: %v", err)
	}
	if string(data) != "hello archive" {
		t.Errorf("member content = %q", data)
	}
}

func TestArchiveTarRoundTrip(t *testing.T) {
	for _, target := range []string{"tar", "tgz"} {
		t.Run(target, func(t *testing.T) {
			req := archiveRequest(t, target)
			eng := NewArchiveEngine("7z")
			if err := eng.Convert(context.Background(), req); err != nil {
				t.Fatalf("Convert: %v", err)
			}

			f, err := os.Open(req.OutputPath)
			if err != nil {
				t.Fatalf("open output: %v", err)
			}
			defer f.Close()
			var src io.Reader = f
			if target == "tgz" {
				gz, err := gzip.NewReader(f)
				if err != nil {
					t.Fatalf("gzip reader: %v", err)
				}
				defer gz.Close()
				src = gz
			}
			tr := tar.NewReader(src)
			hdr, err := tr.Next()
			if err != nil {
				t.Fatalf("tar entry: %v", err)
			}
			if hdr.Name != "notes.txt" {
				t.Errorf("member name = %q, want notes.txt", hdr.Name)
			}
			data, err := io.ReadAll(tr)
			if err != nil {
				t.Fatalf("read member: %v", err)
			}
			if string(data) != "hello archive" {
				t.Errorf("member content = %q", data)
			}
		})
	}
}

func TestArchiveGzipRoundTrip(t *testing.T) {
	req := archiveRequest(t, "gz")
	eng := NewArchiveEngine("7z")
	if err := eng.Convert(context.Background(), req); err != nil {
		t.Fatalf("Convert: %v", err)
	}

	f, err := os.Open(req.OutputPath)
	if err != nil {
		t.Fatalf("open output: %v", err)
	}
	defer f.Close()
	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip reader: %v", err)
	}
	defer gz.Close()
	if gz.Name != "notes.txt" {
		t.Errorf("gzip name = %q, want notes.txt", gz.Name)
	}
	data, err := io.ReadAll(gz)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello archive" {
		t.Errorf("content = %q", data)
	}
}

func TestArchiveUnknownFormat(t *testing.T) {
	req := archiveRequest(t, "cab")
	eng := NewArchiveEngine("7z")
	if err := eng.Convert(context.Background(), req); err == nil {
		t.Fatalf("expected error for unknown container format")
	}
	if _, err := os.Stat(req.OutputPath); !os.IsNotExist(err) {
		t.Errorf("partial output should be removed")
	}
}

func TestArchiveReportsProgress(t *testing.T) {
	req := archiveRequest(t, "zip")
	var reported []int
	req.Progress = func(pct int) { reported = append(reported, pct) }
	eng := NewArchiveEngine("7z")
	if err := eng.Convert(context.Background(), req); err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if len(reported) == 0 || reported[len(reported)-1] != 100 {
		t.Errorf("progress reports = %v, want final 100", reported)
	}
}
