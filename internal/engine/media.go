package engine

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/formatforge/formatforge/internal/format"
)

// MediaEngine transcodes audio and video through an external ffmpeg process.
// Audio extraction from video is the same invocation: ffmpeg picks the
// encoder from the output extension and drops the video streams when the
// target cannot hold them.
type MediaEngine struct {
	ffmpegPath  string
	ffprobePath string
}

// NewMediaEngine constructs a MediaEngine.
func NewMediaEngine(ffmpegPath, ffprobePath string) *MediaEngine {
	return &MediaEngine{ffmpegPath: ffmpegPath, ffprobePath: ffprobePath}
}

func (e *MediaEngine) Name() string { return "media" }

// Healthy checks the ffmpeg binary responds.
func (e *MediaEngine) Healthy(ctx context.Context) error {
	return binaryHealthy(ctx, e.ffmpegPath, "-version")
}

// Convert runs ffmpeg with machine-readable progress on stdout. Percentages
// are derived against the input duration probed via ffprobe; when probing
// fails the conversion still runs, just without intermediate progress.
func (e *MediaEngine) Convert(ctx context.Context, req Request) error {
	if _, err := exec.LookPath(e.ffmpegPath); err != nil {
		return fmt.Errorf("%w: %s not found", ErrUnavailable, e.ffmpegPath)
	}

	durationUS, _ := e.probeDurationUS(ctx, req.InputPath)
	req.report(1)

	args := e.buildArgs(req)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		key, value, ok := strings.Cut(strings.TrimSpace(scanner.Text()), "=")
		if !ok || key != "out_time_us" || durationUS <= 0 {
			continue
		}
		if us, err := strconv.ParseInt(value, 10, 64); err == nil {
			req.report(int(us * 100 / durationUS))
		}
	}

	if err := cmd.Wait(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if msg := lastStderrLine(stderr.String()); msg != "" {
			return fmt.Errorf("ffmpeg: %s: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg: %w", err)
	}
	req.report(100)
	return nil
}

// buildArgs assembles the ffmpeg invocation for a request. Split out so the
// flag logic is testable without a binary.
func (e *MediaEngine) buildArgs(req Request) []string {
	args := []string{"-y", "-i", req.InputPath, "-progress", "pipe:1", "-nostats", "-loglevel", "error"}
	target, _ := format.Lookup(req.TargetFormat)
	if target.Category == format.CategoryAudio {
		// Drop any video stream; targets like mp3 cannot carry one.
		args = append(args, "-vn")
		if bitrate, ok := req.Options["quality"]; ok {
			args = append(args, "-b:a", bitrate)
		}
	}
	if req.Options["strip-metadata"] == "true" {
		args = append(args, "-map_metadata", "-1")
	}
	return append(args, req.OutputPath)
}

func (e *MediaEngine) probeDurationUS(ctx context.Context, path string) (int64, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path)
	out, err := cmd.Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe: %w", err)
	}
	seconds, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration: %w", err)
	}
	return int64(seconds * 1e6), nil
}

func lastStderrLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
