package engine

import (
	"reflect"
	"testing"

	"github.com/formatforge/formatforge/internal/model"
)

func TestMediaBuildArgs(t *testing.T) {
	eng := NewMediaEngine("ffmpeg", "ffprobe")

	cases := []struct {
		name string
		req  Request
		want []string
	}{
		{
			name: "video transcode",
			req: Request{
				InputPath:    "/tmp/in.mov",
				OutputPath:   "/tmp/out.mp4",
				TargetFormat: "mp4",
			},
			want: []string{"-y", "-i", "/tmp/in.mov", "-progress", "pipe:1", "-nostats", "-loglevel", "error", "/tmp/out.mp4"},
		},
		{
			name: "audio extraction drops video streams",
			req: Request{
				InputPath:    "/tmp/in.mp4",
				OutputPath:   "/tmp/out.mp3",
				TargetFormat: "mp3",
			},
			want: []string{"-y", "-i", "/tmp/in.mp4", "-progress", "pipe:1", "-nostats", "-loglevel", "error", "-vn", "/tmp/out.mp3"},
		},
		{
			name: "audio bitrate option",
			req: Request{
				InputPath:    "/tmp/in.wav",
				OutputPath:   "/tmp/out.mp3",
				TargetFormat: "mp3",
				Options:      model.Options{"quality": "192k"},
			},
			want: []string{"-y", "-i", "/tmp/in.wav", "-progress", "pipe:1", "-nostats", "-loglevel", "error", "-vn", "-b:a", "192k", "/tmp/out.mp3"},
		},
		{
			name: "strip metadata",
			req: Request{
				InputPath:    "/tmp/in.mov",
				OutputPath:   "/tmp/out.webm",
				TargetFormat: "webm",
				Options:      model.Options{"strip-metadata": "true"},
			},
			want: []string{"-y", "-i", "/tmp/in.mov", "-progress", "pipe:1", "-nostats", "-loglevel", "error", "-map_metadata", "-1", "/tmp/out.webm"},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := eng.buildArgs(tc.req)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("buildArgs = %v\nwant       %v", got, tc.want)
			}
		})
	}
}

func TestLastStderrLine(t *testing.T) {
	if got := lastStderrLine("first\nsecond\nlast error\n"); got != "last error" {
		t.Errorf("lastStderrLine = %q", got)
	}
	if got := lastStderrLine(""); got != "" {
		t.Errorf("lastStderrLine(empty) = %q", got)
	}
}
