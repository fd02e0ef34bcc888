package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/formatforge/formatforge/internal/model"
)

func TestImageOutputSuffix(t *testing.T) {
	eng := NewImageEngine("vips")

	cases := []struct {
		name string
		req  Request
		want string
	}{
		{
			name: "no options",
			req:  Request{TargetFormat: "png"},
			want: "",
		},
		{
			name: "quality for jpeg",
			req:  Request{TargetFormat: "jpg", Options: model.Options{"quality": "80"}},
			want: "[Q=80]",
		},
		{
			name: "quality ignored for png",
			req:  Request{TargetFormat: "png", Options: model.Options{"quality": "80"}},
			want: "",
		},
		{
			name: "strip metadata",
			req:  Request{TargetFormat: "webp", Options: model.Options{"strip-metadata": "true"}},
			want: "[strip]",
		},
		{
			name: "quality and strip combined",
			req:  Request{TargetFormat: "webp", Options: model.Options{"quality": "75", "strip-metadata": "true"}},
			want: "[Q=75,strip]",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := eng.outputSuffix(tc.req); got != tc.want {
				t.Errorf("outputSuffix = %q, want %q", got, tc.want)
			}
		})
	}
}

func TestImageMissingBinaryIsUnavailable(t *testing.T) {
	eng := NewImageEngine("definitely-not-a-real-binary")
	err := eng.Convert(context.Background(), Request{
		InputPath:    "/tmp/in.png",
		OutputPath:   "/tmp/out.jpg",
		TargetFormat: "jpg",
	})
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("err = %v, want ErrUnavailable", err)
	}
}
