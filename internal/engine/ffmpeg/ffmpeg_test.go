package ffmpeg

import (
	"context"
	"strings"
	"testing"

	"eduvid/internal/pipeline"
)

func TestConcatList(t *testing.T) {
	got := concatList([]string{"/tmp/a.mp4", "/tmp/b.mp4"})
	want := "file '/tmp/a.mp4'\nfile '/tmp/b.mp4'\n"
	if got != want {
		t.Errorf("concatList = %q, want %q", got, want)
	}
}

func TestConcatListEscapesQuotes(t *testing.T) {
	got := concatList([]string{"/tmp/it's.mp4"})
	if !strings.Contains(got, `'\''`) {
		t.Errorf("single quote not escaped: %q", got)
	}
}

func TestComposeRejectsEmptySegments(t *testing.T) {
	c := NewComposer("ffmpeg", nil)
	err := c.Compose(context.Background(), nil, "desc", t.TempDir()+"/out.mp4")
	if err == nil {
		t.Fatal("Compose succeeded with no segments")
	}
}

func TestComposeMissingBinary(t *testing.T) {
	c := NewComposer("definitely-not-ffmpeg-bin", nil)
	segs := []pipeline.Segment{{VideoPath: "/nonexistent/v.mp4", AudioPath: "/nonexistent/a.mp3"}}
	if err := c.Compose(context.Background(), segs, "", t.TempDir()+"/out.mp4"); err == nil {
		t.Fatal("Compose succeeded with missing binary")
	}
}
