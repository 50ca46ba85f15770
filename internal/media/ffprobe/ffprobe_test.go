package ffprobe_test

import (
	"context"
	"strings"
	"testing"

	"tailor/internal/media/ffprobe"
	"tailor/internal/testsupport"
)

const sample = `{
  "streams": [
    {"index": 0, "codec_name": "h264", "codec_type": "video", "width": 1920, "height": 1080, "avg_frame_rate": "30000/1001"},
    {"index": 1, "codec_name": "aac", "codec_type": "audio", "sample_rate": "48000", "channels": 2}
  ],
  "format": {"filename": "clip.mov", "format_name": "mov,mp4,m4a", "duration": "12.480", "size": "10485760", "bit_rate": "6721000"}
}`

func TestInspectParsesOutput(t *testing.T) {
	bin := testsupport.WriteScript(t, "ffprobe", "cat <<'JSON'\n"+sample+"\nJSON\n")

	result, err := ffprobe.Inspect(context.Background(), bin, "/media/clip.mov")
	if err != nil {
		t.Fatalf("Inspect: %v", err)
	}
	if result.VideoStreamCount() != 1 || result.AudioStreamCount() != 1 {
		t.Fatalf("unexpected stream counts: %+v", result.Streams)
	}
	if result.SizeBytes() != 10485760 || result.BitRate() != 6721000 {
		t.Fatalf("unexpected size/bitrate %d/%d", result.SizeBytes(), result.BitRate())
	}
	if w, h := result.Resolution(); w != 1920 || h != 1080 {
		t.Fatalf("unexpected resolution %dx%d", w, h)
	}
	if got := result.Describe(); got != "mov, 12.5s, 1920x1080 h264 @ 30fps, 1 audio (aac)" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestInspectReportsStderr(t *testing.T) {
	bin := testsupport.WriteScript(t, "ffprobe", "echo 'moov atom not found' >&2\nexit 1\n")
	_, err := ffprobe.Inspect(context.Background(), bin, "/media/broken.mp4")
	if err == nil || !strings.Contains(err.Error(), "moov atom not found") {
		t.Fatalf("expected stderr in error, got %v", err)
	}
	if _, err := ffprobe.Inspect(context.Background(), bin, " "); err == nil {
		t.Fatal("expected error for empty path")
	}
}

func TestHelpersTolerateMissingValues(t *testing.T) {
	result := ffprobe.Result{
		Streams: []ffprobe.Stream{{CodecType: "video", CodecName: "vp9", Duration: "3.5", FrameRate: "0/0"}},
		Format:  ffprobe.Format{Duration: "N/A", Size: "-1", BitRate: "nope"},
	}
	if result.DurationSeconds() != 3.5 {
		t.Fatalf("expected stream duration fallback, got %v", result.DurationSeconds())
	}
	if result.SizeBytes() != 0 || result.BitRate() != 0 || result.FrameRate() != 0 {
		t.Fatal("invalid numbers should read as zero")
	}
	if got := result.Describe(); got != "3.5s, vp9, no audio" {
		t.Fatalf("unexpected description %q", got)
	}
}
