package ffprobe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os/exec"
	"strconv"
	"strings"
)

// Result is the decoded `ffprobe -show_format -show_streams` payload.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

// Stream holds the per-stream fields tailor reports.
type Stream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	FrameRate  string `json:"avg_frame_rate"`
	SampleRate string `json:"sample_rate"`
	Channels   int    `json:"channels"`
	Duration   string `json:"duration"`
}

// Format holds container-level metadata.
type Format struct {
	Filename   string `json:"filename"`
	FormatName string `json:"format_name"`
	Duration   string `json:"duration"`
	Size       string `json:"size"`
	BitRate    string `json:"bit_rate"`
}

// Inspect runs ffprobe against path.
func Inspect(ctx context.Context, binary, path string) (Result, error) {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffprobe"
	}
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe: empty path")
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary, "-v", "error", "-hide_banner", "-show_format", "-show_streams", "-of", "json", "--", path)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return Result{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, strings.TrimSpace(stderr.String()))
	}

	var result Result
	if err := json.Unmarshal(stdout.Bytes(), &result); err != nil {
		return Result{}, fmt.Errorf("ffprobe %s: decode output: %w", path, err)
	}
	return result, nil
}

func (r Result) streams(kind string) []Stream {
	var out []Stream
	for _, s := range r.Streams {
		if strings.EqualFold(s.CodecType, kind) {
			out = append(out, s)
		}
	}
	return out
}

// VideoStreamCount returns the number of video streams.
func (r Result) VideoStreamCount() int { return len(r.streams("video")) }

// AudioStreamCount returns the number of audio streams.
func (r Result) AudioStreamCount() int { return len(r.streams("audio")) }

// DurationSeconds returns the container duration, falling back to the first
// video stream. Unknown durations are 0.
func (r Result) DurationSeconds() float64 {
	if d := parseNumber(r.Format.Duration); d > 0 {
		return d
	}
	for _, s := range r.streams("video") {
		if d := parseNumber(s.Duration); d > 0 {
			return d
		}
	}
	return 0
}

// SizeBytes returns the container size, or 0 when unknown.
func (r Result) SizeBytes() int64 { return int64(parseNumber(r.Format.Size)) }

// BitRate returns the container bitrate in bits per second, or 0 when unknown.
func (r Result) BitRate() int64 { return int64(parseNumber(r.Format.BitRate)) }

// Resolution returns the dimensions of the first video stream.
func (r Result) Resolution() (width, height int) {
	for _, s := range r.streams("video") {
		if s.Width > 0 && s.Height > 0 {
			return s.Width, s.Height
		}
	}
	return 0, 0
}

// FrameRate returns the first video stream's average frame rate.
func (r Result) FrameRate() float64 {
	for _, s := range r.streams("video") {
		num, den, ok := strings.Cut(s.FrameRate, "/")
		if !ok {
			if f := parseNumber(s.FrameRate); f > 0 {
				return f
			}
			continue
		}
		n, d := parseNumber(num), parseNumber(den)
		if n > 0 && d > 0 {
			return n / d
		}
	}
	return 0
}

// Describe renders a one-line summary such as
// "mp4, 12.5s, 1920x1080 h264 @ 30fps, 1 audio (aac)".
func (r Result) Describe() string {
	var parts []string
	if name := r.Format.FormatName; name != "" {
		if first, _, ok := strings.Cut(name, ","); ok {
			name = first
		}
		parts = append(parts, name)
	}
	if d := r.DurationSeconds(); d > 0 {
		parts = append(parts, strconv.FormatFloat(d, 'f', 1, 64)+"s")
	}
	if video := r.streams("video"); len(video) > 0 {
		desc := video[0].CodecName
		if w, h := r.Resolution(); w > 0 {
			desc = fmt.Sprintf("%dx%d %s", w, h, desc)
		}
		if fps := r.FrameRate(); fps > 0 {
			desc += fmt.Sprintf(" @ %.0ffps", fps)
		}
		parts = append(parts, strings.TrimSpace(desc))
	}
	if audio := r.streams("audio"); len(audio) > 0 {
		parts = append(parts, fmt.Sprintf("%d audio (%s)", len(audio), audio[0].CodecName))
	} else {
		parts = append(parts, "no audio")
	}
	return strings.Join(parts, ", ")
}

func parseNumber(value string) float64 {
	parsed, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(parsed) || math.IsInf(parsed, 0) || parsed < 0 {
		return 0
	}
	return parsed
}
