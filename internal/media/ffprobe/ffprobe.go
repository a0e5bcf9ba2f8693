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

// Result is the subset of `ffprobe -of json` output reelsmith reads.
type Result struct {
	Streams []Stream `json:"streams"`
	Format  Format   `json:"format"`
}

type Stream struct {
	Index     int    `json:"index"`
	CodecName string `json:"codec_name"`
	CodecType string `json:"codec_type"`
	Duration  string `json:"duration"`
	Width     int    `json:"width"`
	Height    int    `json:"height"`
}

type Format struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
}

// Prober runs Binary (ffprobe when empty) once per Probe call.
type Prober struct {
	Binary string
}

// Probe reads stream and container metadata for path.
func (p Prober) Probe(ctx context.Context, path string) (Result, error) {
	if strings.TrimSpace(path) == "" {
		return Result{}, errors.New("ffprobe: empty path")
	}
	binary := strings.TrimSpace(p.Binary)
	if binary == "" {
		binary = "ffprobe"
	}
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, binary,
		"-v", "error",
		"-show_entries", "format=filename,duration:stream=index,codec_name,codec_type,duration,width,height",
		"-of", "json",
		"--", path)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return Result{}, fmt.Errorf("ffprobe %s: %w: %s", path, err, msg)
		}
		return Result{}, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return Parse(out)
}

// Parse decodes ffprobe JSON output.
func Parse(data []byte) (Result, error) {
	var r Result
	if err := json.Unmarshal(data, &r); err != nil {
		return Result{}, fmt.Errorf("ffprobe output: %w", err)
	}
	return r, nil
}

func (r Result) stream(kind string) *Stream {
	for i := range r.Streams {
		if strings.EqualFold(r.Streams[i].CodecType, kind) {
			return &r.Streams[i]
		}
	}
	return nil
}

func (r Result) HasVideo() bool { return r.stream("video") != nil }
func (r Result) HasAudio() bool { return r.stream("audio") != nil }

// DurationSeconds prefers the container duration and otherwise takes the
// longest stream. Unparseable values count as zero.
func (r Result) DurationSeconds() float64 {
	if d := seconds(r.Format.Duration); d > 0 {
		return d
	}
	var longest float64
	for _, s := range r.Streams {
		longest = math.Max(longest, seconds(s.Duration))
	}
	return longest
}

// Dimensions of the first video stream, or 0x0 without one.
func (r Result) Dimensions() (int, int) {
	if s := r.stream("video"); s != nil {
		return s.Width, s.Height
	}
	return 0, 0
}

// seconds parses ffprobe's decimal durations; "N/A", negatives, NaN and
// infinities become 0.
func seconds(value string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
