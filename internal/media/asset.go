// Package media holds the asset model shared by the asset provider and the
// renderer. Subpackages wrap the ffmpeg and ffprobe binaries.
package media

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Kind classifies an asset.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindAudio Kind = "audio"
)

// Source records where an image came from, for weighting and reporting.
type Source string

const (
	SourceCurated    Source = "curated"
	SourceAIInjected Source = "ai_injected"
	SourceGenerated  Source = "generated"
)

// Region is a normalized crop hint (0..1 on both axes) locating the subject.
type Region struct {
	X, Y, W, H float64
}

// Center returns the region midpoint.
func (r Region) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Asset is one media file the renderer may read. The renderer never modifies it.
type Asset struct {
	Path     string
	Kind     Kind
	Category string
	Source   Source
	// Duration in seconds; set for video and audio.
	Duration float64
	Width    int
	Height   int
	Region   *Region
	// Local is true for files drawn from the pool that should move to used/
	// after a successful post. Generated files are not local.
	Local bool
}

// Name returns the base file name.
func (a Asset) Name() string { return filepath.Base(a.Path) }

func (a Asset) String() string {
	if a.Duration > 0 {
		return fmt.Sprintf("%s %s (%.2fs)", a.Kind, a.Name(), a.Duration)
	}
	return fmt.Sprintf("%s %s", a.Kind, a.Name())
}

var (
	imageExts = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".webp": true}
	videoExts = map[string]bool{".mp4": true, ".mov": true, ".webm": true, ".mkv": true}
	audioExts = map[string]bool{".mp3": true, ".wav": true, ".m4a": true, ".aac": true, ".ogg": true, ".flac": true}
)

// KindFromPath infers the asset kind from the file extension.
func KindFromPath(path string) (Kind, bool) {
	ext := strings.ToLower(filepath.Ext(path))
	switch {
	case imageExts[ext]:
		return KindImage, true
	case videoExts[ext]:
		return KindVideo, true
	case audioExts[ext]:
		return KindAudio, true
	}
	return "", false
}
