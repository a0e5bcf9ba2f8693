package assets

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"reelsmith/internal/media"
)

const (
	imagesDir     = "images"
	audioDir      = "audio"
	referenceDir  = "reference"
	usedDir       = "used"
	archiveDir    = "archive"
	aiInjectedDir = "ai_injected"
)

// Pool lists selectable files under the assets root.
type Pool struct {
	Root string
}

// ImagesDir returns the curated image root.
func (p Pool) ImagesDir() string { return filepath.Join(p.Root, imagesDir) }

// AudioDir returns the music directory.
func (p Pool) AudioDir() string { return filepath.Join(p.Root, audioDir) }

// ReferenceDir returns the reference-person photo directory.
func (p Pool) ReferenceDir() string { return filepath.Join(p.Root, referenceDir) }

// UsedDir returns where consumed files are moved.
func (p Pool) UsedDir() string { return filepath.Join(p.Root, usedDir) }

// Images groups available images by category directory. The ai_injected
// directory is returned under its own key.
func (p Pool) Images(exclude map[string]struct{}) (map[string][]string, error) {
	entries, err := os.ReadDir(p.ImagesDir())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string][]string{}, nil
		}
		return nil, fmt.Errorf("assets: list images: %w", err)
	}
	out := make(map[string][]string)
	for _, entry := range entries {
		if !entry.IsDir() || skippedDir(entry.Name()) {
			continue
		}
		files, err := p.files(filepath.Join(p.ImagesDir(), entry.Name()), media.KindImage, exclude)
		if err != nil {
			return nil, err
		}
		if len(files) > 0 {
			out[strings.ToLower(entry.Name())] = files
		}
	}
	return out, nil
}

// Music lists available music files.
func (p Pool) Music() ([]string, error) {
	return p.files(p.AudioDir(), media.KindAudio, nil)
}

// References lists reference-person photos.
func (p Pool) References() ([]string, error) {
	return p.files(p.ReferenceDir(), media.KindImage, nil)
}

// files walks dir for files of kind, skipping used/ and archive/ subtrees
// and anything in exclude.
func (p Pool) files(dir string, kind media.Kind, exclude map[string]struct{}) ([]string, error) {
	var out []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == dir {
				return filepath.SkipDir
			}
			return err
		}
		if d.IsDir() {
			if path != dir && skippedDir(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return nil
		}
		if k, ok := media.KindFromPath(path); !ok || k != kind {
			return nil
		}
		if _, used := exclude[path]; used {
			return nil
		}
		out = append(out, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("assets: scan %s: %w", dir, err)
	}
	slices.Sort(out)
	return out, nil
}

// rel returns path relative to images/, for region lookups.
func (p Pool) rel(path string) string {
	rel, err := filepath.Rel(p.ImagesDir(), path)
	if err != nil {
		return path
	}
	return rel
}

func skippedDir(name string) bool {
	name = strings.ToLower(name)
	return name == usedDir || name == archiveDir
}
