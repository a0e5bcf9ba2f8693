// Package fileutil holds the file operations the pipeline relies on for crash
// safety. Every write lands in a temp file beside its destination and is
// renamed into place, so a hosted reel or a state file is either complete or
// absent.
package fileutil

import (
	"bytes"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"syscall"
)

// replace writes path through fill into a synced temp file, applies mode and
// renames it over path.
func replace(path string, mode os.FileMode, fill func(io.Writer) error) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if err = fill(tmp); err != nil {
		return err
	}
	if err = tmp.Sync(); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp.Name(), mode); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// WriteFileAtomic replaces path with data.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	return replace(path, mode, func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// CopyFile copies src to dst with mode 0o644. The bytes written are hashed
// and checked against a second read of src before dst becomes visible.
func CopyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	written := sha256.New()
	if err := replace(dst, 0o644, func(w io.Writer) error {
		_, err := io.Copy(io.MultiWriter(w, written), in)
		return err
	}); err != nil {
		return fmt.Errorf("copy %s: %w", filepath.Base(src), err)
	}

	want, err := digest(src)
	if err != nil {
		return err
	}
	if !bytes.Equal(want, written.Sum(nil)) {
		_ = os.Remove(dst)
		return errors.New("copy digest mismatch: source changed during copy")
	}
	return nil
}

func digest(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, err
	}
	return h.Sum(nil), nil
}

// MoveFile renames src to dst, copying and removing src when they sit on
// different filesystems.
func MoveFile(src, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	err := os.Rename(src, dst)
	if !errors.Is(err, syscall.EXDEV) {
		return err
	}
	if err := CopyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}
