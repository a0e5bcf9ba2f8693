package assets

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"reelsmith/internal/fileutil"
	"reelsmith/internal/logging"
	"reelsmith/internal/media"
)

// MarkUsed moves the bundle's consumed pool files into used/<kind>/. Files
// already gone are skipped; the ledger still excludes them.
func (p *LocalProvider) MarkUsed(ctx context.Context, b Bundle) error {
	var errs []error
	for _, asset := range b.Consumed {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !asset.Local {
			continue
		}
		dest, err := p.usedPath(asset)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := fileutil.MoveFile(asset.Path, dest); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				continue
			}
			errs = append(errs, fmt.Errorf("move %s: %w", asset.Path, err))
			continue
		}
		p.logger.Debug("asset retired", logging.String("from", asset.Path), logging.String("to", dest))
	}
	return errors.Join(errs...)
}

// usedPath picks a free destination, suffixing the name on collision.
func (p *LocalProvider) usedPath(asset media.Asset) (string, error) {
	kind := string(asset.Kind)
	if kind == "" {
		kind = "other"
	}
	dir := filepath.Join(p.pool.UsedDir(), kind)
	if asset.Category != "" {
		dir = filepath.Join(dir, asset.Category)
	}
	base := filepath.Base(asset.Path)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; i < 1000; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, i, ext)
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free name for %s under %s", base, dir)
}
