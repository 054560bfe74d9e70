//go:build !windows

package pathstore

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/hive/sqlite"
)

// defaultRoot opens the current user root of the SQLite hive at DefaultDBPath.
func defaultRoot(ctx context.Context) (hive.Key, io.Closer, error) {
	path, err := DefaultDBPath()
	if err != nil {
		return nil, nil, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}

	h, err := sqlite.Open(path)
	if err != nil {
		return nil, nil, err
	}
	root, err := h.Root(ctx, hive.CurrentUser)
	if err != nil {
		h.Close()
		return nil, nil, err
	}
	return root, h, nil
}
