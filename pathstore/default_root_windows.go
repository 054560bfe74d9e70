//go:build windows

package pathstore

import (
	"context"
	"io"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/hive/winreg"
)

// defaultRoot binds to HKEY_CURRENT_USER.
func defaultRoot(ctx context.Context) (hive.Key, io.Closer, error) {
	root, err := winreg.Root(hive.CurrentUser)
	if err != nil {
		return nil, nil, err
	}
	return root, io.NopCloser(nil), nil
}
