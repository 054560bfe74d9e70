//go:build !windows

package winreg

import (
	"fmt"
	"runtime"

	"github.com/jacentio/regtree/hive"
)

// Root is only available on Windows.
func Root(name string) (hive.Key, error) {
	return nil, fmt.Errorf("%w: windows registry on %s", hive.ErrUnsupported, runtime.GOOS)
}
