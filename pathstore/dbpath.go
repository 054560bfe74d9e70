package pathstore

import (
	"os"
	"path/filepath"
)

// DefaultDBPath is the SQLite file backing the default root outside Windows.
func DefaultDBPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "regtree", "hive.db"), nil
}
