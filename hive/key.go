package hive

import (
	"context"
	"fmt"
)

// Well-known root names.
const (
	CurrentUser  = "HKEY_CURRENT_USER"
	LocalMachine = "HKEY_LOCAL_MACHINE"
	ClassesRoot  = "HKEY_CLASSES_ROOT"
	Users        = "HKEY_USERS"
)

// CreateOption selects how a section is created.
type CreateOption int

const (
	// CreateNone creates a normal, persistent section.
	CreateNone CreateOption = iota

	// CreateVolatile creates a section that does not survive a restart of the store.
	CreateVolatile

	// CreateBackupRestore opens the section with backup/restore semantics, bypassing
	// access checks for callers holding the backup privilege.
	CreateBackupRestore
)

// String returns the option name.
func (o CreateOption) String() string {
	switch o {
	case CreateNone:
		return "none"
	case CreateVolatile:
		return "volatile"
	case CreateBackupRestore:
		return "backup-restore"
	default:
		return fmt.Sprintf("CreateOption(%d)", int(o))
	}
}

// Validate returns ErrInvalidOption for values outside the known set.
func (o CreateOption) Validate() error {
	switch o {
	case CreateNone, CreateVolatile, CreateBackupRestore:
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrInvalidOption, int(o))
	}
}

// CreateOptions configures Key.CreateSubKey.
type CreateOptions struct {
	// Writable opens the returned handle for writing.
	Writable bool

	// Option selects the creation mode.
	Option CreateOption
}

// Key is an open handle to a section of a hierarchical store.
//
// Paths passed to Key methods are relative to the handle and use Separator between
// segments. Names are case-insensitive.
type Key interface {
	// Name returns the full name of the section, starting at the store root.
	Name() string

	// CreateSubKey opens the section at path, creating it and any missing ancestors.
	CreateSubKey(ctx context.Context, path string, opts CreateOptions) (Key, error)

	// OpenSubKey opens an existing section. found is false when the section does not exist.
	// An empty path opens the section itself.
	OpenSubKey(ctx context.Context, path string, writable bool) (key Key, found bool, err error)

	// GetValue returns the named parameter. found is false when it does not exist.
	GetValue(ctx context.Context, name string) (value Value, found bool, err error)

	// SetValue creates or replaces the named parameter.
	SetValue(ctx context.Context, name string, value Value) error

	// DeleteValue removes the named parameter, returning ErrValueNotFound if it is absent.
	DeleteValue(ctx context.Context, name string) error

	// DeleteSubKey removes an empty child section. It returns ErrKeyNotFound if the
	// section is absent and ErrHasSubKeys if it still has children.
	DeleteSubKey(ctx context.Context, path string) error

	// DeleteSubKeyTree removes a child section and its entire subtree.
	DeleteSubKeyTree(ctx context.Context, path string) error

	// ValueCount returns the number of parameters in the section.
	ValueCount(ctx context.Context) (int, error)

	// SubKeyCount returns the number of immediate child sections.
	SubKeyCount(ctx context.Context) (int, error)

	// ValueNames returns the parameter names in the section.
	ValueNames(ctx context.Context) ([]string, error)

	// SubKeyNames returns the names of the immediate child sections.
	SubKeyNames(ctx context.Context) ([]string, error)

	// Close releases the handle. Further calls fail with ErrKeyClosed.
	Close() error
}
