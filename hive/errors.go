package hive

import "errors"

var (
	// ErrInvalidPath is returned when a section path is malformed (a segment is too long,
	// or the path addresses something that cannot be operated on).
	ErrInvalidPath = errors.New("hive: invalid path")

	// ErrInvalidName is returned when a parameter name is malformed.
	ErrInvalidName = errors.New("hive: invalid value name")

	// ErrInvalidOption is returned for a CreateOption outside the known set.
	ErrInvalidOption = errors.New("hive: invalid create option")

	// ErrUnsupportedType is returned when a Go value has no registry representation.
	ErrUnsupportedType = errors.New("hive: unsupported value type")

	// ErrReadOnly is returned when writing through a handle opened read-only.
	ErrReadOnly = errors.New("hive: key is not writable")

	// ErrAccessDenied is returned when the store refuses access to a section.
	ErrAccessDenied = errors.New("hive: access denied")

	// ErrKeyClosed is returned when a handle is used after Close.
	ErrKeyClosed = errors.New("hive: key is closed")

	// ErrKeyDeleted is returned when a handle refers to a section that has been deleted.
	ErrKeyDeleted = errors.New("hive: key has been marked for deletion")

	// ErrKeyNotFound is returned when a section does not exist.
	ErrKeyNotFound = errors.New("hive: key not found")

	// ErrValueNotFound is returned when a parameter does not exist.
	ErrValueNotFound = errors.New("hive: value not found")

	// ErrHasSubKeys is returned by a non-recursive delete of a section with children.
	ErrHasSubKeys = errors.New("hive: key has subkeys")

	// ErrChildMustBeVolatile is returned when creating a non-volatile section below a volatile one.
	ErrChildMustBeVolatile = errors.New("hive: cannot create a stable subkey under a volatile parent key")

	// ErrUnsupported is returned when the backend cannot honour a request.
	ErrUnsupported = errors.New("hive: operation not supported by backend")
)
