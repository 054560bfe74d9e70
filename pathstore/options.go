package pathstore

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/jacentio/regtree/hive"
)

// ErrNilRoot is returned when WithRoot is given a nil key.
var ErrNilRoot = errors.New("pathstore: root key is nil")

type options struct {
	root     hive.Key
	rootSet  bool
	logger   *zap.Logger
	registry prometheus.Registerer
}

// Option configures a Store.
type Option func(*options)

// WithRoot binds the store to root instead of the platform default.
// The store does not take ownership: Close leaves root open.
func WithRoot(root hive.Key) Option {
	return func(o *options) {
		o.root = root
		o.rootSet = true
	}
}

// WithLogger sets the logger. Operations are logged at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithMetrics registers operation counters and latency histograms with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registry = reg
	}
}

// WriteOptions configures Write.
type WriteOptions struct {
	// Writable opens the section for writing. A section created read-only
	// is kept, but the parameter write then fails with hive.ErrReadOnly.
	Writable bool

	// Create applies when the section is created; existing sections keep theirs.
	Create hive.CreateOption
}

// DefaultWriteOptions returns a writable, non-volatile write.
func DefaultWriteOptions() WriteOptions {
	return WriteOptions{
		Writable: true,
		Create:   hive.CreateNone,
	}
}

// DeleteValueOptions configures DeleteValue. The zero value ignores missing targets.
type DeleteValueOptions struct {
	// FailIfMissing reports hive.ErrKeyNotFound or hive.ErrValueNotFound
	// instead of treating a missing section or parameter as a no-op.
	FailIfMissing bool
}

// DeleteKeyOptions configures DeleteKey. The zero value deletes a leaf and ignores missing targets.
type DeleteKeyOptions struct {
	// Recursive deletes the section together with its whole subtree.
	// Without it, a section with children fails with hive.ErrHasSubKeys.
	Recursive bool

	// FailIfMissing reports hive.ErrKeyNotFound for a missing section.
	FailIfMissing bool
}
