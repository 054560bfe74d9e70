package pathstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/jacentio/regtree/hive"
)

// Store reads and writes parameters by path below a fixed root section.
// It adds no locking of its own; concurrency guarantees are the backend's.
type Store struct {
	root    hive.Key
	owned   io.Closer
	logger  *zap.Logger
	metrics *metrics
}

// New creates a Store. Without WithRoot it opens the platform default root,
// which Close releases again.
func New(opts ...Option) (*Store, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.rootSet && o.root == nil {
		return nil, ErrNilRoot
	}

	s := &Store{
		root:   o.root,
		logger: o.logger,
	}
	if s.logger == nil {
		s.logger = zap.NewNop()
	}
	if o.registry != nil {
		s.metrics = newMetrics(o.registry)
	}

	if !o.rootSet {
		root, closer, err := defaultRoot(context.Background())
		if err != nil {
			return nil, fmt.Errorf("pathstore: open default root: %w", err)
		}
		s.root = root
		s.owned = closer
	}

	s.logger.Debug("path store ready", zap.String("root", s.root.Name()))
	return s, nil
}

// Root returns the section all paths are resolved against.
func (s *Store) Root() hive.Key {
	return s.root
}

// Close releases the default root if New opened it. A root passed with WithRoot is left open.
func (s *Store) Close() error {
	if s.owned == nil {
		return nil
	}
	err := errors.Join(s.root.Close(), s.owned.Close())
	s.owned = nil
	return err
}

// PreparePath converts "/" separators to "\" and trims separators from both ends.
// Empty segments are left in place; backends skip them.
func PreparePath(path string) string {
	return strings.Trim(strings.ReplaceAll(path, "/", hive.Separator), hive.Separator)
}

// run wraps one operation with logging, metrics and error context.
// param is nil for operations on a section.
func (s *Store) run(op, path string, param *string, fn func() error) error {
	start := time.Now()
	err := fn()
	s.metrics.observe(op, start, err)

	fields := []zap.Field{
		zap.String("op", op),
		zap.String("path", path),
		zap.Duration("elapsed", time.Since(start)),
	}
	if param != nil {
		fields = append(fields, zap.String("param", *param))
	}
	if err != nil {
		s.logger.Debug("path store operation failed", append(fields, zap.Error(err))...)
		if param != nil {
			return fmt.Errorf("pathstore: %s %q %q: %w", op, path, *param, err)
		}
		return fmt.Errorf("pathstore: %s %q: %w", op, path, err)
	}
	s.logger.Debug("path store operation", fields...)
	return nil
}

// open opens the section at a prepared path, mapping not-found to hive.ErrKeyNotFound.
func (s *Store) open(ctx context.Context, path string, writable bool) (hive.Key, error) {
	k, found, err := s.root.OpenSubKey(ctx, path, writable)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, hive.ErrKeyNotFound
	}
	return k, nil
}

// Write sets param under path to value, creating missing sections. See WriteWithOptions.
func (s *Store) Write(ctx context.Context, path, param string, value any) error {
	return s.WriteWithOptions(ctx, path, param, value, DefaultWriteOptions())
}

// WriteWithOptions sets param under path to value, creating missing sections with opts.
// value may be a hive.Value or any Go value hive.ValueOf accepts.
func (s *Store) WriteWithOptions(ctx context.Context, path, param string, value any, opts WriteOptions) error {
	path = PreparePath(path)
	return s.run("write", path, &param, func() error {
		if err := opts.Create.Validate(); err != nil {
			return err
		}
		v, err := hive.ValueOf(value)
		if err != nil {
			return err
		}

		k, err := s.root.CreateSubKey(ctx, path, hive.CreateOptions{Writable: opts.Writable, Option: opts.Create})
		if err != nil {
			return err
		}
		defer k.Close()

		return k.SetValue(ctx, param, v)
	})
}

// Read returns the value of param under path.
func (s *Store) Read(ctx context.Context, path, param string) (hive.Value, error) {
	path = PreparePath(path)
	var v hive.Value
	err := s.run("read", path, &param, func() error {
		k, err := s.open(ctx, path, false)
		if err != nil {
			return err
		}
		defer k.Close()

		got, found, err := k.GetValue(ctx, param)
		if err != nil {
			return err
		}
		if !found {
			return hive.ErrValueNotFound
		}
		v = got
		return nil
	})
	return v, err
}

// DeleteValue removes param from the section at path.
func (s *Store) DeleteValue(ctx context.Context, path, param string, opts DeleteValueOptions) error {
	path = PreparePath(path)
	return s.run("delete value", path, &param, func() error {
		k, err := s.open(ctx, path, true)
		if errors.Is(err, hive.ErrKeyNotFound) && !opts.FailIfMissing {
			return nil
		}
		if err != nil {
			return err
		}
		defer k.Close()

		err = k.DeleteValue(ctx, param)
		if errors.Is(err, hive.ErrValueNotFound) && !opts.FailIfMissing {
			return nil
		}
		return err
	})
}

// DeleteKey removes the section at path. The root itself cannot be deleted.
func (s *Store) DeleteKey(ctx context.Context, path string, opts DeleteKeyOptions) error {
	path = PreparePath(path)
	return s.run("delete key", path, nil, func() error {
		if path == "" {
			return fmt.Errorf("%w: cannot delete the root", hive.ErrInvalidPath)
		}

		var err error
		if opts.Recursive {
			err = s.root.DeleteSubKeyTree(ctx, path)
		} else {
			err = s.root.DeleteSubKey(ctx, path)
		}
		if errors.Is(err, hive.ErrKeyNotFound) && !opts.FailIfMissing {
			return nil
		}
		return err
	})
}

// GetValueCount returns the number of parameters of the section at path.
func (s *Store) GetValueCount(ctx context.Context, path string) (int, error) {
	return s.count(ctx, "count values", path, hive.Key.ValueCount)
}

// GetSubKeyCount returns the number of direct subsections of the section at path.
func (s *Store) GetSubKeyCount(ctx context.Context, path string) (int, error) {
	return s.count(ctx, "count subkeys", path, hive.Key.SubKeyCount)
}

// ValueCount returns the number of parameters of the root section.
func (s *Store) ValueCount(ctx context.Context) (int, error) {
	return s.GetValueCount(ctx, "")
}

// SubKeyCount returns the number of direct subsections of the root section.
func (s *Store) SubKeyCount(ctx context.Context) (int, error) {
	return s.GetSubKeyCount(ctx, "")
}

func (s *Store) count(ctx context.Context, op, path string, fn func(hive.Key, context.Context) (int, error)) (int, error) {
	path = PreparePath(path)
	var n int
	err := s.run(op, path, nil, func() error {
		k, err := s.open(ctx, path, false)
		if err != nil {
			return err
		}
		defer k.Close()

		n, err = fn(k, ctx)
		return err
	})
	return n, err
}

// GetValueNames returns the parameter names of the section at path, ordered case-insensitively.
func (s *Store) GetValueNames(ctx context.Context, path string) ([]string, error) {
	return s.names(ctx, "list values", path, hive.Key.ValueNames)
}

// GetSubKeyNames returns the direct subsection names of the section at path, ordered case-insensitively.
func (s *Store) GetSubKeyNames(ctx context.Context, path string) ([]string, error) {
	return s.names(ctx, "list subkeys", path, hive.Key.SubKeyNames)
}

func (s *Store) names(ctx context.Context, op, path string, fn func(hive.Key, context.Context) ([]string, error)) ([]string, error) {
	path = PreparePath(path)
	var names []string
	err := s.run(op, path, nil, func() error {
		k, err := s.open(ctx, path, false)
		if err != nil {
			return err
		}
		defer k.Close()

		names, err = fn(k, ctx)
		return err
	})
	return names, err
}
