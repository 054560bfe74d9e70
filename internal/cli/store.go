package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/common/expfmt"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/hive/dynamo"
	"github.com/jacentio/regtree/hive/memory"
	"github.com/jacentio/regtree/hive/sqlite"
	"github.com/jacentio/regtree/hive/winreg"
	"github.com/jacentio/regtree/internal/config"
	"github.com/jacentio/regtree/pathstore"
)

// openRoot opens HKEY_CURRENT_USER of the selected backend. release frees
// whatever the backend holds besides the root handle.
func (o *RootOptions) openRoot(ctx context.Context) (root hive.Key, release func() error, err error) {
	nop := func() error { return nil }

	switch o.Backend {
	case config.BackendMemory:
		return memory.NewRoot(hive.CurrentUser), nop, nil

	case config.BackendSQLite:
		path := o.DB
		if path == "" {
			if path, err = pathstore.DefaultDBPath(); err != nil {
				return nil, nil, err
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
				return nil, nil, fmt.Errorf("create %s: %w", filepath.Dir(path), err)
			}
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
		return root, h.Close, nil

	case config.BackendDynamoDB:
		h, err := o.openDynamo(ctx)
		if err != nil {
			return nil, nil, err
		}
		root, err := h.Root(ctx, hive.CurrentUser)
		if err != nil {
			return nil, nil, err
		}
		return root, nop, nil

	case config.BackendWindows:
		root, err := winreg.Root(hive.CurrentUser)
		if err != nil {
			return nil, nil, err
		}
		return root, nop, nil

	default:
		return nil, nil, config.ValidateBackend(o.Backend)
	}
}

func (o *RootOptions) dynamoClient(ctx context.Context) (*dynamodb.Client, error) {
	return dynamo.NewClient(ctx, dynamo.ClientOptions{
		Profile:  o.config.Dynamo.Profile,
		Endpoint: o.config.Dynamo.Endpoint,
	})
}

func (o *RootOptions) openDynamo(ctx context.Context) (*dynamo.Hive, error) {
	client, err := o.dynamoClient(ctx)
	if err != nil {
		return nil, err
	}
	return dynamo.New(client, o.dynamoConfig()), nil
}

func (o *RootOptions) dynamoConfig() dynamo.Config {
	return dynamo.Config{
		Table:              o.config.Dynamo.Table,
		RelationshipTable:  o.config.Dynamo.RelationshipTable,
		NumShards:          o.config.Dynamo.Shards,
		DeferredTreeDelete: o.config.Dynamo.DeferredDelete,
	}
}

// withStore opens the store, runs fn and releases the store again.
// A store that cannot be opened is a command error.
func (o *RootOptions) withStore(cmd *cobra.Command, fn func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error) error {
	ctx := cmd.Context()
	f := o.formatter(cmd)

	root, release, err := o.openRoot(ctx)
	if err != nil {
		return f.Usage(ErrCodeOpenStore, fmt.Errorf("open %s store: %w", o.Backend, err))
	}
	defer func() {
		if err := errors.Join(root.Close(), release()); err != nil {
			o.logger.Warn("failed to close store", zap.String("backend", o.Backend), zap.Error(err))
		}
	}()

	reg := prometheus.NewRegistry()
	s, err := pathstore.New(
		pathstore.WithRoot(root),
		pathstore.WithLogger(o.logger),
		pathstore.WithMetrics(reg),
	)
	if err != nil {
		return f.Usage(ErrCodeOpenStore, err)
	}
	f.VerboseLog("Using %s store at %s", o.Backend, root.Name())

	err = fn(ctx, s, f)
	if f.Verbose {
		o.dumpMetrics(f, reg)
	}
	return err
}

// operationsMetric is the counter dumped after each command in verbose mode.
const operationsMetric = "regtree_operations_total"

// dumpMetrics writes the operation counters in the Prometheus text format.
func (o *RootOptions) dumpMetrics(f *OutputFormatter, reg *prometheus.Registry) {
	families, err := reg.Gather()
	if err != nil {
		o.logger.Warn("failed to gather metrics", zap.Error(err))
		return
	}
	for _, mf := range families {
		if mf.GetName() != operationsMetric {
			continue
		}
		if _, err := expfmt.MetricFamilyToText(f.GetErrWriter(), mf); err != nil {
			o.logger.Warn("failed to write metrics", zap.Error(err))
		}
	}
}
