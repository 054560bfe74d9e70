package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/pathstore"
)

// WriteOptions holds flags for the write command.
type WriteOptions struct {
	Type     string
	ReadOnly bool
	Volatile bool
}

// NewWriteCommand creates the write command.
func NewWriteCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WriteOptions{}

	cmd := &cobra.Command{
		Use:   "write <path> <param> [value]...",
		Short: "Write a parameter, creating missing keys",
		Long: `Write a parameter below path, creating every missing key on the way.

Integers accept decimal, 0x hex and negative values. Binary data is given as hex.
Multi-string values take one argument per entry, or none for an empty list.
Every other type takes exactly one value. An empty param writes the key's
default value.`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWrite(cmd, rootOpts, opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.Type, "type", "t", "string", "value type (string|expand|dword|qword|binary|multi)")
	cmd.Flags().BoolVar(&opts.ReadOnly, "readonly", false, "open the key read-only (the write then fails)")
	cmd.Flags().BoolVar(&opts.Volatile, "volatile", false, "create missing keys as volatile")

	return cmd
}

func runWrite(cmd *cobra.Command, rootOpts *RootOptions, opts *WriteOptions, args []string) error {
	f := rootOpts.formatter(cmd)

	kind, err := hive.ParseKind(opts.Type)
	if err != nil {
		return f.Usage(ErrCodeBadUsage, err)
	}
	value, err := parseValue(kind, args[2:])
	if err != nil {
		return f.Usage(ErrCodeBadUsage, err)
	}

	wopts := pathstore.DefaultWriteOptions()
	wopts.Writable = !opts.ReadOnly
	if opts.Volatile {
		wopts.Create = hive.CreateVolatile
	}

	path, param := args[0], args[1]
	return rootOpts.withStore(cmd, func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error {
		if err := s.WriteWithOptions(ctx, path, param, value, wopts); err != nil {
			return f.Fail(err)
		}
		f.VerboseLog("Wrote %s %q (%s)", displayName(s, path), param, value.Kind())
		if f.Format == "json" {
			return f.Success(valueResult(s, path, param, value))
		}
		return nil
	})
}

// ValueResult is the JSON payload for a single parameter.
type ValueResult struct {
	Path  string `json:"path"`
	Param string `json:"param"`
	Type  string `json:"type"`
	Data  any    `json:"data"`
}

func valueResult(s *pathstore.Store, path, param string, v hive.Value) ValueResult {
	return ValueResult{
		Path:  displayName(s, path),
		Param: param,
		Type:  v.Kind().String(),
		Data:  exportData(v),
	}
}
