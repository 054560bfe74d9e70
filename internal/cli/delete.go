package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jacentio/regtree/pathstore"
)

// NewDeleteValueCommand creates the delete-value command.
func NewDeleteValueCommand(rootOpts *RootOptions) *cobra.Command {
	var strict bool

	cmd := &cobra.Command{
		Use:   "delete-value <path> <param>",
		Short: "Delete a parameter",
		Long: `Delete a parameter. A missing key or parameter is not an error
unless --strict is given.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, param := args[0], args[1]
			return rootOpts.withStore(cmd, func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error {
				err := s.DeleteValue(ctx, path, param, pathstore.DeleteValueOptions{FailIfMissing: strict})
				if err != nil {
					return f.Fail(err)
				}
				f.VerboseLog("Deleted %s %q", displayName(s, path), param)
				if f.Format == "json" {
					return f.Success(map[string]string{"path": displayName(s, path), "param": param})
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&strict, "strict", false, "fail if the key or parameter does not exist")
	return cmd
}

// NewDeleteKeyCommand creates the delete-key command.
func NewDeleteKeyCommand(rootOpts *RootOptions) *cobra.Command {
	var opts pathstore.DeleteKeyOptions

	cmd := &cobra.Command{
		Use:   "delete-key <path>",
		Short: "Delete a key",
		Long: `Delete a key. Keys with subkeys need --recursive. A missing key is
not an error unless --strict is given. The root cannot be deleted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]
			return rootOpts.withStore(cmd, func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error {
				if err := s.DeleteKey(ctx, path, opts); err != nil {
					return f.Fail(err)
				}
				f.VerboseLog("Deleted %s", displayName(s, path))
				if f.Format == "json" {
					return f.Success(map[string]string{"path": displayName(s, path)})
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&opts.Recursive, "recursive", "r", false, "delete the whole subtree")
	cmd.Flags().BoolVar(&opts.FailIfMissing, "strict", false, "fail if the key does not exist")
	return cmd
}
