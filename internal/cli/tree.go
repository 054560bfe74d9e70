package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/jacentio/regtree/pathstore"
)

// NewTreeCommand creates the tree command.
func NewTreeCommand(rootOpts *RootOptions) *cobra.Command {
	var depth int

	cmd := &cobra.Command{
		Use:   "tree [path]",
		Short: "List a key with its parameters and subkeys",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = pathstore.PreparePath(args[0])
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error {
				n, err := readNode(ctx, s, path, displayName(s, path), depth)
				if err != nil {
					return f.Fail(err)
				}
				if f.Format == "json" {
					return f.Success(n)
				}
				printTree(f.Writer, n, 0)
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&depth, "depth", "d", -1, "levels of subkeys to show (-1 for all)")
	return cmd
}
