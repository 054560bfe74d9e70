package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/regtree/pathstore"
)

// NewReadCommand creates the read command.
func NewReadCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <path> <param>",
		Short: "Print a parameter",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			path, param := args[0], args[1]
			return rootOpts.withStore(cmd, func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error {
				v, err := s.Read(ctx, path, param)
				if err != nil {
					return f.Fail(err)
				}
				if f.Format == "json" {
					return f.Success(valueResult(s, path, param, v))
				}
				if f.Verbose {
					fmt.Fprintf(f.Writer, "%s (%s)\n", v, v.Kind())
					return nil
				}
				fmt.Fprintln(f.Writer, v)
				return nil
			})
		},
	}
	return cmd
}
