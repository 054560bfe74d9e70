package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/regtree/pathstore"
)

// CountResult is the payload of the count command.
type CountResult struct {
	Path    string `json:"path"`
	Values  int    `json:"values"`
	SubKeys int    `json:"subkeys"`
}

// NewCountCommand creates the count command.
func NewCountCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count [path]",
		Short: "Count the parameters and subkeys of a key",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error {
				values, err := s.GetValueCount(ctx, path)
				if err != nil {
					return f.Fail(err)
				}
				subkeys, err := s.GetSubKeyCount(ctx, path)
				if err != nil {
					return f.Fail(err)
				}

				res := CountResult{Path: displayName(s, path), Values: values, SubKeys: subkeys}
				if f.Format == "json" {
					return f.Success(res)
				}
				fmt.Fprintf(f.Writer, "values: %d\nsubkeys: %d\n", res.Values, res.SubKeys)
				return nil
			})
		},
	}
	return cmd
}
