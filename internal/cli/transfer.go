package cli

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jacentio/regtree/pathstore"
)

// NewExportCommand creates the export command.
func NewExportCommand(rootOpts *RootOptions) *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export [path]",
		Short: "Export a key and its subtree as YAML",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = pathstore.PreparePath(args[0])
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error {
				name := lastSegment(path)
				if path == "" {
					name = s.Root().Name()
				}
				n, err := readNode(ctx, s, path, name, -1)
				if err != nil {
					return f.Fail(err)
				}

				w := f.Writer
				if output != "" && output != "-" {
					file, err := os.Create(output)
					if err != nil {
						return f.Usage(ErrCodeBadUsage, err)
					}
					defer file.Close()
					w = file
				}
				if err := encodeYAML(w, n); err != nil {
					return f.Fail(fmt.Errorf("write export: %w", err))
				}
				f.VerboseLog("Exported %s", displayName(s, path))
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	return cmd
}

// ImportResult is the JSON payload of the import command.
type ImportResult struct {
	Path    string `json:"path"`
	Written int    `json:"written"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file> [path]",
		Short: "Import a YAML export below a key",
		Long: `Import a file written by export. The exported key's contents are written
below path (the root if omitted); the exported key name itself is not used.
Use "-" to read from stdin.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)

			var r io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				file, err := os.Open(args[0])
				if err != nil {
					return f.Usage(ErrCodeBadUsage, err)
				}
				defer file.Close()
				r = file
			}
			var n Node
			if err := yaml.NewDecoder(r).Decode(&n); err != nil {
				return f.Usage(ErrCodeBadUsage, fmt.Errorf("parse %s: %w", args[0], err))
			}

			path := ""
			if len(args) == 2 {
				path = pathstore.PreparePath(args[1])
			}
			return rootOpts.withStore(cmd, func(ctx context.Context, s *pathstore.Store, f *OutputFormatter) error {
				written, err := writeNode(ctx, s, path, n)
				if err != nil {
					return f.Fail(err)
				}
				res := ImportResult{Path: displayName(s, path), Written: written}
				if f.Format == "json" {
					return f.Success(res)
				}
				f.VerboseLog("Imported %d parameter(s) into %s", res.Written, res.Path)
				return nil
			})
		},
	}
	return cmd
}

func encodeYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}
