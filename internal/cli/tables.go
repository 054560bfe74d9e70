package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jacentio/regtree/hive/dynamo"
	"github.com/jacentio/regtree/internal/config"
)

// NewCreateTablesCommand creates the create-tables command.
func NewCreateTablesCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-tables",
		Short: "Create the DynamoDB tables for the dynamodb backend",
		Long: `Create the sections and relationship tables named by REGTREE_DYNAMO_TABLE and
REGTREE_DYNAMO_RELATIONSHIP_TABLE and wait until they are active. Existing
tables are left alone.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			f := rootOpts.formatter(cmd)
			if rootOpts.Backend != config.BackendDynamoDB {
				return f.Usage(ErrCodeBadUsage, fmt.Errorf("create-tables needs --backend %s", config.BackendDynamoDB))
			}

			client, err := rootOpts.dynamoClient(cmd.Context())
			if err != nil {
				return f.Usage(ErrCodeOpenStore, err)
			}
			cfg := rootOpts.dynamoConfig()
			if err := dynamo.CreateTables(cmd.Context(), client, cfg); err != nil {
				return f.Fail(err)
			}
			if f.Format == "json" {
				return f.Success(map[string]string{"table": cfg.Table, "relationship_table": cfg.RelationshipTable})
			}
			fmt.Fprintf(f.Writer, "tables %s and %s are active\n", cfg.Table, cfg.RelationshipTable)
			return nil
		},
	}
	return cmd
}
