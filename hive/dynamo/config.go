package dynamo

import "github.com/jacentio/regtree/internal/shard"

const (
	defaultTable             = "regtree_sections"
	defaultRelationshipTable = "regtree_relationships"
)

// Config holds configuration for the DynamoDB hive.
type Config struct {
	// Table holds section and parameter items (pk, sk).
	// Default: "regtree_sections"
	Table string

	// RelationshipTable holds parent/child records (pk, child_ref).
	// Default: "regtree_relationships"
	RelationshipTable string

	// NumShards is the number of relationship shards per section.
	// Higher values spread writes to wide sections across partitions but
	// make child counts and listings fan out over more queries.
	// Default: 1 (no sharding, single query)
	// Max: 256
	NumShards int

	// DeferredTreeDelete removes only the section item and its relationship
	// record on delete. Parameters and descendants are purged by the stream
	// handler once the removal shows up on the table's stream.
	DeferredTreeDelete bool
}

// DefaultConfig returns sensible defaults for small trees.
func DefaultConfig() Config {
	return Config{
		Table:             defaultTable,
		RelationshipTable: defaultRelationshipTable,
		NumShards:         1,
	}
}

// validate ensures config values are within acceptable bounds.
func (c *Config) validate() {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.RelationshipTable == "" {
		c.RelationshipTable = defaultRelationshipTable
	}
	if c.NumShards < 1 {
		c.NumShards = 1
	}
	if c.NumShards > shard.MaxShards {
		c.NumShards = shard.MaxShards
	}
}
