// Package shard provides partition key generation for the DynamoDB hive tables.
package shard

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash/fnv"
)

// MaxShards bounds the relationship fan-out.
const MaxShards = 256

// RelationshipPK computes the sharded partition key for a parent/child relationship record.
// With numShards=1, all children of a section go to shard "00".
// With numShards>1, children are distributed across shards based on the folded child name.
func RelationshipPK(parentRef, childRef string, numShards int) string {
	if numShards <= 1 {
		return ShardPK(parentRef, 0)
	}
	h := fnv.New32a()
	h.Write([]byte(childRef))
	return ShardPK(parentRef, int(h.Sum32()%uint32(numShards)))
}

// ShardPK returns the partition key of one relationship shard of a parent.
func ShardPK(parentRef string, shard int) string {
	return fmt.Sprintf("C#%s#%02x", parentRef, shard)
}

// SectionPK returns the partition key holding a section and its parameters.
// Long paths are hashed so the key stays within DynamoDB's 2048-byte limit.
func SectionPK(canonicalPath string) string {
	if len(canonicalPath) <= 1024 {
		return "S#" + canonicalPath
	}
	h := sha256.Sum256([]byte(canonicalPath))
	return "H#" + hex.EncodeToString(h[:16])
}
