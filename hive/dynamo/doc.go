// Package dynamo provides a hive.Key backend stored in two DynamoDB tables.
//
// # Tables
//
// The sections table (pk, sk) holds one item per section, keyed by its folded
// path, and the parameters of each section:
//
//	{pk: "S#software\acme", sk: "#SECTION", name: "Acme", gen: "<uuid>", parent_gen: "<uuid>", ...}
//	{pk: "G#<gen>",         sk: "V#version", name: "Version", kind: 1, data: <bytes>}
//
// Every section gets a fresh generation id when it is created. Parameters and
// relationship records are partitioned by generation, so a section that is deleted
// and re-created under the same path starts empty even while a deferred purge of
// its predecessor is still running.
//
// The relationship table (pk, child_ref) lists the children of each section:
//
//	{pk: "C#<parent gen>#00", child_ref: "acme", child_name: "Acme", child_pk: "S#software\acme", child_gen: "<gen>"}
//
// With NumShards > 1 children are spread over several partitions by hashing the
// folded child name. Counting or listing children then fans out over all shards
// concurrently.
//
// # Usage
//
//	cfg, _ := config.LoadDefaultConfig(ctx)
//	client := dynamodb.NewFromConfig(cfg)
//	h := dynamo.New(client, dynamo.DefaultConfig())
//	root, err := h.Root(ctx, hive.CurrentUser)
//
// # Deletes
//
// By default a tree delete walks the subtree and removes every item before
// returning. With DeferredTreeDelete only the section item and its relationship
// record are removed; the stream package's handler purges the rest when the
// REMOVE event arrives. The sections table needs a stream with OLD_IMAGE for that.
package dynamo
