package dynamo

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/regtree/internal/shard"
)

// PurgeSection removes the parameters and the direct children of a deleted section
// generation. Each removed child produces its own stream event, which continues the
// purge one level down. Safe to call more than once.
func (h *Hive) PurgeSection(ctx context.Context, gen string) error {
	return h.purge(ctx, gen, false)
}

// purge deletes everything stored under gen. With recursive set, it descends into the
// removed children instead of leaving them to the stream handler.
func (h *Hive) purge(ctx context.Context, gen string, recursive bool) error {
	values, err := h.queryValues(ctx, gen)
	if err != nil {
		return fmt.Errorf("query values: %w", err)
	}
	for _, item := range values {
		_, err := h.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(h.config.Table),
			Key: map[string]types.AttributeValue{
				"pk": item["pk"],
				"sk": item["sk"],
			},
		})
		if err != nil {
			return fmt.Errorf("delete value: %w", err)
		}
	}

	children, err := h.queryChildren(ctx, gen)
	if err != nil {
		return fmt.Errorf("query children: %w", err)
	}
	for _, rel := range children {
		_, err := h.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName:           aws.String(h.config.Table),
			Key:                 sectionKey(rel.ChildPK),
			ConditionExpression: aws.String(condChildOf),
			ExpressionAttributeNames: map[string]string{
				"#pgen": "parent_gen",
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pgen": &types.AttributeValueMemberS{Value: gen},
			},
		})
		// Condition failure: already removed, or the path now belongs to a newer section
		if err != nil && !isConditionFailed(err) {
			return fmt.Errorf("delete section %q: %w", rel.ChildName, err)
		}

		_, err = h.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
			TableName: aws.String(h.config.RelationshipTable),
			Key: map[string]types.AttributeValue{
				"pk":        &types.AttributeValueMemberS{Value: rel.PK},
				"child_ref": &types.AttributeValueMemberS{Value: rel.ChildRef},
			},
		})
		if err != nil {
			return fmt.Errorf("delete relationship %q: %w", rel.ChildName, err)
		}

		// The relationship names the child generation, so the old subtree is
		// reclaimed even when a newer section has taken over the path.
		if !recursive || rel.ChildGen == "" {
			continue
		}
		if err := h.purge(ctx, rel.ChildGen, true); err != nil {
			return err
		}
	}
	return nil
}

func (h *Hive) valuesQuery(gen string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(h.config.Table),
		KeyConditionExpression: aws.String("pk = :pk AND begins_with(sk, :prefix)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk":     &types.AttributeValueMemberS{Value: valuesPK(gen)},
			":prefix": &types.AttributeValueMemberS{Value: valuePrefix},
		},
		ConsistentRead: aws.Bool(true),
	}
}

// queryValues returns the raw parameter items of a generation, ordered by folded name.
func (h *Hive) queryValues(ctx context.Context, gen string) ([]map[string]types.AttributeValue, error) {
	var items []map[string]types.AttributeValue
	paginator := dynamodb.NewQueryPaginator(h.client, h.valuesQuery(gen))
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)
	}
	return items, nil
}

func (h *Hive) countValues(ctx context.Context, gen string) (int, error) {
	input := h.valuesQuery(gen)
	input.Select = types.SelectCount

	total := 0
	paginator := dynamodb.NewQueryPaginator(h.client, input)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, err
		}
		total += int(page.Count)
	}
	return total, nil
}

func (h *Hive) shardQuery(shardPK string) *dynamodb.QueryInput {
	return &dynamodb.QueryInput{
		TableName:              aws.String(h.config.RelationshipTable),
		KeyConditionExpression: aws.String("pk = :pk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: shardPK},
		},
		ConsistentRead: aws.Bool(true),
	}
}

// forEachShard runs fn once per relationship shard of gen. The single shard case
// runs inline; otherwise shards are queried concurrently and the first error wins.
func (h *Hive) forEachShard(ctx context.Context, gen string, fn func(ctx context.Context, shardPK string) error) error {
	numShards := h.config.NumShards

	// Fast path for single shard (default)
	if numShards <= 1 {
		return fn(ctx, shard.ShardPK(gen, 0))
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, numShards)

	for shardNum := 0; shardNum < numShards; shardNum++ {
		wg.Add(1)
		go func(shardNum int) {
			defer wg.Done()
			if err := fn(ctx, shard.ShardPK(gen, shardNum)); err != nil {
				errs <- fmt.Errorf("shard %02x: %w", shardNum, err)
				cancel()
			}
		}(shardNum)
	}

	wg.Wait()
	close(errs)

	// Buffered, so the first error sent is the first received
	return <-errs
}

// queryChildren returns the relationship records of a generation, ordered by folded name.
func (h *Hive) queryChildren(ctx context.Context, gen string) ([]relationshipItem, error) {
	var mu sync.Mutex
	var all []relationshipItem

	err := h.forEachShard(ctx, gen, func(ctx context.Context, shardPK string) error {
		var children []relationshipItem
		paginator := dynamodb.NewQueryPaginator(h.client, h.shardQuery(shardPK))
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			var items []relationshipItem
			if err := attributevalue.UnmarshalListOfMaps(page.Items, &items); err != nil {
				return fmt.Errorf("unmarshal relationships: %w", err)
			}
			children = append(children, items...)
		}

		mu.Lock()
		all = append(all, children...)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(all, func(i, j int) bool { return all[i].ChildRef < all[j].ChildRef })
	return all, nil
}

func (h *Hive) countChildren(ctx context.Context, gen string) (int, error) {
	var mu sync.Mutex
	total := 0

	err := h.forEachShard(ctx, gen, func(ctx context.Context, shardPK string) error {
		input := h.shardQuery(shardPK)
		input.Select = types.SelectCount

		n := 0
		paginator := dynamodb.NewQueryPaginator(h.client, input)
		for paginator.HasMorePages() {
			page, err := paginator.NextPage(ctx)
			if err != nil {
				return err
			}
			n += int(page.Count)
		}

		mu.Lock()
		total += n
		mu.Unlock()
		return nil
	})
	if err != nil {
		return 0, err
	}
	return total, nil
}
