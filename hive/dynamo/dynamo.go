package dynamo

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/internal/shard"
)

// API is the subset of the DynamoDB client the hive uses. *dynamodb.Client satisfies it.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

var _ API = (*dynamodb.Client)(nil)

// Hive stores sections in DynamoDB.
type Hive struct {
	client API
	config Config
}

// New creates a new Hive instance.
func New(client API, config Config) *Hive {
	config.validate()
	return &Hive{
		client: client,
		config: config,
	}
}

// Config returns the validated configuration.
func (h *Hive) Config() Config {
	return h.config
}

// Root returns a writable handle to the named root section, creating it on first use.
func (h *Hive) Root(ctx context.Context, name string) (hive.Key, error) {
	segments, err := hive.SplitPath(name)
	if err != nil {
		return nil, err
	}
	if len(segments) != 1 {
		return nil, fmt.Errorf("%w: root name %q", hive.ErrInvalidPath, name)
	}

	folded := hive.Fold(segments[0])
	item := sectionItem{
		PK:        shard.SectionPK(folded),
		SK:        sectionSK,
		Name:      segments[0],
		Path:      segments[0],
		Folded:    folded,
		Gen:       uuid.NewString(),
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal section: %w", err)
	}

	_, err = h.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(h.config.Table),
		Item:                av,
		ConditionExpression: aws.String(condAbsent),
	})
	// Condition failure means the root already exists
	if err != nil && !isConditionFailed(err) {
		return nil, err
	}

	sec, err := h.getSection(ctx, item.PK)
	if err != nil {
		return nil, err
	}
	if sec == nil {
		return nil, fmt.Errorf("%w: root %q", hive.ErrKeyNotFound, name)
	}
	return &key{hive: h, section: *sec, writable: true}, nil
}

// getSection reads a section item, returning nil if it does not exist.
func (h *Hive) getSection(ctx context.Context, pk string) (*sectionItem, error) {
	result, err := h.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(h.config.Table),
		Key:            sectionKey(pk),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	return decodeSection(result.Item)
}

// child returns the live child of parent named segment, or nil.
// Items left behind by a deferred delete belong to an older parent generation and are skipped.
func (h *Hive) child(ctx context.Context, parent *sectionItem, segment string) (*sectionItem, error) {
	item, err := h.getSection(ctx, shard.SectionPK(parent.Folded+hive.Separator+hive.Fold(segment)))
	if err != nil || item == nil {
		return nil, err
	}
	if item.ParentGen != parent.Gen {
		return nil, nil
	}
	return item, nil
}

func (h *Hive) resolve(ctx context.Context, from *sectionItem, segments []string) (*sectionItem, error) {
	cur := from
	for _, s := range segments {
		next, err := h.child(ctx, cur, s)
		if err != nil || next == nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}

func newSection(parent *sectionItem, segment string, volatile bool) sectionItem {
	folded := parent.Folded + hive.Separator + hive.Fold(segment)
	return sectionItem{
		PK:        shard.SectionPK(folded),
		SK:        sectionSK,
		Name:      segment,
		Path:      parent.Path + hive.Separator + segment,
		Folded:    folded,
		Gen:       uuid.NewString(),
		ParentGen: parent.Gen,
		Volatile:  volatile,
		CreatedAt: time.Now().UTC().Format(time.RFC3339),
	}
}

// createSection writes a section and its relationship record in one transaction,
// conditional on the parent still being the same generation.
func (h *Hive) createSection(ctx context.Context, parent *sectionItem, item sectionItem) error {
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("marshal section: %w", err)
	}
	childRef := hive.Fold(item.Name)
	rel, err := attributevalue.MarshalMap(relationshipItem{
		PK:        shard.RelationshipPK(parent.Gen, childRef, h.config.NumShards),
		ChildRef:  childRef,
		ChildName: item.Name,
		ChildPK:   item.PK,
		ChildGen:  item.Gen,
		ParentGen: parent.Gen,
	})
	if err != nil {
		return fmt.Errorf("marshal relationship: %w", err)
	}

	items := []types.TransactWriteItem{
		{ConditionCheck: h.generationCheck(parent)},
		{
			Put: &types.Put{
				TableName:           aws.String(h.config.Table),
				Item:                av,
				ConditionExpression: aws.String(condAbsentOrStale),
				ExpressionAttributeNames: map[string]string{
					"#pgen": "parent_gen",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":pgen": &types.AttributeValueMemberS{Value: parent.Gen},
				},
			},
		},
		{
			Put: &types.Put{
				TableName: aws.String(h.config.RelationshipTable),
				Item:      rel,
			},
		},
	}

	_, err = h.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	return mapCreateTransactionError(err, 0, 1)
}

func (h *Hive) generationCheck(sec *sectionItem) *types.ConditionCheck {
	return &types.ConditionCheck{
		TableName:           aws.String(h.config.Table),
		Key:                 sectionKey(sec.PK),
		ConditionExpression: aws.String(condGeneration),
		ExpressionAttributeNames: map[string]string{
			"#gen": "gen",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":gen": &types.AttributeValueMemberS{Value: sec.Gen},
		},
	}
}

// removeSection deletes a section item and its relationship record.
func (h *Hive) removeSection(ctx context.Context, sec *sectionItem) error {
	items := []types.TransactWriteItem{
		{
			Delete: &types.Delete{
				TableName:           aws.String(h.config.Table),
				Key:                 sectionKey(sec.PK),
				ConditionExpression: aws.String(condGeneration),
				ExpressionAttributeNames: map[string]string{
					"#gen": "gen",
				},
				ExpressionAttributeValues: map[string]types.AttributeValue{
					":gen": &types.AttributeValueMemberS{Value: sec.Gen},
				},
			},
		},
		{
			Delete: &types.Delete{
				TableName: aws.String(h.config.RelationshipTable),
				Key:       relationshipKey(sec.ParentGen, hive.Fold(sec.Name), h.config.NumShards),
			},
		},
	}

	_, err := h.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: items,
	})
	if mapCreateTransactionError(err, 0, -1) == errParentGone {
		return hive.ErrKeyNotFound
	}
	return err
}

// key is a handle to one generation of a section.
type key struct {
	hive     *Hive
	section  sectionItem
	writable bool
	closed   atomic.Bool
}

// alive re-reads the section and fails if the handle's generation is gone.
func (k *key) alive(ctx context.Context) (*sectionItem, error) {
	if k.closed.Load() {
		return nil, hive.ErrKeyClosed
	}
	cur, err := k.hive.getSection(ctx, k.section.PK)
	if err != nil {
		return nil, err
	}
	if cur == nil || cur.Gen != k.section.Gen {
		return nil, hive.ErrKeyDeleted
	}
	return cur, nil
}

func (k *key) Name() string {
	return k.section.Path
}

func (k *key) CreateSubKey(ctx context.Context, path string, opts hive.CreateOptions) (hive.Key, error) {
	if err := opts.Option.Validate(); err != nil {
		return nil, err
	}
	if opts.Option == hive.CreateBackupRestore {
		return nil, fmt.Errorf("%w: %s", hive.ErrUnsupported, opts.Option)
	}
	segments, err := hive.SplitPath(path)
	if err != nil {
		return nil, err
	}

	cur, err := k.alive(ctx)
	if err != nil {
		return nil, err
	}

	for i, s := range segments {
		next, err := k.hive.child(ctx, cur, s)
		if err != nil {
			return nil, err
		}
		if next != nil {
			cur = next
			continue
		}

		if !k.writable {
			return nil, hive.ErrReadOnly
		}
		volatile := opts.Option == hive.CreateVolatile
		if cur.Volatile && !volatile {
			return nil, hive.ErrChildMustBeVolatile
		}

		item := newSection(cur, s, volatile)
		switch err := k.hive.createSection(ctx, cur, item); err {
		case nil:
			cur = &item
		case errSectionExists:
			// Lost a race with another writer; use theirs
			next, err := k.hive.child(ctx, cur, s)
			if err != nil {
				return nil, err
			}
			if next == nil {
				return nil, fmt.Errorf("create %q: %w", s, errSectionExists)
			}
			cur = next
		case errParentGone:
			if i == 0 {
				return nil, hive.ErrKeyDeleted
			}
			return nil, hive.ErrKeyNotFound
		default:
			return nil, err
		}
	}

	return &key{hive: k.hive, section: *cur, writable: opts.Writable}, nil
}

func (k *key) OpenSubKey(ctx context.Context, path string, writable bool) (hive.Key, bool, error) {
	segments, err := hive.SplitPath(path)
	if err != nil {
		return nil, false, err
	}

	cur, err := k.alive(ctx)
	if err != nil {
		return nil, false, err
	}
	target, err := k.hive.resolve(ctx, cur, segments)
	if err != nil {
		return nil, false, err
	}
	if target == nil {
		return nil, false, nil
	}
	return &key{hive: k.hive, section: *target, writable: writable}, true, nil
}

func (k *key) GetValue(ctx context.Context, name string) (hive.Value, bool, error) {
	if err := hive.ValidateValueName(name); err != nil {
		return hive.Value{}, false, err
	}
	cur, err := k.alive(ctx)
	if err != nil {
		return hive.Value{}, false, err
	}

	result, err := k.hive.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(k.hive.config.Table),
		Key:            valueKey(cur.Gen, name),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return hive.Value{}, false, err
	}
	if result.Item == nil {
		return hive.Value{}, false, nil
	}
	_, v, err := decodeValue(result.Item)
	if err != nil {
		return hive.Value{}, false, err
	}
	return v, true, nil
}

func (k *key) SetValue(ctx context.Context, name string, value hive.Value) error {
	if err := hive.ValidateValueName(name); err != nil {
		return err
	}
	if !value.Kind().Valid() {
		return fmt.Errorf("%w: %s", hive.ErrUnsupportedType, value.Kind())
	}
	if k.closed.Load() {
		return hive.ErrKeyClosed
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	av, err := encodeValue(k.section.Gen, name, value)
	if err != nil {
		return err
	}

	// The generation check keeps values from landing in a deleted section's partition
	_, err = k.hive.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{ConditionCheck: k.hive.generationCheck(&k.section)},
			{
				Put: &types.Put{
					TableName: aws.String(k.hive.config.Table),
					Item:      av,
				},
			},
		},
	})
	if mapCreateTransactionError(err, 0, -1) == errParentGone {
		return hive.ErrKeyDeleted
	}
	return err
}

func (k *key) DeleteValue(ctx context.Context, name string) error {
	cur, err := k.alive(ctx)
	if err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	_, err = k.hive.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(k.hive.config.Table),
		Key:                 valueKey(cur.Gen, name),
		ConditionExpression: aws.String(condPresent),
	})
	if isConditionFailed(err) {
		return hive.ErrValueNotFound
	}
	return err
}

func (k *key) DeleteSubKey(ctx context.Context, path string) error {
	return k.deleteSubKey(ctx, path, false)
}

func (k *key) DeleteSubKeyTree(ctx context.Context, path string) error {
	return k.deleteSubKey(ctx, path, true)
}

func (k *key) deleteSubKey(ctx context.Context, path string, recursive bool) error {
	segments, err := hive.SplitPath(path)
	if err != nil {
		return err
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: cannot delete the key itself", hive.ErrInvalidPath)
	}

	cur, err := k.alive(ctx)
	if err != nil {
		return err
	}
	if !k.writable {
		return hive.ErrReadOnly
	}

	target, err := k.hive.resolve(ctx, cur, segments)
	if err != nil {
		return err
	}
	if target == nil {
		return hive.ErrKeyNotFound
	}
	if !recursive {
		n, err := k.hive.countChildren(ctx, target.Gen)
		if err != nil {
			return err
		}
		if n > 0 {
			return hive.ErrHasSubKeys
		}
	}

	if err := k.hive.removeSection(ctx, target); err != nil {
		return err
	}
	if k.hive.config.DeferredTreeDelete {
		return nil
	}
	return k.hive.purge(ctx, target.Gen, true)
}

func (k *key) ValueCount(ctx context.Context) (int, error) {
	cur, err := k.alive(ctx)
	if err != nil {
		return 0, err
	}
	return k.hive.countValues(ctx, cur.Gen)
}

func (k *key) SubKeyCount(ctx context.Context) (int, error) {
	cur, err := k.alive(ctx)
	if err != nil {
		return 0, err
	}
	return k.hive.countChildren(ctx, cur.Gen)
}

func (k *key) ValueNames(ctx context.Context) ([]string, error) {
	cur, err := k.alive(ctx)
	if err != nil {
		return nil, err
	}
	raw, err := k.hive.queryValues(ctx, cur.Gen)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(raw))
	for _, item := range raw {
		name, _, err := decodeValue(item)
		if err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

func (k *key) SubKeyNames(ctx context.Context) ([]string, error) {
	cur, err := k.alive(ctx)
	if err != nil {
		return nil, err
	}
	children, err := k.hive.queryChildren(ctx, cur.Gen)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(children))
	for i, c := range children {
		names[i] = c.ChildName
	}
	return names, nil
}

func (k *key) Close() error {
	k.closed.Store(true)
	return nil
}
