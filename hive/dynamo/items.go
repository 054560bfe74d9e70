package dynamo

import (
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/jacentio/regtree/hive"
	"github.com/jacentio/regtree/internal/shard"
)

const (
	sectionSK   = "#SECTION"
	valuePrefix = "V#"
)

// Condition expressions. Kept as constants so every write uses the same set.
const (
	condGeneration    = "#gen = :gen"
	condAbsent        = "attribute_not_exists(pk)"
	condPresent       = "attribute_exists(pk)"
	condAbsentOrStale = "attribute_not_exists(pk) OR #pgen <> :pgen"
	condChildOf       = "#pgen = :pgen"
)

var (
	errParentGone    = errors.New("dynamo: parent section is gone")
	errSectionExists = errors.New("dynamo: section already exists")
)

// sectionItem is the item stored for every section, roots included.
type sectionItem struct {
	PK        string `dynamodbav:"pk"`
	SK        string `dynamodbav:"sk"`
	Name      string `dynamodbav:"name"`
	Path      string `dynamodbav:"path"`
	Folded    string `dynamodbav:"folded_path"`
	Gen       string `dynamodbav:"gen"`
	ParentGen string `dynamodbav:"parent_gen,omitempty"`
	Volatile  bool   `dynamodbav:"volatile"`
	CreatedAt string `dynamodbav:"created_at"`
}

// valueItem is one parameter of a section.
type valueItem struct {
	PK   string `dynamodbav:"pk"`
	SK   string `dynamodbav:"sk"`
	Name string `dynamodbav:"name"`
	Kind uint32 `dynamodbav:"kind"`
	Data []byte `dynamodbav:"data,omitempty"`
}

// relationshipItem links a parent generation to a child section.
type relationshipItem struct {
	PK        string `dynamodbav:"pk"`
	ChildRef  string `dynamodbav:"child_ref"`
	ChildName string `dynamodbav:"child_name"`
	ChildPK   string `dynamodbav:"child_pk"`
	ChildGen  string `dynamodbav:"child_gen"`
	ParentGen string `dynamodbav:"parent_gen"`
}

func sectionKey(pk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: pk},
		"sk": &types.AttributeValueMemberS{Value: sectionSK},
	}
}

func valuesPK(gen string) string {
	return "G#" + gen
}

func valueKey(gen, name string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk": &types.AttributeValueMemberS{Value: valuesPK(gen)},
		"sk": &types.AttributeValueMemberS{Value: valuePrefix + hive.Fold(name)},
	}
}

func relationshipKey(parentGen, childRef string, numShards int) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"pk":        &types.AttributeValueMemberS{Value: shard.RelationshipPK(parentGen, childRef, numShards)},
		"child_ref": &types.AttributeValueMemberS{Value: childRef},
	}
}

func encodeValue(gen, name string, v hive.Value) (map[string]types.AttributeValue, error) {
	item := valueItem{
		PK:   valuesPK(gen),
		SK:   valuePrefix + hive.Fold(name),
		Name: name,
		Kind: uint32(v.Kind()),
		Data: v.Encode(),
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("marshal value: %w", err)
	}
	return av, nil
}

func decodeValue(raw map[string]types.AttributeValue) (string, hive.Value, error) {
	var item valueItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return "", hive.Value{}, fmt.Errorf("unmarshal value: %w", err)
	}
	v, err := hive.Decode(hive.Kind(item.Kind), item.Data)
	if err != nil {
		return "", hive.Value{}, err
	}
	return item.Name, v, nil
}

func decodeSection(raw map[string]types.AttributeValue) (*sectionItem, error) {
	if raw == nil {
		return nil, nil
	}
	var item sectionItem
	if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
		return nil, fmt.Errorf("unmarshal section: %w", err)
	}
	return &item, nil
}

// mapCreateTransactionError maps DynamoDB transaction errors for section creation.
// parentCheckIndex is the index of the parent check item.
// sectionPutIndex is the index of the section put item.
func mapCreateTransactionError(err error, parentCheckIndex, sectionPutIndex int) error {
	if err == nil {
		return nil
	}

	var txErr *types.TransactionCanceledException
	if errors.As(err, &txErr) {
		for i, reason := range txErr.CancellationReasons {
			if reason.Code != nil && *reason.Code == "ConditionalCheckFailed" {
				if i == parentCheckIndex {
					return errParentGone
				}
				if i == sectionPutIndex {
					return errSectionExists
				}
			}
		}
	}

	return err
}

// isConditionFailed reports whether err is a failed single-item condition.
func isConditionFailed(err error) bool {
	var condErr *types.ConditionalCheckFailedException
	return errors.As(err, &condErr)
}
