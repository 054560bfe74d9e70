package dynamo

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type item = map[string]types.AttributeValue

// fakeDB is an in-memory stand-in for DynamoDB that understands exactly the
// key conditions and condition expressions this package issues.
type fakeDB struct {
	mu       sync.Mutex
	tables   map[string]map[string]item
	sortKeys map[string]string
	queried  map[string]int
}

var _ API = (*fakeDB)(nil)

func newFakeDB(cfg Config) *fakeDB {
	cfg.validate()
	return &fakeDB{
		tables: map[string]map[string]item{
			cfg.Table:             {},
			cfg.RelationshipTable: {},
		},
		sortKeys: map[string]string{
			cfg.Table:             "sk",
			cfg.RelationshipTable: "child_ref",
		},
		queried: map[string]int{},
	}
}

func str(av types.AttributeValue) string {
	if s, ok := av.(*types.AttributeValueMemberS); ok {
		return s.Value
	}
	return ""
}

func (f *fakeDB) table(name *string) map[string]item {
	t, ok := f.tables[aws.ToString(name)]
	if !ok {
		panic("fake: unknown table " + aws.ToString(name))
	}
	return t
}

func (f *fakeDB) id(table *string, key item) string {
	return str(key["pk"]) + "\x00" + str(key[f.sortKeys[aws.ToString(table)]])
}

func evalCondition(expr *string, names map[string]string, values item, current item) bool {
	if expr == nil {
		return true
	}
	attr := func(placeholder string) (string, bool) {
		av, ok := current[names[placeholder]]
		return str(av), ok
	}
	switch *expr {
	case condAbsent:
		return current == nil
	case condPresent:
		return current != nil
	case condGeneration:
		v, ok := attr("#gen")
		return ok && v == str(values[":gen"])
	case condChildOf:
		v, ok := attr("#pgen")
		return ok && v == str(values[":pgen"])
	case condAbsentOrStale:
		if current == nil {
			return true
		}
		v, ok := attr("#pgen")
		return ok && v != str(values[":pgen"])
	}
	panic("fake: unsupported condition " + *expr)
}

func conditionFailed() error {
	return &types.ConditionalCheckFailedException{Message: aws.String("The conditional request failed")}
}

func (f *fakeDB) GetItem(ctx context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &dynamodb.GetItemOutput{Item: f.table(in.TableName)[f.id(in.TableName, in.Key)]}, nil
}

func (f *fakeDB) PutItem(ctx context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(in.TableName)
	id := f.id(in.TableName, in.Item)
	if !evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, t[id]) {
		return nil, conditionFailed()
	}
	t[id] = in.Item
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDB) DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := f.table(in.TableName)
	id := f.id(in.TableName, in.Key)
	old := t[id]
	if !evalCondition(in.ConditionExpression, in.ExpressionAttributeNames, in.ExpressionAttributeValues, old) {
		return nil, conditionFailed()
	}
	delete(t, id)
	out := &dynamodb.DeleteItemOutput{}
	if in.ReturnValues == types.ReturnValueAllOld {
		out.Attributes = old
	}
	return out, nil
}

func (f *fakeDB) Query(ctx context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pk := str(in.ExpressionAttributeValues[":pk"])
	prefix := str(in.ExpressionAttributeValues[":prefix"])
	skName := f.sortKeys[aws.ToString(in.TableName)]
	f.queried[pk]++

	var items []item
	for _, it := range f.table(in.TableName) {
		if str(it["pk"]) == pk && strings.HasPrefix(str(it[skName]), prefix) {
			items = append(items, it)
		}
	}
	sort.Slice(items, func(i, j int) bool { return str(items[i][skName]) < str(items[j][skName]) })

	out := &dynamodb.QueryOutput{Count: int32(len(items))}
	if in.Select != types.SelectCount {
		out.Items = items
	}
	return out, nil
}

func (f *fakeDB) TransactWriteItems(ctx context.Context, in *dynamodb.TransactWriteItemsInput, _ ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	reasons := make([]types.CancellationReason, len(in.TransactItems))
	failed := false
	for i, ti := range in.TransactItems {
		ok := true
		switch {
		case ti.ConditionCheck != nil:
			c := ti.ConditionCheck
			ok = evalCondition(c.ConditionExpression, c.ExpressionAttributeNames, c.ExpressionAttributeValues,
				f.table(c.TableName)[f.id(c.TableName, c.Key)])
		case ti.Put != nil:
			p := ti.Put
			ok = evalCondition(p.ConditionExpression, p.ExpressionAttributeNames, p.ExpressionAttributeValues,
				f.table(p.TableName)[f.id(p.TableName, p.Item)])
		case ti.Delete != nil:
			d := ti.Delete
			ok = evalCondition(d.ConditionExpression, d.ExpressionAttributeNames, d.ExpressionAttributeValues,
				f.table(d.TableName)[f.id(d.TableName, d.Key)])
		}
		reasons[i].Code = aws.String("None")
		if !ok {
			reasons[i].Code = aws.String("ConditionalCheckFailed")
			failed = true
		}
	}
	if failed {
		return nil, &types.TransactionCanceledException{
			Message:             aws.String("Transaction cancelled"),
			CancellationReasons: reasons,
		}
	}

	for _, ti := range in.TransactItems {
		switch {
		case ti.Put != nil:
			f.table(ti.Put.TableName)[f.id(ti.Put.TableName, ti.Put.Item)] = ti.Put.Item
		case ti.Delete != nil:
			delete(f.table(ti.Delete.TableName), f.id(ti.Delete.TableName, ti.Delete.Key))
		}
	}
	return &dynamodb.TransactWriteItemsOutput{}, nil
}

// count returns the number of items in table whose pk starts with prefix.
func (f *fakeDB) count(table, prefix string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, it := range f.tables[table] {
		if strings.HasPrefix(str(it["pk"]), prefix) {
			n++
		}
	}
	return n
}
