package dynamo

import (
	"context"
	"errors"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type tableFake struct {
	existing  map[string]bool
	created   []*dynamodb.CreateTableInput
	createErr error
}

func (f *tableFake) CreateTable(ctx context.Context, in *dynamodb.CreateTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.CreateTableOutput, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	if f.existing[aws.ToString(in.TableName)] {
		return nil, &types.ResourceInUseException{Message: aws.String("table exists")}
	}
	f.created = append(f.created, in)
	return &dynamodb.CreateTableOutput{}, nil
}

func (f *tableFake) DescribeTable(ctx context.Context, in *dynamodb.DescribeTableInput, _ ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error) {
	return &dynamodb.DescribeTableOutput{
		Table: &types.TableDescription{
			TableName:   in.TableName,
			TableStatus: types.TableStatusActive,
		},
	}, nil
}

func TestCreateTables(t *testing.T) {
	f := &tableFake{}
	cfg := Config{Table: "sections", RelationshipTable: "rels"}

	require.NoError(t, CreateTables(context.Background(), f, cfg))
	require.Len(t, f.created, 2)

	sections := f.created[0]
	assert.Equal(t, "sections", aws.ToString(sections.TableName))
	assert.Equal(t, "sk", aws.ToString(sections.KeySchema[1].AttributeName))
	require.NotNil(t, sections.StreamSpecification)
	assert.Equal(t, types.StreamViewTypeNewAndOldImages, sections.StreamSpecification.StreamViewType)

	rels := f.created[1]
	assert.Equal(t, "rels", aws.ToString(rels.TableName))
	assert.Equal(t, "child_ref", aws.ToString(rels.KeySchema[1].AttributeName))
	assert.Nil(t, rels.StreamSpecification)
}

func TestCreateTables_Existing(t *testing.T) {
	f := &tableFake{existing: map[string]bool{"sections": true}}
	cfg := Config{Table: "sections", RelationshipTable: "rels"}

	require.NoError(t, CreateTables(context.Background(), f, cfg))
	require.Len(t, f.created, 1)
	assert.Equal(t, "rels", aws.ToString(f.created[0].TableName))
}

func TestCreateTables_Error(t *testing.T) {
	boom := errors.New("boom")
	f := &tableFake{createErr: boom}

	err := CreateTables(context.Background(), f, DefaultConfig())
	assert.ErrorIs(t, err, boom)
	assert.ErrorContains(t, err, "create table regtree_sections")
}
