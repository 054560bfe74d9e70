// Command regtree-cascade is the AWS Lambda that purges deleted sections of the
// DynamoDB backend. Attach it to the sections table stream (NEW_AND_OLD_IMAGES).
package main

import (
	"context"

	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/jacentio/regtree/hive/dynamo"
	"github.com/jacentio/regtree/internal/config"
	"github.com/jacentio/regtree/internal/logging"
	"github.com/jacentio/regtree/stream"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
		OutputPaths: []string{"stdout"},
	})
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	client, err := dynamo.NewClient(context.Background(), dynamo.ClientOptions{
		Profile:  cfg.Dynamo.Profile,
		Endpoint: cfg.Dynamo.Endpoint,
	})
	if err != nil {
		logger.Fatal("failed to create dynamodb client", zap.Error(err))
	}

	h := dynamo.New(client, dynamo.Config{
		Table:             cfg.Dynamo.Table,
		RelationshipTable: cfg.Dynamo.RelationshipTable,
		NumShards:         cfg.Dynamo.Shards,
	})
	logger.Info("cascade handler ready",
		zap.String("table", h.Config().Table),
		zap.String("relationshipTable", h.Config().RelationshipTable),
		zap.Int("shards", h.Config().NumShards),
	)

	lambda.Start(stream.NewHandler(h, logger).HandleCascadeDelete)
}
