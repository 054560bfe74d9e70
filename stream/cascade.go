// Package stream provides DynamoDB Streams handlers for cascade deletes of regtree sections.
package stream

import (
	"context"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	"go.uber.org/zap"
)

// sectionSK marks section items in the sections table; parameter items use other sort keys.
const sectionSK = "#SECTION"

// Purger removes what a deleted section generation left behind.
// *dynamo.Hive implements it.
type Purger interface {
	PurgeSection(ctx context.Context, gen string) error
}

// Handler processes DynamoDB stream events for cascade deletes.
type Handler struct {
	purger Purger
	logger *zap.Logger
}

// NewHandler creates a new stream handler.
func NewHandler(p Purger, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		purger: p,
		logger: logger,
	}
}

// HandleCascadeDelete purges the parameters and children of removed sections.
// This function is designed to be used as an AWS Lambda handler.
func (h *Handler) HandleCascadeDelete(ctx context.Context, event events.DynamoDBEvent) error {
	for _, record := range event.Records {
		if err := h.processRecord(ctx, record); err != nil {
			h.logger.Error("failed to process record",
				zap.String("eventID", record.EventID),
				zap.Error(err),
			)
			return err // Will retry, eventually DLQ
		}
	}
	return nil
}

// processRecord processes a single DynamoDB stream record.
func (h *Handler) processRecord(ctx context.Context, record events.DynamoDBEventRecord) error {
	old := record.Change.OldImage
	if getStringAttr(old, "sk") != sectionSK {
		return nil
	}
	gen := getStringAttr(old, "gen")
	if gen == "" {
		return nil
	}

	switch record.EventName {
	case "REMOVE":
	case "MODIFY":
		// Overwritten by a newer section at the same path
		if getStringAttr(record.Change.NewImage, "gen") == gen {
			return nil
		}
	default:
		return nil
	}

	path := getStringAttr(old, "path")
	h.logger.Info("processing cascade delete",
		zap.String("path", path),
		zap.String("gen", gen),
		zap.String("event", record.EventName),
	)

	if err := h.purger.PurgeSection(ctx, gen); err != nil {
		return fmt.Errorf("purge %q: %w", path, err)
	}

	h.logger.Info("cascade delete completed",
		zap.String("path", path),
		zap.String("gen", gen),
		zap.Bool("volatile", getBoolAttr(old, "volatile")),
	)
	return nil
}

// getStringAttr extracts a string attribute from a DynamoDB stream image.
func getStringAttr(image map[string]events.DynamoDBAttributeValue, key string) string {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeString {
		return v.String()
	}
	return ""
}

// getBoolAttr extracts a boolean attribute from a DynamoDB stream image.
func getBoolAttr(image map[string]events.DynamoDBAttributeValue, key string) bool {
	if v, ok := image[key]; ok && v.DataType() == events.DataTypeBoolean {
		return v.Boolean()
	}
	return false
}
