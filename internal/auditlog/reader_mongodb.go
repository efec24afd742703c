package auditlog

import (
	"context"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
)

// MongoDBReader implements Reader for MongoDB.
type MongoDBReader struct {
	collection *mongo.Collection
}

// NewMongoDBReader creates a new MongoDB operation log reader.
func NewMongoDBReader(database *mongo.Database) (*MongoDBReader, error) {
	if database == nil {
		return nil, fmt.Errorf("database is required")
	}
	return &MongoDBReader{collection: database.Collection(mongoCollection)}, nil
}

// GetLogs returns a paginated list of log entries. The details filter maps
// onto a native field match inside the details document.
func (r *MongoDBReader) GetLogs(ctx context.Context, params LogQueryParams) (*LogListResult, error) {
	limit, offset := clampLimitOffset(params.Limit, params.Offset)

	matchFilters := bson.D{}

	if !params.StartDate.IsZero() || !params.EndDate.IsZero() {
		tsFilter := bson.D{}
		if !params.StartDate.IsZero() {
			tsFilter = append(tsFilter, bson.E{Key: "$gte", Value: params.StartDate.UTC()})
		}
		if !params.EndDate.IsZero() {
			tsFilter = append(tsFilter, bson.E{Key: "$lt", Value: params.EndDate.AddDate(0, 0, 1).UTC()})
		}
		matchFilters = append(matchFilters, bson.E{Key: "timestamp", Value: tsFilter})
	}
	if params.ItemID != "" {
		matchFilters = append(matchFilters, bson.E{Key: "item_id", Value: params.ItemID})
	}
	if params.UserID != "" {
		matchFilters = append(matchFilters, bson.E{Key: "user_id", Value: params.UserID})
	}
	if params.ContainerID != "" {
		matchFilters = append(matchFilters, bson.E{Key: "container_id", Value: params.ContainerID})
	}
	if params.Operation != "" {
		matchFilters = append(matchFilters, bson.E{Key: "operation", Value: string(params.Operation)})
	}
	if params.DetailsFilter != "" {
		path, want, hasValue := strings.Cut(params.DetailsFilter, "=")
		key := "details." + strings.TrimSpace(path)
		if hasValue {
			matchFilters = append(matchFilters, bson.E{Key: key, Value: strings.TrimSpace(want)})
		} else {
			matchFilters = append(matchFilters, bson.E{Key: key, Value: bson.D{{Key: "$exists", Value: true}}})
		}
	}

	pipeline := bson.A{}
	if len(matchFilters) > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$match", Value: matchFilters}})
	}

	pipeline = append(pipeline, bson.D{{Key: "$facet", Value: bson.D{
		{Key: "data", Value: bson.A{
			bson.D{{Key: "$sort", Value: bson.D{{Key: "timestamp", Value: -1}}}},
			bson.D{{Key: "$skip", Value: offset}},
			bson.D{{Key: "$limit", Value: limit}},
		}},
		{Key: "total", Value: bson.A{
			bson.D{{Key: "$count", Value: "count"}},
		}},
	}}})

	cursor, err := r.collection.Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate operation logs: %w", err)
	}
	defer cursor.Close(ctx)

	var facetResult struct {
		Data  []Entry `bson:"data"`
		Total []struct {
			Count int `bson:"count"`
		} `bson:"total"`
	}

	if cursor.Next(ctx) {
		if err := cursor.Decode(&facetResult); err != nil {
			return nil, fmt.Errorf("failed to decode operation log facet result: %w", err)
		}
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operation log cursor: %w", err)
	}

	total := 0
	if len(facetResult.Total) > 0 {
		total = facetResult.Total[0].Count
	}

	return &LogListResult{
		Entries: facetResult.Data,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	}, nil
}

// GetLogByID returns a single log entry by ID.
func (r *MongoDBReader) GetLogByID(ctx context.Context, id string) (*Entry, error) {
	var entry Entry

	err := r.collection.FindOne(ctx, bson.D{{Key: "_id", Value: id}}).Decode(&entry)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query operation log by id: %w", err)
	}

	return &entry, nil
}
