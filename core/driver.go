// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines the contract between finished pipelines and the database
// drivers that run them.
package core

import (
	"context"

	"go.mongodb.org/mongo-driver/mongo"
)

// PipelineSource produces a finished aggregation pipeline.
//
// The aggregation Builder implements it.
type PipelineSource interface {
	// Pipeline returns the ordered stage documents, or the first
	// configuration error of any stage.
	Pipeline() (mongo.Pipeline, error)
}

// Driver defines the contract for database backends that can run
// aggregation pipelines.
type Driver interface {
	// Connect establishes a new connection or validates connectivity.
	Connect(ctx context.Context) error
	// Ping checks if the underlying database is reachable.
	Ping(ctx context.Context) error
	// Close terminates the connection and releases resources.
	Close(ctx context.Context) error

	// Aggregate runs the pipeline against the collection of class and
	// returns the raw result documents.
	Aggregate(ctx context.Context, class *ClassMetadata, pipeline mongo.Pipeline) ([]map[string]any, error)
}
