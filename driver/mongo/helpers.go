// Package driver provides database driver implementations for the mongodb-odm
// aggregation layer.
// This file contains helper functions used by the MongoDB driver to prepare
// and log pipelines.
package driver

import (
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
)

// aggregateOptions returns the options every aggregation runs with.
//
// allowDiskUse is only sent when enabled, so servers that reject the option
// keep working with the default configuration.
func aggregateOptions(allowDiskUse bool) *mopt.AggregateOptions {
	opts := mopt.Aggregate()
	if allowDiskUse {
		opts.SetAllowDiskUse(true)
	}
	return opts
}

// pipelineJSON renders a pipeline as relaxed extended JSON for logging.
//
// Example:
//
//	pipelineJSON(mongo.Pipeline{{{Key: "$limit", Value: 1}}})
//	// `[{"$limit":1}]`
func pipelineJSON(pipeline mongo.Pipeline) string {
	data, err := bson.MarshalExtJSON(bson.D{{Key: "pipeline", Value: pipeline}}, false, false)
	if err != nil {
		return "<unprintable pipeline: " + err.Error() + ">"
	}
	// Strip the {"pipeline": ...} wrapper: only documents can be marshaled.
	const prefix = `{"pipeline":`
	if len(data) > len(prefix)+1 {
		return string(data[len(prefix) : len(data)-1])
	}
	return string(data)
}
