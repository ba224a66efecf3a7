// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines lifecycle hooks that allow custom logic to be executed
// on documents produced by an aggregation.
package core

// PostHook represents a lifecycle hook that runs after an operation.
//
// Hooks are identified by string tokens (e.g., "post:aggregate") and are
// registered per Model.
type PostHook string

const (
	// PostAggregate is executed for every document decoded from an
	// aggregation result, in result order.
	PostAggregate PostHook = "post:aggregate"
)
