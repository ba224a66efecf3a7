// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines the Model[T], which represents the entry point for running
// aggregation pipelines of a specific class and decoding their results.
package core

import (
	"context"
)

// Model runs aggregation pipelines for a class and decodes the resulting
// documents into T.
//
// Execution goes through the global middleware chain, registered PostAggregate
// hooks run for every decoded document, and an EventAggregate is emitted.
type Model[T any] struct {
	class        *ClassMetadata
	driver       Driver
	postHookList map[PostHook][]func(*T) error
}

// NewModel creates a new Model instance bound to class metadata and a driver.
//
// Example:
//
//	postModel := core.NewModel[Post](postClass, mongoDriver)
func NewModel[T any](class *ClassMetadata, driver Driver) *Model[T] {
	return &Model[T]{
		class:        class,
		driver:       driver,
		postHookList: make(map[PostHook][]func(*T) error),
	}
}

// Class returns the metadata the model is bound to.
func (m *Model[T]) Class() *ClassMetadata {
	return m.class
}

// RegisterPostHook registers a post-operation hook for the model.
func (m *Model[T]) RegisterPostHook(hook PostHook, fn func(*T) error) {
	m.postHookList[hook] = append(m.postHookList[hook], fn)
}

// WithTenant creates a new Model[T] instance bound to a different database.
//
// It clones the class metadata and replaces only the Database name. Hooks are
// shared with the original model.
func (m *Model[T]) WithTenant(database string) *Model[T] {
	cloneClass := *m.class
	cloneClass.Database = database
	return &Model[T]{class: &cloneClass, driver: m.driver, postHookList: m.postHookList}
}

// runPost executes all registered PostHooks for the given operation.
func (m *Model[T]) runPost(hook PostHook, doc *T) error {
	if fnList, ok := m.postHookList[hook]; ok {
		for _, fn := range fnList {
			if err := fn(doc); err != nil {
				return err
			}
		}
	}
	return nil
}

// Aggregate builds the pipeline of source, runs it against the class
// collection and decodes every result document into T.
//
// Configuration errors of the pipeline are returned before anything is sent
// to the database.
func (m *Model[T]) Aggregate(ctx context.Context, source PipelineSource) ([]T, error) {
	pipeline, err := source.Pipeline()
	if err != nil {
		return nil, err
	}

	var results []T
	err = dispatchOperation(ctx, OperationAggregate, pipeline, func() error {
		rowList, err := m.driver.Aggregate(ctx, m.class, pipeline)
		if err != nil {
			return err
		}
		results = make([]T, 0, len(rowList))
		for _, row := range rowList {
			value := new(T)
			if err := decodeRow(row, value); err != nil {
				return err
			}
			if err := m.runPost(PostAggregate, value); err != nil {
				return err
			}
			results = append(results, *value)
		}
		// Handlers run concurrently with the caller, so they get their own copy.
		Emit(EventAggregate, AggregatePayload[T]{Class: m.class, Pipeline: pipeline, DocList: append([]T(nil), results...)})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}
