// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines the middleware system, which allows cross-cutting concerns
// (logging, auditing, metrics, etc.) to be applied to the execution of
// aggregation pipelines.
package core

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Operation represents the type of operation being executed by the ODM.
//
// It is used within middlewares to distinguish between operations.
type Operation string

const (
	// OperationAggregate corresponds to running an aggregation pipeline.
	OperationAggregate Operation = "aggregate"
)

// Handler is the function signature executed by the ODM pipeline.
//
// It receives a context, the operation type, and an arbitrary payload.
// Handlers are composed by middlewares to add cross-cutting logic.
type Handler func(ctx context.Context, op Operation, payload any) error

// Middleware is a function that wraps a Handler with additional logic.
//
// Middlewares are chained globally and executed for every operation.
// They follow the decorator pattern.
type Middleware func(next Handler) Handler

var globalMiddlewareList []Middleware

// Use registers a new global middleware, applied to all operations.
//
// Middlewares run in registration order: the first registered middleware is
// the outermost one. Register middlewares at startup, before operations run.
func Use(mw Middleware) {
	globalMiddlewareList = append(globalMiddlewareList, mw)
}

// runMiddlewares applies the chain of middlewares to the final handler.
func runMiddlewares(final Handler) Handler {
	h := final
	// Wrap in reverse so the first registered runs outermost.
	for i := len(globalMiddlewareList) - 1; i >= 0; i-- {
		h = globalMiddlewareList[i](h)
	}
	return h
}

// dispatchOperation executes an operation through the global middleware chain.
//
// The exec function contains the core logic of the operation and is wrapped
// by the registered middlewares.
func dispatchOperation(ctx context.Context, op Operation, payload any, exec func() error) error {
	handler := runMiddlewares(func(ctx context.Context, op Operation, payload any) error {
		return exec()
	})
	return handler(ctx, op, payload)
}

// LoggingMiddleware logs every operation passing through the ODM.
//
// It measures execution time and logs both success and error cases. Each
// operation gets an id so its entries can be correlated. The payload (the
// pipeline for aggregations) is logged at debug level.
//
// Example:
//
//	core.Use(core.LoggingMiddleware(logger))
func LoggingMiddleware(logger *zap.Logger) Middleware {
	return func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			start := time.Now()
			log := logger.With(zap.String("op", string(op)), zap.String("op_id", uuid.NewString()))
			log.Debug("operation started", zap.Any("payload", payload))
			err := next(ctx, op, payload)
			elapsed := time.Since(start)
			if err != nil {
				log.Error("operation failed", zap.Duration("took", elapsed), zap.Error(err))
			} else {
				log.Info("operation succeeded", zap.Duration("took", elapsed))
			}
			return err
		}
	}
}
