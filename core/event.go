// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines the event dispatcher used to observe executed pipelines.
package core

import (
	"sync"

	"go.mongodb.org/mongo-driver/mongo"
)

// Event represents a lifecycle event that can be emitted by the ODM.
type Event string

const (
	// EventAggregate is emitted after an aggregation pipeline was executed
	// and its results decoded.
	EventAggregate Event = "aggregate"
)

// EventHandler defines the callback signature for event listeners.
// The payload argument varies depending on the event type.
type EventHandler func(payload any)

// EventDispatcher manages a list of event handlers and dispatches them
// when the corresponding events are emitted.
type EventDispatcher struct {
	mutex       sync.RWMutex
	handlerList map[Event][]EventHandler
}

// globalDispatcher is the shared event dispatcher used by the ODM.
var globalDispatcher = &EventDispatcher{
	handlerList: make(map[Event][]EventHandler),
}

// On registers an EventHandler for a specific Event.
//
// Example:
//
//	core.On(core.EventAggregate, func(payload any) {
//	    if p, ok := payload.(core.AggregatePayload[Post]); ok {
//	        log.Printf("%d posts aggregated", len(p.DocList))
//	    }
//	})
func On(event Event, handler EventHandler) {
	globalDispatcher.mutex.Lock()
	defer globalDispatcher.mutex.Unlock()
	globalDispatcher.handlerList[event] = append(globalDispatcher.handlerList[event], handler)
}

// Emit triggers all registered handlers for the given Event.
//
// Handlers are executed asynchronously in separate goroutines.
func Emit(event Event, payload any) {
	globalDispatcher.mutex.RLock()
	defer globalDispatcher.mutex.RUnlock()
	if hs, ok := globalDispatcher.handlerList[event]; ok {
		for _, h := range hs {
			go h(payload)
		}
	}
}

// AggregatePayload represents the payload passed to EventAggregate handlers.
//
// It contains the class, the executed pipeline and the decoded documents.
type AggregatePayload[T any] struct {
	Class    *ClassMetadata
	Pipeline mongo.Pipeline
	DocList  []T
}
