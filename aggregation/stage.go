package aggregation

import "go.mongodb.org/mongo-driver/bson"

// Stage is one step of an aggregation pipeline.
type Stage interface {
	// Build returns the single-key document of the stage, such as
	// {"$group": {...}}, or the first configuration error of the stage.
	Build() (bson.D, error)
}

// stage holds the back-reference every stage keeps to the builder that
// created it.
type stage struct {
	builder *Builder
}

// Builder returns the pipeline builder the stage belongs to, so the chain can
// continue with the next stage.
func (s *stage) Builder() *Builder {
	return s.builder
}

// nullable returns nil for unset strings so they are emitted as null.
func nullable(value string) any {
	if value == "" {
		return nil
	}
	return value
}
