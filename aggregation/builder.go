package aggregation

import (
	"context"

	"github.com/emulienfou/mongodb-odm/core"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Builder assembles an aggregation pipeline for one class.
//
// Stages are appended in call order and keep a reference to the builder, so
// a stage can be configured fluently and the chain resumed with Builder().
// Field names given to stages are resolved against the class through the
// builder's FieldResolver.
//
// Example:
//
//	builder := aggregation.NewBuilder(registry, postClass)
//	builder.Lookup("Author").Alias("author")
//	builder.Unwind("author")
//	builder.Group().
//		Field("_id").Expression("$author.name").
//		Field("posts").Sum(1)
//	pipeline, err := builder.Pipeline()
//
// A Builder is not safe for concurrent use.
type Builder struct {
	metadata        core.MetadataProvider
	resolver        core.FieldResolver
	resolverOptions []core.ResolverOption
	class           *core.ClassMetadata
	stageList       []Stage
	building        bool
}

var _ core.PipelineSource = (*Builder)(nil)

// BuilderOption customizes a Builder.
type BuilderOption func(*Builder)

// WithResolver replaces the default field resolver.
func WithResolver(resolver core.FieldResolver) BuilderOption {
	return func(b *Builder) { b.resolver = resolver }
}

// WithConfig builds the default field resolver with the strictness and cache
// size of conf. It has no effect when WithResolver is also given.
func WithConfig(conf *core.Config) BuilderOption {
	return func(b *Builder) {
		if conf != nil {
			b.resolverOptions = conf.ResolverOptions()
		}
	}
}

// NewBuilder creates a pipeline builder for class, reading related classes
// from metadata. Class may be nil for pipelines on plain collections, in
// which case field names are not resolved.
func NewBuilder(metadata core.MetadataProvider, class *core.ClassMetadata, options ...BuilderOption) *Builder {
	builder := &Builder{metadata: metadata, class: class}
	for _, option := range options {
		option(builder)
	}
	if builder.resolver == nil {
		builder.resolver = core.NewResolver(metadata, builder.resolverOptions...)
	}
	return builder
}

// Class returns the class the pipeline runs on.
func (b *Builder) Class() *core.ClassMetadata {
	return b.class
}

// Resolver returns the field resolver used by the stages.
func (b *Builder) Resolver() core.FieldResolver {
	return b.resolver
}

// Expr creates a new expression bound to the class of the builder. The
// expression is not added to the pipeline.
func (b *Builder) Expr() *Expr {
	return newExpr(b.resolver, b.class)
}

// Group adds a $group stage.
func (b *Builder) Group() *Group {
	group := newGroup(b)
	b.stageList = append(b.stageList, group)
	return group
}

// Lookup adds a $lookup stage joining from, see Lookup.From.
func (b *Builder) Lookup(from string) *Lookup {
	lookup := newLookup(b, from)
	b.stageList = append(b.stageList, lookup)
	return lookup
}

// Match adds a $match stage.
func (b *Builder) Match(filter bson.D) *Match {
	match := newMatch(b, filter)
	b.stageList = append(b.stageList, match)
	return match
}

// Sort adds a $sort stage.
func (b *Builder) Sort(sort bson.D) *Sort {
	s := newSort(b, sort)
	b.stageList = append(b.stageList, s)
	return s
}

// Skip adds a $skip stage.
func (b *Builder) Skip(skip int64) *Skip {
	s := &Skip{stage: stage{builder: b}, skip: skip}
	b.stageList = append(b.stageList, s)
	return s
}

// Limit adds a $limit stage.
func (b *Builder) Limit(limit int64) *Limit {
	l := &Limit{stage: stage{builder: b}, limit: limit}
	b.stageList = append(b.stageList, l)
	return l
}

// Unwind adds an $unwind stage on the given array field.
func (b *Builder) Unwind(path string) *Unwind {
	unwind := newUnwind(b, path)
	b.stageList = append(b.stageList, unwind)
	return unwind
}

// Project adds a $project stage.
func (b *Builder) Project() *Project {
	project := newProject(b)
	b.stageList = append(b.stageList, project)
	return project
}

// AddFields adds an $addFields stage.
func (b *Builder) AddFields() *AddFields {
	addFields := newAddFields(b)
	b.stageList = append(b.stageList, addFields)
	return addFields
}

// AddStage appends a custom stage.
func (b *Builder) AddStage(s Stage) *Builder {
	b.stageList = append(b.stageList, s)
	return b
}

// Stages returns the stages in pipeline order.
func (b *Builder) Stages() []Stage {
	return append([]Stage(nil), b.stageList...)
}

// Pipeline builds every stage in order. The first failing stage aborts the
// build; no partial pipeline is returned. A builder used as its own
// sub-pipeline fails with core.ErrCyclicExpression.
func (b *Builder) Pipeline() (mongo.Pipeline, error) {
	if b.building {
		return nil, &core.ErrCyclicExpression{}
	}
	b.building = true
	defer func() { b.building = false }()

	pipeline := make(mongo.Pipeline, 0, len(b.stageList))
	for index, s := range b.stageList {
		doc, err := s.Build()
		if err != nil {
			return nil, errors.Wrapf(err, "building stage %d", index)
		}
		pipeline = append(pipeline, doc)
	}
	return pipeline, nil
}

// Execute builds the pipeline and runs it on the collection of the class.
func (b *Builder) Execute(ctx context.Context, driver core.Driver) ([]map[string]any, error) {
	if b.class == nil {
		return nil, errors.New("aggregation: cannot execute a pipeline without a class")
	}
	pipeline, err := b.Pipeline()
	if err != nil {
		return nil, err
	}
	return driver.Aggregate(ctx, b.class, pipeline)
}

// stageArray returns the built stages as an array, the form sub-pipelines
// are embedded in.
func (b *Builder) stageArray() (bson.A, error) {
	pipeline, err := b.Pipeline()
	if err != nil {
		return nil, err
	}
	list := make(bson.A, len(pipeline))
	for index, doc := range pipeline {
		list[index] = doc
	}
	return list, nil
}

func (b *Builder) resolveField(field string) (string, error) {
	if b.resolver == nil {
		return field, nil
	}
	return b.resolver.Resolve(field, b.class)
}

// resolveFilter resolves the field names of a query filter and the field
// paths of $expr operands.
func (b *Builder) resolveFilter(filter bson.D) (bson.D, error) {
	out := make(bson.D, 0, len(filter))
	for _, element := range filter {
		switch element.Key {
		case "$and", "$or", "$nor":
			list, err := b.resolveFilterList(element.Value)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: element.Key, Value: list})
		case "$expr":
			converted, err := convertValue(element.Value, b.resolver, b.class)
			if err != nil {
				return nil, err
			}
			out = append(out, bson.E{Key: element.Key, Value: converted})
		default:
			key := element.Key
			if len(key) == 0 || key[0] != '$' {
				resolved, err := b.resolveField(key)
				if err != nil {
					return nil, err
				}
				key = resolved
			}
			out = append(out, bson.E{Key: key, Value: element.Value})
		}
	}
	return out, nil
}

func (b *Builder) resolveFilterList(value any) (any, error) {
	var list []any
	switch typed := value.(type) {
	case bson.A:
		list = typed
	case []any:
		list = typed
	case []bson.D:
		for _, doc := range typed {
			list = append(list, doc)
		}
	default:
		return value, nil
	}
	out := make(bson.A, 0, len(list))
	for _, element := range list {
		doc, ok := element.(bson.D)
		if !ok {
			out = append(out, element)
			continue
		}
		resolved, err := b.resolveFilter(doc)
		if err != nil {
			return nil, err
		}
		out = append(out, resolved)
	}
	return out, nil
}
