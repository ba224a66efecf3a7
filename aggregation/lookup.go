package aggregation

import (
	"fmt"

	"github.com/emulienfou/mongodb-odm/core"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

// Lookup performs a left outer join with another collection.
//
// From accepts three kinds of names, tried in order: a reference field of the
// class the pipeline runs on, a mapped class name, or a plain collection
// name. A reference configures the whole join (collection, local and foreign
// fields and, for inverse references, the alias). A mapped class makes
// ForeignField resolve against that class. A plain collection name leaves
// field names as given.
//
// Without Pipeline the stage is an equality join on LocalField and
// ForeignField. Once Pipeline is set the stage runs the sub-pipeline instead,
// and the local and foreign fields are not emitted.
//
// A failing call records its error and leaves the stage unchanged; later calls
// are ignored and Build returns the error.
//
// See https://www.mongodb.com/docs/manual/reference/operator/aggregation/lookup/
type Lookup struct {
	stage
	metadata core.MetadataProvider
	resolver core.FieldResolver
	class    *core.ClassMetadata

	targetClass  *core.ClassMetadata
	from         string
	localField   string
	foreignField string
	as           string
	let          bson.D
	pipeline     any
	err          error
}

var _ Stage = (*Lookup)(nil)

func newLookup(builder *Builder, from string) *Lookup {
	lookup := &Lookup{
		stage:    stage{builder: builder},
		metadata: builder.metadata,
		resolver: builder.resolver,
		class:    builder.class,
	}
	return lookup.From(from)
}

// From sets the collection to join, resolving reference fields and mapped
// classes as described on Lookup.
func (l *Lookup) From(from string) *Lookup {
	if l.err != nil {
		return l
	}
	if l.class != nil && l.class.HasReference(from) {
		return l.fromReference(from)
	}

	result := l.lookupClass(from)
	switch result.Status {
	case core.LookupFound:
		if result.Metadata.IsSharded() {
			return l.fail(&core.ErrShardedCollection{Class: result.Metadata.Name})
		}
		l.targetClass = result.Metadata
		l.from = result.Metadata.CollectionName()
	case core.LookupFailed:
		return l.fail(result.Err)
	default:
		l.targetClass = nil
		l.from = from
	}
	return l
}

// fromReference configures the join from a reference field of the class.
// Every value is computed before any is assigned.
func (l *Lookup) fromReference(fieldName string) *Lookup {
	field, ok := l.class.FieldMapping(fieldName)
	if !ok || field.Reference == nil {
		return l.fail(&core.ErrReferenceNotFound{Class: l.class.Name, Field: fieldName})
	}
	reference := field.Reference

	target, err := core.ClassMetadataFrom(l.provider(), reference.TargetClass)
	if err != nil {
		return l.fail(err)
	}
	if target.IsSharded() {
		return l.fail(&core.ErrShardedCollection{Class: target.Name})
	}

	if reference.IsOwningSide {
		if !joinable(reference.StoreAs) {
			return l.fail(&core.ErrUnsupportedReferenceStorage{Class: l.class.Name, Field: fieldName, StoreAs: reference.StoreAs})
		}
		localField, err := l.resolve(core.ReferenceFieldName(reference.StoreAs, field.StructFieldName), l.class)
		if err != nil {
			return l.fail(err)
		}
		l.targetClass = target
		l.from = target.CollectionName()
		l.localField = localField
		l.foreignField = core.IdentifierFieldName
		return l
	}

	if reference.RepositoryMethod != "" || reference.MappedBy == "" {
		return l.fail(&core.ErrUnsupportedInverseResolution{Class: l.class.Name, Field: fieldName})
	}
	mappedBy, ok := target.FieldMapping(reference.MappedBy)
	if !ok || mappedBy.Reference == nil {
		return l.fail(&core.ErrReferenceNotFound{Class: target.Name, Field: reference.MappedBy})
	}
	if !joinable(mappedBy.Reference.StoreAs) {
		return l.fail(&core.ErrUnsupportedReferenceStorage{Class: target.Name, Field: reference.MappedBy, StoreAs: mappedBy.Reference.StoreAs})
	}
	foreignField, err := l.resolve(core.ReferenceFieldName(mappedBy.Reference.StoreAs, mappedBy.StructFieldName), target)
	if err != nil {
		return l.fail(err)
	}
	l.targetClass = target
	l.from = target.CollectionName()
	l.localField = core.IdentifierFieldName
	l.foreignField = foreignField
	l.as = fieldName
	return l
}

// Alias sets the name of the array field that receives the joined documents.
// The last call wins, including the alias set by From for inverse references.
func (l *Lookup) Alias(alias string) *Lookup {
	if l.err != nil {
		return l
	}
	l.as = alias
	return l
}

// LocalField sets the field of the input documents to join on, resolved
// against the class of the pipeline.
func (l *Lookup) LocalField(localField string) *Lookup {
	if l.err != nil {
		return l
	}
	resolved, err := l.resolve(localField, l.class)
	if err != nil {
		return l.fail(err)
	}
	l.localField = resolved
	return l
}

// ForeignField sets the field of the joined documents to join on, resolved
// against the joined class when there is one.
func (l *Lookup) ForeignField(foreignField string) *Lookup {
	if l.err != nil {
		return l
	}
	resolved, err := l.resolve(foreignField, l.targetClass)
	if err != nil {
		return l.fail(err)
	}
	l.foreignField = resolved
	return l
}

// Let declares variables for the sub-pipeline. Values may use "$field" paths
// of the class of the pipeline and expressions.
func (l *Lookup) Let(let bson.D) *Lookup {
	if l.err != nil {
		return l
	}
	converted, err := convertValue(let, l.resolver, l.class)
	if err != nil {
		return l.fail(err)
	}
	l.let = converted.(bson.D)
	return l
}

// Pipeline sets the sub-pipeline to run on the joined collection and switches
// the stage to pipeline mode.
//
// It accepts a *Builder, an *Expr (used as a single stage) or a sequence of
// stage documents: mongo.Pipeline, []bson.D, []bson.M, bson.A or []any.
// Anything else fails with core.ErrInvalidPipelineArgument.
func (l *Lookup) Pipeline(pipeline any) *Lookup {
	if l.err != nil {
		return l
	}
	switch typed := pipeline.(type) {
	case *Builder:
		if typed == nil {
			return l.fail(&core.ErrInvalidPipelineArgument{Type: fmt.Sprintf("%T", pipeline)})
		}
	case *Expr:
		if typed == nil {
			return l.fail(&core.ErrInvalidPipelineArgument{Type: fmt.Sprintf("%T", pipeline)})
		}
	case mongo.Pipeline, []bson.D, []bson.M, bson.A, []any:
	default:
		return l.fail(&core.ErrInvalidPipelineArgument{Type: fmt.Sprintf("%T", pipeline)})
	}
	l.pipeline = pipeline
	return l
}

// SubPipeline starts a sub-pipeline bound to the joined class, sets it as the
// pipeline of the stage and returns it.
func (l *Lookup) SubPipeline() *Builder {
	sub := NewBuilder(l.provider(), l.targetClass, WithResolver(l.resolver))
	if l.err == nil {
		l.pipeline = sub
	}
	return sub
}

// TargetClass returns the metadata of the joined class, or nil when joining a
// plain collection.
func (l *Lookup) TargetClass() *core.ClassMetadata {
	return l.targetClass
}

// Err returns the first error recorded by a fluent call, if any.
func (l *Lookup) Err() error {
	return l.err
}

// Build returns the $lookup document in pipeline or equality form.
func (l *Lookup) Build() (bson.D, error) {
	if l.err != nil {
		return nil, l.err
	}
	if l.pipeline != nil {
		pipeline, err := l.buildPipeline()
		if err != nil {
			return nil, err
		}
		let := bson.D{}
		if l.let != nil {
			resolved, err := materialize(l.let)
			if err != nil {
				return nil, err
			}
			let = resolved.(bson.D)
		}
		return bson.D{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: nullable(l.from)},
			{Key: "let", Value: let},
			{Key: "pipeline", Value: pipeline},
			{Key: "as", Value: nullable(l.as)},
		}}}, nil
	}
	return bson.D{{Key: "$lookup", Value: bson.D{
		{Key: "from", Value: nullable(l.from)},
		{Key: "localField", Value: nullable(l.localField)},
		{Key: "foreignField", Value: nullable(l.foreignField)},
		{Key: "as", Value: nullable(l.as)},
	}}}, nil
}

func (l *Lookup) buildPipeline() (bson.A, error) {
	switch typed := l.pipeline.(type) {
	case *Builder:
		return typed.stageArray()
	case *Expr:
		doc, err := typed.Build()
		if err != nil {
			return nil, err
		}
		return bson.A{doc}, nil
	default:
		resolved, err := materialize(typed)
		if err != nil {
			return nil, err
		}
		list, ok := resolved.(bson.A)
		if !ok {
			return nil, &core.ErrInvalidPipelineArgument{Type: fmt.Sprintf("%T", typed)}
		}
		return list, nil
	}
}

func (l *Lookup) fail(err error) *Lookup {
	l.err = err
	return l
}

func (l *Lookup) resolve(fieldName string, class *core.ClassMetadata) (string, error) {
	if l.resolver == nil {
		return fieldName, nil
	}
	return l.resolver.Resolve(fieldName, class)
}

func (l *Lookup) lookupClass(name string) core.LookupResult {
	if l.metadata == nil {
		return core.LookupResult{Status: core.LookupNotMapped}
	}
	return l.metadata.Lookup(name)
}

func (l *Lookup) provider() core.MetadataProvider {
	if l.metadata == nil {
		return emptyProvider{}
	}
	return l.metadata
}

// joinable reports whether a reference stored with storeAs can be joined on
// with localField and foreignField.
func joinable(storeAs core.StoreAs) bool {
	return storeAs == core.StoreAsID || storeAs == core.StoreAsRef
}

// emptyProvider knows no class.
type emptyProvider struct{}

func (emptyProvider) Lookup(string) core.LookupResult {
	return core.LookupResult{Status: core.LookupNotMapped}
}
