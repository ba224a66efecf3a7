package core

import "fmt"

// ErrNotMapped is returned when a class or a field has no metadata entry.
// Field is empty when the class itself is unknown.
type ErrNotMapped struct {
	Class string
	Field string
}

func (e *ErrNotMapped) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("class %q is not mapped", e.Class)
	}
	return fmt.Sprintf("field %q is not mapped on class %q", e.Field, e.Class)
}

// ErrEmptyClassName is returned when metadata is looked up or registered
// without a class name.
type ErrEmptyClassName struct{}

func (e *ErrEmptyClassName) Error() string { return "class name is empty" }

// ErrDuplicateClass is returned when the same class is registered twice.
type ErrDuplicateClass struct {
	Class string
}

func (e *ErrDuplicateClass) Error() string {
	return fmt.Sprintf("class %q is already registered", e.Class)
}

// ErrShardedCollection is returned when a sharded collection is used as the
// target of a $lookup stage. The database does not support it.
type ErrShardedCollection struct {
	Class string
}

func (e *ErrShardedCollection) Error() string {
	return fmt.Sprintf("cannot use class %q in a $lookup stage: its collection is sharded", e.Class)
}

// ErrReferenceNotFound is returned when a relationship that was expected on a
// class has no mapping.
type ErrReferenceNotFound struct {
	Class string
	Field string
}

func (e *ErrReferenceNotFound) Error() string {
	return fmt.Sprintf("no reference mapping %q found on class %q", e.Field, e.Class)
}

// ErrUnsupportedReferenceStorage is returned when a reference is stored in a
// way that cannot be translated to a localField/foreignField pair.
type ErrUnsupportedReferenceStorage struct {
	Class   string
	Field   string
	StoreAs StoreAs
}

func (e *ErrUnsupportedReferenceStorage) Error() string {
	return fmt.Sprintf("cannot use reference %q of class %q in a $lookup stage: references stored as %q are not supported", e.Field, e.Class, e.StoreAs)
}

// ErrUnsupportedInverseResolution is returned when an inverse-side reference
// is resolved by a repository method or declares no mapped-by field.
type ErrUnsupportedInverseResolution struct {
	Class string
	Field string
}

func (e *ErrUnsupportedInverseResolution) Error() string {
	return fmt.Sprintf("cannot use inverse reference %q of class %q in a $lookup stage: only references with mappedBy and no repositoryMethod are supported", e.Field, e.Class)
}

// ErrInvalidPipelineArgument is returned when a $lookup sub-pipeline is
// neither a sequence of stages nor a pipeline builder.
type ErrInvalidPipelineArgument struct {
	Type string
}

func (e *ErrInvalidPipelineArgument) Error() string {
	return fmt.Sprintf("pipeline expects an aggregation builder, an expression or a sequence of stages, got %s", e.Type)
}

// ErrNoCurrentField is returned when a field-bound operator is used on an
// expression before any field was selected.
type ErrNoCurrentField struct {
	Operator string
}

func (e *ErrNoCurrentField) Error() string {
	return fmt.Sprintf("%s requires a current field: call Field first", e.Operator)
}

// ErrCyclicExpression is returned when an expression or a pipeline builder
// contains itself, directly or through nested values.
type ErrCyclicExpression struct{}

func (e *ErrCyclicExpression) Error() string {
	return "expression contains itself"
}
