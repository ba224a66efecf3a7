// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines the class metadata system, which maps Go structs to
// collections, describes stored field names, embedded documents and reference
// mappings, and supports building metadata from a struct.
package core

import (
	"reflect"
	"strings"

	"github.com/gobuffalo/flect"
)

// IdentifierFieldName is the stored name of every document identifier.
const IdentifierFieldName = "_id"

// StoreAs defines how a reference to another document is persisted.
type StoreAs string

const (
	// StoreAsID stores only the identifier of the referenced document.
	StoreAsID StoreAs = "id"
	// StoreAsRef stores an embedded document holding the identifier under "id".
	StoreAsRef StoreAs = "ref"
	// StoreAsDBRef stores a DBRef ({$ref, $id}).
	StoreAsDBRef StoreAs = "dbRef"
	// StoreAsDBRefWithDB stores a DBRef including the database ({$ref, $id, $db}).
	StoreAsDBRefWithDB StoreAs = "dbRefWithDb"
)

// ReferenceFieldName returns the stored path that holds the identifier of a
// reference persisted with the given strategy.
//
// Example:
//
//	ReferenceFieldName(StoreAsID, "author")    // "author"
//	ReferenceFieldName(StoreAsRef, "author")   // "author.id"
//	ReferenceFieldName(StoreAsDBRef, "author") // "author.$id"
func ReferenceFieldName(storeAs StoreAs, pathPrefix string) string {
	if storeAs == StoreAsID {
		return pathPrefix
	}
	prefix := ""
	if storeAs == StoreAsDBRef || storeAs == StoreAsDBRefWithDB {
		prefix = "$"
	}
	if pathPrefix == "" {
		return prefix + "id"
	}
	return pathPrefix + "." + prefix + "id"
}

// ReferenceMapping describes a relationship from one mapped class to another.
//
// The owning side physically stores the reference. The inverse side stores
// nothing and is resolved by querying the owning side, which must be named by
// MappedBy (or, for repository-resolved relationships, by RepositoryMethod).
type ReferenceMapping struct {
	TargetClass      string  // Name of the referenced class
	StoreAs          StoreAs // Storage strategy of the reference
	IsOwningSide     bool    // Whether this side stores the reference
	Many             bool    // Whether this is a collection of references
	MappedBy         string  // Owning field on the target class (inverse side)
	RepositoryMethod string  // Repository method resolving the relation (inverse side)
}

// Field represents a struct field mapped to a stored document field.
type Field struct {
	StructFieldName   string            // Name of the field in the Go struct
	DatabaseFieldName string            // Name of the field in the stored document
	Type              reflect.Type      // Go type of the field
	IsIdentifier      bool              // Whether this field is the document identifier
	Embedded          string            // Class name of an embedded document, if any
	Reference         *ReferenceMapping // Reference mapping, if the field is a relationship
	MemoryOffset      uintptr           // Memory offset within the struct
}

// IsReference reports whether the field declares a relationship.
func (f *Field) IsReference() bool {
	return f.Reference != nil
}

// FieldOption is a function used to configure a Field.
type FieldOption func(*Field)

// Identifier marks the field as the document identifier, stored as "_id".
func Identifier() FieldOption {
	return func(f *Field) {
		f.IsIdentifier = true
		f.DatabaseFieldName = IdentifierFieldName
	}
}

// StoredAs renames the stored document field.
func StoredAs(name string) FieldOption {
	return func(f *Field) { f.DatabaseFieldName = name }
}

// Embed marks the field as an embedded document of the given class.
func Embed(class string) FieldOption {
	return func(f *Field) { f.Embedded = class }
}

// ReferenceOne declares an owning-side reference to a single document.
func ReferenceOne(target string, storeAs StoreAs) FieldOption {
	return func(f *Field) {
		f.Reference = &ReferenceMapping{TargetClass: target, StoreAs: storeAs, IsOwningSide: true}
	}
}

// ReferenceMany declares an owning-side reference to many documents.
func ReferenceMany(target string, storeAs StoreAs) FieldOption {
	return func(f *Field) {
		f.Reference = &ReferenceMapping{TargetClass: target, StoreAs: storeAs, IsOwningSide: true, Many: true}
	}
}

// MappedBy turns a reference into the inverse side of a relationship owned by
// the given field of the target class. It must follow ReferenceOne or
// ReferenceMany in the option list.
func MappedBy(field string) FieldOption {
	return func(f *Field) {
		if f.Reference == nil {
			panic("core: MappedBy requires a reference mapping")
		}
		f.Reference.IsOwningSide = false
		f.Reference.MappedBy = field
	}
}

// RepositoryMethod turns a reference into the inverse side of a relationship
// resolved by a repository method. It must follow ReferenceOne or
// ReferenceMany in the option list.
func RepositoryMethod(name string) FieldOption {
	return func(f *Field) {
		if f.Reference == nil {
			panic("core: RepositoryMethod requires a reference mapping")
		}
		f.Reference.IsOwningSide = false
		f.Reference.RepositoryMethod = name
	}
}

// ClassMetadata holds the mapping of one domain class to its collection.
//
// Metadata is built once at startup and treated as read-only afterwards, so
// it can be shared freely between goroutines.
type ClassMetadata struct {
	Name       string
	Database   string
	Collection string
	Sharded    bool
	Fields     []*Field

	fieldsByName   map[string]*Field
	fieldsByStored map[string]*Field
}

// NewClassMetadata creates metadata for a class from already built fields.
//
// It is used when the class is not backed by a Go struct, for example for
// metadata loaded from an external mapping.
func NewClassMetadata(name, collection string, fields ...*Field) *ClassMetadata {
	meta := &ClassMetadata{Name: name, Collection: collection, Fields: fields}
	meta.index()
	return meta
}

func (c *ClassMetadata) index() {
	c.fieldsByName = make(map[string]*Field, len(c.Fields))
	c.fieldsByStored = make(map[string]*Field, len(c.Fields))
	for _, field := range c.Fields {
		c.fieldsByName[field.StructFieldName] = field
		if _, ok := c.fieldsByStored[field.DatabaseFieldName]; !ok {
			c.fieldsByStored[field.DatabaseFieldName] = field
		}
	}
}

// FieldMapping returns the mapping of a field, looked up by its Go name first
// and by its stored name second.
func (c *ClassMetadata) FieldMapping(name string) (*Field, bool) {
	if field, ok := c.fieldsByName[name]; ok {
		return field, true
	}
	field, ok := c.fieldsByStored[name]
	return field, ok
}

// HasReference reports whether name is a relationship field of the class.
func (c *ClassMetadata) HasReference(name string) bool {
	field, ok := c.FieldMapping(name)
	return ok && field.IsReference()
}

// IsSharded reports whether the collection of the class is sharded.
func (c *ClassMetadata) IsSharded() bool {
	return c.Sharded
}

// CollectionName returns the collection the class is stored in.
func (c *ClassMetadata) CollectionName() string {
	return c.Collection
}

// Identifier returns the identifier field, or nil if none is mapped.
func (c *ClassMetadata) Identifier() *Field {
	if field, ok := c.fieldsByStored[IdentifierFieldName]; ok {
		return field
	}
	for _, field := range c.Fields {
		if field.IsIdentifier {
			return field
		}
	}
	return nil
}

// DocumentBuilder is used to construct class metadata from a Go struct.
//
// It collects field metadata using reflection and applies customization
// through DocumentOptions.
type DocumentBuilder[T any] struct {
	name           string
	database       string
	collection     string
	sharded        bool
	tagKey         string
	structType     reflect.Type
	fields         []*Field
	fieldsByOffset map[uintptr]*Field
}

// DocumentOption represents a function that customizes the document builder.
type DocumentOption[T any] func(*DocumentBuilder[T])

// TagKey sets the struct tag key used for stored field names ("bson" by default).
func TagKey[T any](key string) DocumentOption[T] {
	return func(builder *DocumentBuilder[T]) { builder.tagKey = key }
}

// ClassName overrides the class name, which defaults to the struct type name.
func ClassName[T any](name string) DocumentOption[T] {
	return func(builder *DocumentBuilder[T]) { builder.name = name }
}

// Collection sets the collection name for the class.
func Collection[T any](name string) DocumentOption[T] {
	return func(builder *DocumentBuilder[T]) { builder.collection = name }
}

// Database sets the database name for the class.
func Database[T any](name string) DocumentOption[T] {
	return func(builder *DocumentBuilder[T]) { builder.database = name }
}

// Sharded marks the collection of the class as sharded.
func Sharded[T any]() DocumentOption[T] {
	return func(builder *DocumentBuilder[T]) { builder.sharded = true }
}

// OverrideField allows modifying the metadata of a specific field
// (identifier, stored name, embedded document, reference, etc.).
func OverrideField[T any, F any](selector func(*T) *F, opts ...FieldOption) DocumentOption[T] {
	return func(builder *DocumentBuilder[T]) {
		if builder.fieldsByOffset == nil {
			return
		}
		offset := offsetOf(selector)
		field, ok := builder.fieldsByOffset[offset]
		if !ok {
			panic("core: OverrideField: field not found by selector")
		}
		for _, opt := range opts {
			opt(field)
		}
	}
}

// Document builds the ClassMetadata of T by reflecting on its struct fields
// and applying the given DocumentOptions.
//
// Stored names come from the struct tag (bson by default) and fall back to
// the lowercased field name. A field stored as "_id" is the identifier. When
// no collection is given, the class name is pluralized in snake case
// (BlogPost is stored in "blog_posts").
//
// Example:
//
//	postClass := core.Document[Post](
//		core.OverrideField(func(p *Post) *User { return &p.Author },
//			core.ReferenceOne("User", core.StoreAsID)),
//	)
func Document[T any](options ...DocumentOption[T]) *ClassMetadata {
	var zero T
	structType := reflect.TypeOf(zero)
	if structType.Kind() == reflect.Pointer {
		structType = structType.Elem()
	}

	builder := &DocumentBuilder[T]{structType: structType}

	// Apply options before building fields (ClassName/Collection/TagKey/etc.)
	for _, option := range options {
		option(builder)
	}
	tagKey := builder.tagKey
	if tagKey == "" {
		tagKey = "bson"
	}

	builder.fieldsByOffset = make(map[uintptr]*Field)
	for _, sf := range reflect.VisibleFields(structType) {
		if len(sf.Index) != 1 || !sf.IsExported() {
			continue
		}
		storedName, _, _ := strings.Cut(sf.Tag.Get(tagKey), ",")
		if storedName == "-" {
			continue
		}
		if storedName == "" {
			storedName = strings.ToLower(sf.Name)
		}

		field := &Field{
			StructFieldName:   sf.Name,
			DatabaseFieldName: storedName,
			Type:              sf.Type,
			IsIdentifier:      storedName == IdentifierFieldName,
			MemoryOffset:      sf.Offset,
		}
		builder.fields = append(builder.fields, field)
		builder.fieldsByOffset[sf.Offset] = field
	}

	// Re-apply options so that OverrideField can work after fields exist
	for _, option := range options {
		option(builder)
	}

	name := builder.name
	if name == "" {
		name = structType.Name()
	}
	collection := builder.collection
	if collection == "" {
		collection = flect.Pluralize(flect.Underscore(name))
	}

	meta := &ClassMetadata{
		Name:       name,
		Database:   builder.database,
		Collection: collection,
		Sharded:    builder.sharded,
		Fields:     builder.fields,
	}
	meta.index()
	return meta
}
