// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines the field resolver, which translates domain field names
// (possibly dotted) into the paths stored in documents.
package core

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultResolverCacheSize is the number of resolved paths kept by a Resolver
// unless configured otherwise.
const DefaultResolverCacheSize = 1024

// FieldResolver translates a domain field name into its stored path.
type FieldResolver interface {
	// Resolve returns the stored path of fieldName on class. A nil class
	// returns fieldName unchanged.
	Resolve(fieldName string, class *ClassMetadata) (string, error)
}

// Resolver is the default FieldResolver, backed by a MetadataProvider.
//
// Each dotted segment is mapped to its stored name. Embedded documents switch
// resolution to the embedded class; a reference followed by its identifier
// ("author.id") becomes the path the reference key is stored under. Positional
// segments ("$", "$[]", array indexes) are kept as they are.
//
// Unknown segments are passed through unchanged, unless the resolver is
// strict, in which case ErrNotMapped is returned.
//
// Resolved paths are cached, since metadata does not change after startup.
// A Resolver is safe for concurrent use.
type Resolver struct {
	metadata  MetadataProvider
	strict    bool
	cacheSize int
	cache     *lru.Cache[resolverKey, string]
}

type resolverKey struct {
	class *ClassMetadata
	field string
}

var _ FieldResolver = (*Resolver)(nil)

// ResolverOption customizes a Resolver.
type ResolverOption func(*Resolver)

// WithStrict makes unknown fields fail with ErrNotMapped instead of being
// passed through.
func WithStrict(strict bool) ResolverOption {
	return func(r *Resolver) { r.strict = strict }
}

// WithCacheSize sets the number of cached paths. Zero disables the cache.
func WithCacheSize(size int) ResolverOption {
	return func(r *Resolver) { r.cacheSize = size }
}

// NewResolver creates a Resolver reading metadata from the given provider.
func NewResolver(metadata MetadataProvider, options ...ResolverOption) *Resolver {
	resolver := &Resolver{metadata: metadata, cacheSize: DefaultResolverCacheSize}
	for _, option := range options {
		option(resolver)
	}
	if resolver.cacheSize > 0 {
		if cache, err := lru.New[resolverKey, string](resolver.cacheSize); err == nil {
			resolver.cache = cache
		}
	}
	return resolver
}

// Strict reports whether unknown fields are rejected.
func (r *Resolver) Strict() bool {
	return r.strict
}

// Resolve returns the stored path of fieldName on class.
func (r *Resolver) Resolve(fieldName string, class *ClassMetadata) (string, error) {
	if class == nil || fieldName == "" {
		return fieldName, nil
	}
	key := resolverKey{class: class, field: fieldName}
	if r.cache != nil {
		if path, ok := r.cache.Get(key); ok {
			return path, nil
		}
	}
	path, err := r.resolve(fieldName, class)
	if err != nil {
		return "", err
	}
	if r.cache != nil {
		r.cache.Add(key, path)
	}
	return path, nil
}

func (r *Resolver) resolve(fieldName string, class *ClassMetadata) (string, error) {
	partList := strings.Split(fieldName, ".")
	resolvedList := make([]string, 0, len(partList))
	current := class

	for index := 0; index < len(partList); index++ {
		part := partList[index]
		if current == nil || isPositional(part) {
			resolvedList = append(resolvedList, part)
			continue
		}

		field, ok := current.FieldMapping(part)
		if !ok {
			if r.strict {
				return "", &ErrNotMapped{Class: current.Name, Field: part}
			}
			resolvedList = append(resolvedList, partList[index:]...)
			break
		}

		switch {
		case field.Reference != nil:
			if index+1 < len(partList) && r.isReferenceIdentifier(partList[index+1], field.Reference) {
				resolvedList = append(resolvedList, ReferenceFieldName(field.Reference.StoreAs, field.DatabaseFieldName))
				index++
			} else {
				resolvedList = append(resolvedList, field.DatabaseFieldName)
			}
			current = nil
		case field.Embedded != "":
			resolvedList = append(resolvedList, field.DatabaseFieldName)
			current = r.class(field.Embedded)
		default:
			resolvedList = append(resolvedList, field.DatabaseFieldName)
			current = nil
		}
	}
	return strings.Join(resolvedList, "."), nil
}

// isReferenceIdentifier reports whether part addresses the identifier of the
// referenced document.
func (r *Resolver) isReferenceIdentifier(part string, reference *ReferenceMapping) bool {
	switch part {
	case "id", "$id", IdentifierFieldName:
		return true
	}
	if target := r.class(reference.TargetClass); target != nil {
		if identifier := target.Identifier(); identifier != nil {
			return identifier.StructFieldName == part
		}
	}
	return false
}

func (r *Resolver) class(name string) *ClassMetadata {
	if r.metadata == nil {
		return nil
	}
	result := r.metadata.Lookup(name)
	if result.Status != LookupFound {
		return nil
	}
	return result.Metadata
}

// isPositional reports whether a path segment is an array position or a
// positional operator.
func isPositional(part string) bool {
	if part == "$" || strings.HasPrefix(part, "$[") {
		return true
	}
	_, err := strconv.Atoi(part)
	return err == nil
}
