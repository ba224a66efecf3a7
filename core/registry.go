// Package core provides the fundamental building blocks of the mongodb-odm
// mapping layer.
// This file defines the metadata registry, the process-wide store of class
// metadata that pipelines resolve classes and relationships against.
package core

import "sync"

// LookupStatus tells which of the three possible outcomes a metadata lookup had.
type LookupStatus int

const (
	// LookupNotMapped means the name is not a mapped class.
	LookupNotMapped LookupStatus = iota
	// LookupFound means the class is mapped; Metadata is set.
	LookupFound
	// LookupFailed means the lookup itself failed; Err is set.
	LookupFailed
)

// LookupResult is the outcome of a metadata lookup.
//
// Callers switch on Status instead of treating "not a class" as an error, so
// a name that is not mapped can fall back to a literal collection name.
type LookupResult struct {
	Status   LookupStatus
	Metadata *ClassMetadata
	Err      error
}

// MetadataProvider gives read access to class metadata.
type MetadataProvider interface {
	// Lookup resolves a class name to its metadata.
	Lookup(name string) LookupResult
}

// Registry is the default MetadataProvider.
//
// It is populated once at startup and read concurrently afterwards.
type Registry struct {
	mutex     sync.RWMutex
	classList map[string]*ClassMetadata
}

var _ MetadataProvider = (*Registry)(nil)

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{classList: make(map[string]*ClassMetadata)}
}

// Register adds class metadata to the registry.
//
// Nothing is registered if any of the given classes is nil, has no name or is
// already registered.
func (r *Registry) Register(metaList ...*ClassMetadata) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	seen := make(map[string]struct{}, len(metaList))
	for _, meta := range metaList {
		if meta == nil || meta.Name == "" {
			return &ErrEmptyClassName{}
		}
		if _, ok := r.classList[meta.Name]; ok {
			return &ErrDuplicateClass{Class: meta.Name}
		}
		if _, ok := seen[meta.Name]; ok {
			return &ErrDuplicateClass{Class: meta.Name}
		}
		seen[meta.Name] = struct{}{}
	}
	for _, meta := range metaList {
		r.classList[meta.Name] = meta
	}
	return nil
}

// MustRegister is like Register but panics on error. It is meant for
// startup wiring.
func (r *Registry) MustRegister(metaList ...*ClassMetadata) {
	if err := r.Register(metaList...); err != nil {
		panic("core: " + err.Error())
	}
}

// Lookup resolves a class name to its metadata.
func (r *Registry) Lookup(name string) LookupResult {
	if name == "" {
		return LookupResult{Status: LookupFailed, Err: &ErrEmptyClassName{}}
	}
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	if meta, ok := r.classList[name]; ok {
		return LookupResult{Status: LookupFound, Metadata: meta}
	}
	return LookupResult{Status: LookupNotMapped}
}

// ClassMetadata returns the metadata of a class, or ErrNotMapped.
func (r *Registry) ClassMetadata(name string) (*ClassMetadata, error) {
	return ClassMetadataFrom(r, name)
}

// ClassMetadataFrom returns the metadata of a class from any provider, or
// ErrNotMapped when the provider does not know it.
func ClassMetadataFrom(provider MetadataProvider, name string) (*ClassMetadata, error) {
	result := provider.Lookup(name)
	switch result.Status {
	case LookupFound:
		return result.Metadata, nil
	case LookupFailed:
		return nil, result.Err
	default:
		return nil, &ErrNotMapped{Class: name}
	}
}
