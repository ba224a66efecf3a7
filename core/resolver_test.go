package core

import (
	"testing"

	"github.com/stretchr/testify/suite"
)

type countingProvider struct {
	MetadataProvider
	calls int
}

func (p *countingProvider) Lookup(name string) LookupResult {
	p.calls++
	return p.MetadataProvider.Lookup(name)
}

type ResolverTestSuite struct {
	suite.Suite
	registry *Registry
	post     *ClassMetadata
	user     *ClassMetadata
}

func (s *ResolverTestSuite) SetupTest() {
	s.user = NewClassMetadata("User", "users",
		&Field{StructFieldName: "ID", DatabaseFieldName: IdentifierFieldName, IsIdentifier: true},
		&Field{StructFieldName: "Name", DatabaseFieldName: "name"},
		&Field{StructFieldName: "Address", DatabaseFieldName: "addr", Embedded: "Address"},
	)
	address := NewClassMetadata("Address", "",
		&Field{StructFieldName: "ZipCode", DatabaseFieldName: "zip"},
		&Field{StructFieldName: "Geo", DatabaseFieldName: "geo", Embedded: "Geo"},
	)
	geo := NewClassMetadata("Geo", "",
		&Field{StructFieldName: "Latitude", DatabaseFieldName: "lat"},
	)
	s.post = NewClassMetadata("Post", "posts",
		&Field{StructFieldName: "ID", DatabaseFieldName: IdentifierFieldName, IsIdentifier: true},
		&Field{StructFieldName: "Title", DatabaseFieldName: "t"},
		&Field{StructFieldName: "Author", DatabaseFieldName: "author_id", Reference: &ReferenceMapping{TargetClass: "User", StoreAs: StoreAsID, IsOwningSide: true}},
		&Field{StructFieldName: "Editor", DatabaseFieldName: "editor", Reference: &ReferenceMapping{TargetClass: "User", StoreAs: StoreAsRef, IsOwningSide: true}},
		&Field{StructFieldName: "Reviewer", DatabaseFieldName: "reviewer", Reference: &ReferenceMapping{TargetClass: "User", StoreAs: StoreAsDBRef, IsOwningSide: true}},
		&Field{StructFieldName: "Comments", DatabaseFieldName: "comments", Embedded: "Comment"},
	)
	s.registry = NewRegistry()
	s.registry.MustRegister(s.user, address, geo, s.post)
}

func (s *ResolverTestSuite) TestResolvesPaths() {
	resolver := NewResolver(s.registry)
	testCases := []struct {
		class    *ClassMetadata
		field    string
		expected string
	}{
		{s.post, "Title", "t"},
		{s.post, "t", "t"},
		{s.post, "ID", "_id"},
		{s.post, "_id", "_id"},
		{s.post, "Author", "author_id"},
		{s.post, "Author.id", "author_id"},
		{s.post, "Author.ID", "author_id"},
		{s.post, "Author.Name", "author_id.Name"},
		{s.post, "Editor.id", "editor.id"},
		{s.post, "Editor._id", "editor.id"},
		{s.post, "Reviewer.$id", "reviewer.$id"},
		{s.post, "Reviewer", "reviewer"},
		{s.user, "Address.ZipCode", "addr.zip"},
		{s.user, "Address.Geo.Latitude", "addr.geo.lat"},
		{s.user, "Address.Unknown.deep", "addr.Unknown.deep"},
		{s.post, "Comments.0.Text", "comments.0.Text"},
		{s.user, "Address.$.ZipCode", "addr.$.zip"},
		{s.post, "Unknown.Title", "Unknown.Title"},
		{s.post, "", ""},
		{nil, "Title", "Title"},
	}
	for _, tc := range testCases {
		path, err := resolver.Resolve(tc.field, tc.class)
		s.NoError(err, tc.field)
		s.Equal(tc.expected, path, tc.field)
	}
}

func (s *ResolverTestSuite) TestStrictRejectsUnknownFields() {
	resolver := NewResolver(s.registry, WithStrict(true))
	s.True(resolver.Strict())

	_, err := resolver.Resolve("Address.Unknown", s.user)
	var target *ErrNotMapped
	s.ErrorAs(err, &target)
	s.Equal("Address", target.Class)
	s.Equal("Unknown", target.Field)
	s.Equal(`field "Unknown" is not mapped on class "Address"`, err.Error())

	path, err := resolver.Resolve("Author.Name", s.post)
	s.NoError(err)
	s.Equal("author_id.Name", path)
}

func (s *ResolverTestSuite) TestCachesResolvedPaths() {
	provider := &countingProvider{MetadataProvider: s.registry}
	resolver := NewResolver(provider)

	for i := 0; i < 3; i++ {
		path, err := resolver.Resolve("Address.ZipCode", s.user)
		s.NoError(err)
		s.Equal("addr.zip", path)
	}
	s.Equal(1, provider.calls)
}

func (s *ResolverTestSuite) TestCacheCanBeDisabled() {
	provider := &countingProvider{MetadataProvider: s.registry}
	resolver := NewResolver(provider, WithCacheSize(0))

	for i := 0; i < 3; i++ {
		_, err := resolver.Resolve("Address.ZipCode", s.user)
		s.NoError(err)
	}
	s.Equal(3, provider.calls)
}

func (s *ResolverTestSuite) TestErrorsAreNotCached() {
	provider := &countingProvider{MetadataProvider: s.registry}
	resolver := NewResolver(provider, WithStrict(true))

	for i := 0; i < 2; i++ {
		_, err := resolver.Resolve("Address.Missing", s.user)
		s.Error(err)
	}
	s.Equal(2, provider.calls)
}

func (s *ResolverTestSuite) TestWithoutProvider() {
	resolver := NewResolver(nil)
	path, err := resolver.Resolve("Address.ZipCode", s.user)
	s.NoError(err)
	s.Equal("addr.ZipCode", path)
}

func TestResolverTestSuite(t *testing.T) {
	suite.Run(t, new(ResolverTestSuite))
}
