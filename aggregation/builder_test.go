package aggregation

import (
	"context"
	"testing"

	"github.com/emulienfou/mongodb-odm/core"
	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type recordingDriver struct {
	class    *core.ClassMetadata
	pipeline mongo.Pipeline
	rowList  []map[string]any
}

func (d *recordingDriver) Connect(context.Context) error { return nil }
func (d *recordingDriver) Ping(context.Context) error    { return nil }
func (d *recordingDriver) Close(context.Context) error   { return nil }

func (d *recordingDriver) Aggregate(_ context.Context, class *core.ClassMetadata, pipeline mongo.Pipeline) ([]map[string]any, error) {
	d.class = class
	d.pipeline = pipeline
	return d.rowList, nil
}

type BuilderTestSuite struct {
	suite.Suite
	fixtures fixtures
	builder  *Builder
}

func (s *BuilderTestSuite) SetupTest() {
	s.fixtures = newFixtures()
	s.builder = NewBuilder(s.fixtures.registry, s.fixtures.post)
}

func (s *BuilderTestSuite) TestPipelineKeepsStageOrder() {
	s.builder.Match(bson.D{{Key: "Views", Value: bson.D{{Key: "$gt", Value: 10}}}})
	s.builder.Lookup("Author").Alias("author")
	s.builder.Unwind("author")
	s.builder.Group().
		Field("_id").Expression("$author.name").
		Field("posts").Sum(1)
	s.builder.Sort(bson.D{{Key: "posts", Value: -1}})
	s.builder.Skip(10)
	s.builder.Limit(5)

	pipeline, err := s.builder.Pipeline()
	s.NoError(err)
	s.Equal(mongo.Pipeline{
		{{Key: "$match", Value: bson.D{{Key: "views", Value: bson.D{{Key: "$gt", Value: 10}}}}}},
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: "users"},
			{Key: "localField", Value: "author_id"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "author"},
		}}},
		{{Key: "$unwind", Value: "$author"}},
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: "$author.name"},
			{Key: "posts", Value: bson.D{{Key: "$sum", Value: 1}}},
		}}},
		{{Key: "$sort", Value: bson.D{{Key: "posts", Value: -1}}}},
		{{Key: "$skip", Value: int64(10)}},
		{{Key: "$limit", Value: int64(5)}},
	}, pipeline)
}

func (s *BuilderTestSuite) TestPipelineStopsAtFirstError() {
	s.builder.Limit(1)
	s.builder.Lookup("Reviewer")
	s.builder.Group().Sum(1)

	pipeline, err := s.builder.Pipeline()
	s.Nil(pipeline)
	var target *core.ErrUnsupportedReferenceStorage
	s.ErrorAs(err, &target)
	s.Contains(err.Error(), "building stage 1")
}

func (s *BuilderTestSuite) TestStageBuilderBackReference() {
	lookup := s.builder.Lookup("Author")
	lookup.Builder().Limit(1)
	s.Len(s.builder.Stages(), 2)
}

func (s *BuilderTestSuite) TestAddStage() {
	custom := s.builder.Expr().Field("$sample").Expression(bson.D{{Key: "size", Value: 3}})
	s.builder.AddStage(custom).Limit(3)

	pipeline, err := s.builder.Pipeline()
	s.NoError(err)
	s.Equal(mongo.Pipeline{
		{{Key: "$sample", Value: bson.D{{Key: "size", Value: 3}}}},
		{{Key: "$limit", Value: int64(3)}},
	}, pipeline)
}

func (s *BuilderTestSuite) TestMatchResolvesFieldNames() {
	match := s.builder.Match(bson.D{
		{Key: "Title", Value: "hello"},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "Views", Value: bson.D{{Key: "$gte", Value: 100}}}},
			bson.D{{Key: "Author", Value: nil}},
		}},
		{Key: "$expr", Value: s.builder.Expr().Gt("$Views", 3)},
	})

	doc, err := match.Build()
	s.NoError(err)
	s.Equal(bson.D{{Key: "$match", Value: bson.D{
		{Key: "title", Value: "hello"},
		{Key: "$or", Value: bson.A{
			bson.D{{Key: "views", Value: bson.D{{Key: "$gte", Value: 100}}}},
			bson.D{{Key: "author_id", Value: nil}},
		}},
		{Key: "$expr", Value: bson.D{{Key: "$gt", Value: bson.A{"$views", 3}}}},
	}}}, doc)
}

func (s *BuilderTestSuite) TestSortResolvesFieldNames() {
	doc, err := s.builder.Sort(bson.D{{Key: "Views", Value: -1}}).By("Title", 1).Build()
	s.NoError(err)
	s.Equal(bson.D{{Key: "$sort", Value: bson.D{
		{Key: "views", Value: -1},
		{Key: "title", Value: 1},
	}}}, doc)
}

func (s *BuilderTestSuite) TestUnwind() {
	doc, err := s.builder.Unwind("$Tags").Build()
	s.NoError(err)
	s.Equal(bson.D{{Key: "$unwind", Value: "$tags"}}, doc)

	doc, err = s.builder.Unwind("Tags").
		IncludeArrayIndex("tagIndex").
		PreserveNullAndEmptyArrays(true).
		Build()
	s.NoError(err)
	s.Equal(bson.D{{Key: "$unwind", Value: bson.D{
		{Key: "path", Value: "$tags"},
		{Key: "includeArrayIndex", Value: "tagIndex"},
		{Key: "preserveNullAndEmptyArrays", Value: true},
	}}}, doc)
}

func (s *BuilderTestSuite) TestProjectAndAddFields() {
	doc, err := s.builder.Project().
		Includes("Title", "Views").
		Excludes("ID").
		Field("tagCount").Expression(s.builder.Expr().Operator("$size", "$Tags")).
		Build()
	s.NoError(err)
	s.Equal(bson.D{{Key: "$project", Value: bson.D{
		{Key: "title", Value: 1},
		{Key: "views", Value: 1},
		{Key: "_id", Value: 0},
		{Key: "tagCount", Value: bson.D{{Key: "$size", Value: "$tags"}}},
	}}}, doc)

	doc, err = s.builder.AddFields().
		Field("popular").Expression(s.builder.Expr().Gte("$Views", 100)).
		Build()
	s.NoError(err)
	s.Equal(bson.D{{Key: "$addFields", Value: bson.D{
		{Key: "popular", Value: bson.D{{Key: "$gte", Value: bson.A{"$views", 100}}}},
	}}}, doc)
}

func (s *BuilderTestSuite) TestStrictStagesFail() {
	builder := NewBuilder(s.fixtures.registry, s.fixtures.post,
		WithResolver(core.NewResolver(s.fixtures.registry, core.WithStrict(true))))
	var target *core.ErrNotMapped

	s.ErrorAs(builder.Match(bson.D{{Key: "Missing", Value: 1}}).Err(), &target)
	s.ErrorAs(builder.Sort(bson.D{{Key: "Missing", Value: 1}}).Err(), &target)
	s.ErrorAs(builder.Unwind("Missing").Err(), &target)
	s.ErrorAs(builder.Project().Includes("Missing").Err(), &target)
}

func (s *BuilderTestSuite) TestExecuteRunsPipelineOnClass() {
	driver := &recordingDriver{rowList: []map[string]any{{"_id": "a"}}}
	s.builder.Limit(1)

	rowList, err := s.builder.Execute(context.Background(), driver)
	s.NoError(err)
	s.Equal(driver.rowList, rowList)
	s.Same(s.fixtures.post, driver.class)
	s.Equal(mongo.Pipeline{{{Key: "$limit", Value: int64(1)}}}, driver.pipeline)
}

func (s *BuilderTestSuite) TestExecuteRequiresClass() {
	driver := &recordingDriver{}
	_, err := NewBuilder(s.fixtures.registry, nil).Execute(context.Background(), driver)
	s.Error(err)
	s.Nil(driver.pipeline)
}

func (s *BuilderTestSuite) TestExecuteDoesNotRunBrokenPipeline() {
	driver := &recordingDriver{}
	s.builder.Lookup("Shard")

	_, err := s.builder.Execute(context.Background(), driver)
	var target *core.ErrShardedCollection
	s.ErrorAs(err, &target)
	s.Nil(driver.pipeline)
}

func (s *BuilderTestSuite) TestBuilderUsedAsItsOwnSubPipelineFails() {
	s.builder.Lookup("Author").Pipeline(s.builder)

	_, err := s.builder.Pipeline()
	var target *core.ErrCyclicExpression
	s.ErrorAs(err, &target)

	_, err = s.builder.Pipeline()
	s.ErrorAs(err, &target)
}

func (s *BuilderTestSuite) TestWithConfigBuildsResolver() {
	strict := NewBuilder(s.fixtures.registry, s.fixtures.post,
		WithConfig(&core.Config{StrictFieldResolution: true, ResolverCacheSize: 8}))
	s.True(strict.Resolver().(*core.Resolver).Strict())

	strict.Match(bson.D{{Key: "Unknown", Value: 1}})
	_, err := strict.Pipeline()
	var target *core.ErrNotMapped
	s.ErrorAs(err, &target)

	lenient := NewBuilder(s.fixtures.registry, s.fixtures.post, WithConfig(&core.Config{}))
	s.False(lenient.Resolver().(*core.Resolver).Strict())

	custom := core.NewResolver(s.fixtures.registry)
	s.Same(custom, NewBuilder(s.fixtures.registry, s.fixtures.post,
		WithConfig(&core.Config{StrictFieldResolution: true}), WithResolver(custom)).Resolver())
}

func TestBuilderTestSuite(t *testing.T) {
	suite.Run(t, new(BuilderTestSuite))
}
