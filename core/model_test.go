package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

type article struct {
	ID      string    `bson:"_id"`
	Title   string    `bson:"title"`
	Views   int       `bson:"views"`
	Created time.Time `bson:"created"`
}

type staticPipeline struct {
	pipeline mongo.Pipeline
	err      error
}

func (p staticPipeline) Pipeline() (mongo.Pipeline, error) {
	return p.pipeline, p.err
}

type fakeDriver struct {
	class    *ClassMetadata
	pipeline mongo.Pipeline
	rowList  []map[string]any
	err      error
}

func (d *fakeDriver) Connect(context.Context) error { return nil }
func (d *fakeDriver) Ping(context.Context) error    { return nil }
func (d *fakeDriver) Close(context.Context) error   { return nil }

func (d *fakeDriver) Aggregate(_ context.Context, class *ClassMetadata, pipeline mongo.Pipeline) ([]map[string]any, error) {
	d.class = class
	d.pipeline = pipeline
	return d.rowList, d.err
}

type ModelTestSuite struct {
	suite.Suite
	class  *ClassMetadata
	driver *fakeDriver
	model  *Model[article]
}

func (s *ModelTestSuite) SetupTest() {
	globalMiddlewareList = nil
	s.class = Document[article](Database[article]("blog"))
	s.driver = &fakeDriver{}
	s.model = NewModel[article](s.class, s.driver)
}

func (s *ModelTestSuite) TearDownTest() {
	globalMiddlewareList = nil
}

func (s *ModelTestSuite) TestAggregateDecodesRows() {
	created := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	s.driver.rowList = []map[string]any{
		{"_id": "a1", "title": "Hello", "views": int32(3), "created": primitive.NewDateTimeFromTime(created)},
		{"_id": "a2", "title": "World", "views": int64(7)},
	}
	pipeline := mongo.Pipeline{{{Key: "$limit", Value: 2}}}

	articleList, err := s.model.Aggregate(context.Background(), staticPipeline{pipeline: pipeline})
	s.Require().NoError(err)
	s.Equal([]article{
		{ID: "a1", Title: "Hello", Views: 3, Created: created},
		{ID: "a2", Title: "World", Views: 7},
	}, articleList)
	s.Same(s.class, s.driver.class)
	s.Equal(pipeline, s.driver.pipeline)
}

func (s *ModelTestSuite) TestPipelineErrorIsReturnedBeforeExecution() {
	sourceErr := errors.New("broken stage")
	_, err := s.model.Aggregate(context.Background(), staticPipeline{err: sourceErr})
	s.ErrorIs(err, sourceErr)
	s.Nil(s.driver.class)
}

func (s *ModelTestSuite) TestDriverErrorIsReturned() {
	s.driver.err = errors.New("connection reset")
	_, err := s.model.Aggregate(context.Background(), staticPipeline{})
	s.ErrorIs(err, s.driver.err)
}

func (s *ModelTestSuite) TestPostHooksRunPerDocument() {
	s.driver.rowList = []map[string]any{{"title": "a"}, {"title": "b"}}
	s.model.RegisterPostHook(PostAggregate, func(a *article) error {
		a.Title = strings.ToUpper(a.Title)
		return nil
	})

	articleList, err := s.model.Aggregate(context.Background(), staticPipeline{})
	s.Require().NoError(err)
	s.Equal("A", articleList[0].Title)
	s.Equal("B", articleList[1].Title)

	hookErr := errors.New("rejected")
	s.model.RegisterPostHook(PostAggregate, func(*article) error { return hookErr })
	_, err = s.model.Aggregate(context.Background(), staticPipeline{})
	s.ErrorIs(err, hookErr)
}

func (s *ModelTestSuite) TestMiddlewareWrapsExecution() {
	var orderList []string
	Use(func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			orderList = append(orderList, "outer:"+string(op))
			return next(ctx, op, payload)
		}
	})
	Use(func(next Handler) Handler {
		return func(ctx context.Context, op Operation, payload any) error {
			_, isPipeline := payload.(mongo.Pipeline)
			s.True(isPipeline)
			orderList = append(orderList, "inner")
			return next(ctx, op, payload)
		}
	})

	_, err := s.model.Aggregate(context.Background(), staticPipeline{pipeline: mongo.Pipeline{}})
	s.NoError(err)
	s.Equal([]string{"outer:aggregate", "inner"}, orderList)
}

func (s *ModelTestSuite) TestLoggingMiddleware() {
	observed, logs := observer.New(zap.DebugLevel)
	Use(LoggingMiddleware(zap.New(observed)))

	_, err := s.model.Aggregate(context.Background(), staticPipeline{})
	s.NoError(err)
	s.driver.err = errors.New("boom")
	_, err = s.model.Aggregate(context.Background(), staticPipeline{})
	s.Error(err)

	s.Equal(2, logs.FilterMessage("operation started").Len())
	s.Equal(1, logs.FilterMessage("operation succeeded").Len())
	failed := logs.FilterMessage("operation failed").All()
	s.Require().Len(failed, 1)
	s.Equal("boom", failed[0].ContextMap()["error"])

	started := logs.FilterMessage("operation started").All()
	s.Equal("aggregate", started[0].ContextMap()["op"])
	s.NotEqual(started[0].ContextMap()["op_id"], started[1].ContextMap()["op_id"])
	s.Len(started[0].ContextMap()["op_id"], 36)
}

func (s *ModelTestSuite) TestEmitsAggregateEvent() {
	received := make(chan AggregatePayload[article], 1)
	On(EventAggregate, func(payload any) {
		if p, ok := payload.(AggregatePayload[article]); ok {
			select {
			case received <- p:
			default:
			}
		}
	})
	s.driver.rowList = []map[string]any{{"title": "evented"}}
	pipeline := mongo.Pipeline{bson.D{{Key: "$limit", Value: 1}}}

	_, err := s.model.Aggregate(context.Background(), staticPipeline{pipeline: pipeline})
	s.Require().NoError(err)

	select {
	case payload := <-received:
		s.Same(s.class, payload.Class)
		s.Equal(pipeline, payload.Pipeline)
		s.Equal("evented", payload.DocList[0].Title)
	case <-time.After(time.Second):
		s.Fail("aggregate event not received")
	}
}

func (s *ModelTestSuite) TestEventGetsItsOwnCopyOfResults() {
	release := make(chan struct{})
	received := make(chan []article, 1)
	On(EventAggregate, func(payload any) {
		if p, ok := payload.(AggregatePayload[article]); ok && len(p.DocList) == 1 && p.DocList[0].ID == "copy" {
			<-release
			select {
			case received <- p.DocList:
			default:
			}
		}
	})
	s.driver.rowList = []map[string]any{{"_id": "copy", "title": "before"}}

	articleList, err := s.model.Aggregate(context.Background(), staticPipeline{})
	s.Require().NoError(err)
	articleList[0].Title = "after"
	close(release)

	select {
	case docList := <-received:
		s.Equal("before", docList[0].Title)
	case <-time.After(time.Second):
		s.Fail("aggregate event not received")
	}
}

func (s *ModelTestSuite) TestWithTenant() {
	tenant := s.model.WithTenant("tenant_a")
	s.Equal("tenant_a", tenant.Class().Database)
	s.Equal("blog", s.model.Class().Database)

	_, err := tenant.Aggregate(context.Background(), staticPipeline{})
	s.NoError(err)
	s.Equal("tenant_a", s.driver.class.Database)
}

func TestModelTestSuite(t *testing.T) {
	suite.Run(t, new(ModelTestSuite))
}
