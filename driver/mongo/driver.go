package driver

import (
	"context"
	"time"

	"github.com/emulienfou/mongodb-odm/core"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	mopt "go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

//region MongoDriver

// MongoDriver runs aggregation pipelines on MongoDB.
type MongoDriver struct {
	client          *mongo.Client
	defaultDatabase string
	logger          *zap.Logger
	allowDiskUse    bool
}

var _ core.Driver = (*MongoDriver)(nil)

// Option customizes a MongoDriver.
type Option func(*MongoDriver)

// WithLogger sets the logger pipelines are logged to at debug level.
func WithLogger(logger *zap.Logger) Option {
	return func(driver *MongoDriver) { driver.logger = logger }
}

// WithAllowDiskUse lets aggregation stages write temporary files.
func WithAllowDiskUse(allow bool) Option {
	return func(driver *MongoDriver) { driver.allowDiskUse = allow }
}

// NewMongoDriver connects to uri and checks the server is reachable.
// defaultDB is used for classes that do not name a database.
func NewMongoDriver(ctx context.Context, uri string, defaultDB string, options ...Option) (*MongoDriver, error) {
	return newMongoDriver(ctx, uri, defaultDB, 10*time.Second, options...)
}

// NewMongoDriverFromConfig connects using the settings of config.
func NewMongoDriverFromConfig(ctx context.Context, config *core.Config, options ...Option) (*MongoDriver, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	options = append([]Option{
		WithLogger(core.LoggerFromConfig(config)),
		WithAllowDiskUse(config.AllowDiskUse),
	}, options...)
	return newMongoDriver(ctx, config.URI, config.Database, config.ConnectTimeout, options...)
}

// NewMongoDriverFromClient wraps an already connected client.
func NewMongoDriverFromClient(client *mongo.Client, defaultDB string, options ...Option) *MongoDriver {
	driver := &MongoDriver{client: client, defaultDatabase: defaultDB, logger: zap.NewNop()}
	for _, option := range options {
		option(driver)
	}
	return driver
}

func newMongoDriver(ctx context.Context, uri string, defaultDB string, timeout time.Duration, options ...Option) (*MongoDriver, error) {
	opts := mopt.Client().ApplyURI(uri)
	if timeout > 0 {
		opts.SetConnectTimeout(timeout).SetServerSelectionTimeout(timeout)
	}
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, errors.Wrap(err, "mongo driver: connecting")
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, errors.Wrap(err, "mongo driver: ping")
	}
	return NewMongoDriverFromClient(client, defaultDB, options...), nil
}

func (driver *MongoDriver) dbFor(class *core.ClassMetadata) (*mongo.Database, error) {
	dbName := driver.defaultDatabase
	if class.Database != "" {
		dbName = class.Database
	}
	if dbName == "" {
		return nil, errors.Errorf("mongo driver: no database for class %q (set it on the class or the driver)", class.Name)
	}
	return driver.client.Database(dbName), nil
}

func (driver *MongoDriver) coll(class *core.ClassMetadata) (*mongo.Collection, error) {
	if class == nil {
		return nil, errors.New("mongo driver: class is nil")
	}
	if class.CollectionName() == "" {
		return nil, errors.Errorf("mongo driver: class %q has no collection", class.Name)
	}
	db, err := driver.dbFor(class)
	if err != nil {
		return nil, err
	}
	return db.Collection(class.CollectionName()), nil
}

// Connect checks the server is reachable.
func (driver *MongoDriver) Connect(ctx context.Context) error {
	return driver.client.Ping(ctx, nil)
}

// Ping checks the server is reachable.
func (driver *MongoDriver) Ping(ctx context.Context) error {
	return driver.client.Ping(ctx, nil)
}

// Close disconnects the client.
func (driver *MongoDriver) Close(ctx context.Context) error {
	return driver.client.Disconnect(ctx)
}

// Aggregate runs pipeline on the collection of class and returns every
// result document.
func (driver *MongoDriver) Aggregate(ctx context.Context, class *core.ClassMetadata, pipeline mongo.Pipeline) ([]map[string]any, error) {
	collection, err := driver.coll(class)
	if err != nil {
		return nil, err
	}
	if driver.logger.Core().Enabled(zap.DebugLevel) {
		driver.logger.Debug("running pipeline",
			zap.String("collection", collection.Name()),
			zap.String("pipeline", pipelineJSON(pipeline)))
	}

	cursor, err := collection.Aggregate(ctx, pipeline, aggregateOptions(driver.allowDiskUse))
	if err != nil {
		return nil, errors.Wrapf(err, "mongo driver: aggregate on %s", collection.Name())
	}
	defer cursor.Close(ctx)

	resultList := []map[string]any{}
	for cursor.Next(ctx) {
		var bsonMap bson.M
		if err := cursor.Decode(&bsonMap); err != nil {
			return nil, errors.Wrap(err, "mongo driver: decoding result")
		}
		resultList = append(resultList, map[string]any(bsonMap))
	}
	if err := cursor.Err(); err != nil {
		return nil, errors.Wrap(err, "mongo driver: reading cursor")
	}
	return resultList, nil
}

//endregion
