package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/emulienfou/mongodb-odm/aggregation"
	"github.com/emulienfou/mongodb-odm/core"
	driver "github.com/emulienfou/mongodb-odm/driver/mongo"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

var aggregateCanonical bool

func aggregateCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "aggregate <collection> <pipeline.json>",
		Short: "Run a pipeline read from an extended JSON file",
		Long: `Run an aggregation pipeline on a collection of the configured database.

The pipeline file holds a JSON array of stages in MongoDB extended JSON,
for example:

  [{"$match": {"status": "paid"}}, {"$group": {"_id": "$customer", "total": {"$sum": "$total"}}}]

Use "-" to read the pipeline from stdin. Results are printed one document
per line.`,
		Args: cobra.ExactArgs(2),
		RunE: cmdAggregate,
	}
	c.Flags().BoolVar(&aggregateCanonical, "canonical", false, "print results in canonical extended JSON")
	return c
}

func cmdAggregate(cmd *cobra.Command, args []string) error {
	pipeline, err := readPipeline(cmd.InOrStdin(), args[1])
	if err != nil {
		return err
	}
	if err := setup(); err != nil {
		return err
	}

	ctx := cmd.Context()
	connectCtx, cancel := connectContext(ctx, conf)
	defer cancel()
	mongoDriver, err := driver.NewMongoDriverFromConfig(connectCtx, conf)
	if err != nil {
		return err
	}
	defer mongoDriver.Close(context.Background())

	rowList, err := runAggregate(ctx, conf, mongoDriver, args[0], pipeline)
	if err != nil {
		return err
	}
	return writeRows(cmd.OutOrStdout(), rowList, aggregateCanonical)
}

// rawStage is a stage document passed through as given.
type rawStage bson.D

func (s rawStage) Build() (bson.D, error) {
	return bson.D(s), nil
}

// runAggregate runs pipeline on collection through the model, so registered
// middleware sees the operation.
func runAggregate(ctx context.Context, conf *core.Config, drv core.Driver, collection string, pipeline mongo.Pipeline) ([]map[string]any, error) {
	registry := core.NewRegistry()
	class := core.NewClassMetadata(collection, collection)
	if err := registry.Register(class); err != nil {
		return nil, err
	}

	builder := aggregation.NewBuilder(registry, class, aggregation.WithConfig(conf))
	for _, doc := range pipeline {
		builder.AddStage(rawStage(doc))
	}
	return core.NewModel[map[string]any](class, drv).Aggregate(ctx, builder)
}

// readPipeline reads a JSON array of stages from path, or from stdin when
// path is "-".
func readPipeline(stdin io.Reader, path string) (mongo.Pipeline, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, errors.Wrap(err, "reading pipeline")
	}
	return parsePipeline(data)
}

// parsePipeline decodes an extended JSON array of stage documents.
func parsePipeline(data []byte) (mongo.Pipeline, error) {
	// Extended JSON must be a document, so the array is wrapped in one.
	wrapped := append(append([]byte(`{"pipeline":`), data...), '}')
	var holder struct {
		Pipeline mongo.Pipeline `bson:"pipeline"`
	}
	if err := bson.UnmarshalExtJSON(wrapped, false, &holder); err != nil {
		return nil, errors.Wrap(err, "parsing pipeline")
	}
	if holder.Pipeline == nil {
		return nil, errors.New("parsing pipeline: expected an array of stages")
	}
	return holder.Pipeline, nil
}

func writeRows(out io.Writer, rowList []map[string]any, canonical bool) error {
	for _, row := range rowList {
		data, err := bson.MarshalExtJSON(bson.M(row), canonical, false)
		if err != nil {
			return errors.Wrap(err, "encoding result")
		}
		if _, err := fmt.Fprintln(out, string(data)); err != nil {
			return err
		}
	}
	return nil
}
