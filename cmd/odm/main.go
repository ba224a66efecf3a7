// Command odm runs aggregation pipelines against the database described by an
// ODM configuration file.
package main

import (
	"context"
	"os"

	"github.com/emulienfou/mongodb-odm/core"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cpath  string
	conf   *core.Config
	logger *zap.Logger
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	c := &cobra.Command{
		Use:          "odm",
		Short:        "Run aggregation pipelines with mongodb-odm",
		SilenceUsage: true,
	}
	c.PersistentFlags().StringVar(&cpath, "config", "", "path to the config file (settings may also come from ODM_* variables)")
	c.AddCommand(pingCmd())
	c.AddCommand(aggregateCmd())
	return c
}

// setup loads the configuration and the logger shared by every command.
func setup() error {
	var err error
	if conf, err = core.ReadConfig(cpath); err != nil {
		return errors.Wrap(err, "loading config")
	}
	logger = core.LoggerFromConfig(conf)
	core.Use(core.LoggingMiddleware(logger))
	return nil
}

// connectContext bounds ctx by the configured connect timeout. A zero timeout
// means no bound.
func connectContext(ctx context.Context, conf *core.Config) (context.Context, context.CancelFunc) {
	if conf.ConnectTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, conf.ConnectTimeout)
}
