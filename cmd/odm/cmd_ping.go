package main

import (
	"context"
	"fmt"

	driver "github.com/emulienfou/mongodb-odm/driver/mongo"
	"github.com/spf13/cobra"
)

func pingCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ping",
		Short: "Check the configured database is reachable",
		Args:  cobra.NoArgs,
		RunE:  cmdPing,
	}
}

func cmdPing(cmd *cobra.Command, args []string) error {
	if err := setup(); err != nil {
		return err
	}
	ctx, cancel := connectContext(cmd.Context(), conf)
	defer cancel()

	mongoDriver, err := driver.NewMongoDriverFromConfig(ctx, conf)
	if err != nil {
		return err
	}
	defer mongoDriver.Close(context.Background())

	fmt.Fprintf(cmd.OutOrStdout(), "ok: %s\n", conf.Database)
	return nil
}
