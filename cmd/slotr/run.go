package main

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/codewandler/slotr/core/cluster"
)

// withClient connects a client for the duration of fn, bounded by --timeout.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, c *cluster.Client) error) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), viper.GetDuration("timeout"))
	defer cancel()

	c, cl, err := newClient(ctx)
	defer cl.close()
	if err != nil {
		return err
	}
	return fn(ctx, c)
}
