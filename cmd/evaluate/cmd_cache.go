package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dataset-eval/backend/internal/bootstrap"
	"github.com/dataset-eval/backend/pkg/logger"
)

func newCacheCommand(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the shared verdict cache",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete every classifier verdict stored in redis",
		Long: `Delete every classifier verdict stored in redis.

Run this after changing the model or the classifier prompts so that earlier
verdicts are not reused.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := root.load()
			if err != nil {
				return err
			}
			defer logger.Sync()

			client, err := bootstrap.Redis(cfg.Redis)
			if err != nil {
				return err
			}
			if client == nil {
				return errors.New("redis is not enabled in the configuration")
			}
			defer client.Close()

			removed, err := client.InvalidateVerdicts(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d cached verdicts\n", removed)
			return nil
		},
	})

	return cmd
}
