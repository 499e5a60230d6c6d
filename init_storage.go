package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"taskflow/config"
	"taskflow/storage"
)

func newInitStorageCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init-storage",
		Short: "Create the tables, queue and blob container if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			dbg, _ := strconv.ParseBool(os.Getenv("DEBUG"))
			logger := newLogger(dbg)
			logger.Info("storage init starting")

			cfg, err := config.LoadStorage()
			if err != nil {
				return fmt.Errorf("config: %w", err)
			}
			if err := storage.Provision(cmd.Context(), *cfg, logger); err != nil {
				return fmt.Errorf("provision: %w", err)
			}

			logger.Info("storage init complete")
			return nil
		},
	}
}
