package cmd

import (
	"context"
	"fmt"
	"time"

	directoryPostgres "github.com/frahmantamala/santega-authz/internal/directory/postgres"
	"github.com/spf13/cobra"
)

var notifyCmd = &cobra.Command{
	Use:   "notify <professional-id>",
	Short: "Announce that a professional's affiliations changed",
	Long:  `Sends a change notification on the directory channel so running servers refresh the professional's context.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger := mustLoad()
		if cfg.Database.Source == "" {
			return errNoDatabase
		}

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := directoryPostgres.Notify(ctx, cfg.Database.Source, cfg.Directory.ListenChannel, args[0]); err != nil {
			return fmt.Errorf("failed to notify: %w", err)
		}
		logger.Info("directory change announced", "professional_id", args[0], "channel", cfg.Directory.ListenChannel)
		return nil
	},
}
