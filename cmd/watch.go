package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/core/events"
	"github.com/frahmantamala/santega-authz/internal/directory"
	directoryPostgres "github.com/frahmantamala/santega-authz/internal/directory/postgres"
	"github.com/spf13/cobra"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow directory change notifications",
	Long:  `Listens for affiliation changes and logs each professional's current affiliations as they change.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runWatch()
	},
}

func runWatch() error {
	cfg, logger := mustLoad()
	if cfg.Database.Source == "" {
		return errNoDatabase
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	deps, err := initializeDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	deps.Bus.Subscribe(events.EventTypeDirectoryChanged, summarizeChange(deps.Directory, logger))

	listener := directoryPostgres.NewListener(cfg.Database.Source, cfg.Directory.ListenChannel,
		func(ctx context.Context, professionalID string) {
			if err := deps.Bus.Publish(ctx, events.NewDirectoryChangedEvent(professionalID)); err != nil {
				logger.Warn("failed to publish directory change", "professional_id", professionalID, "error", err)
			}
		}, logger)

	logger.Info("watching directory changes", "channel", cfg.Directory.ListenChannel)
	err = listener.Run(ctx)

	closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if cerr := deps.Bus.Close(closeCtx); cerr != nil {
		logger.Warn("event handlers still running at exit", "error", cerr)
	}

	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func summarizeChange(client directory.Client, logger *slog.Logger) events.Handler {
	return func(ctx context.Context, e events.Event) error {
		changed, ok := e.(*events.DirectoryChangedEvent)
		if !ok {
			return nil
		}
		list, err := client.FetchAffiliations(ctx, changed.ProfessionalID)
		if err != nil {
			return fmt.Errorf("fetch affiliations for %s: %w", changed.ProfessionalID, err)
		}
		active := affiliation.Active(list)
		ids := make([]string, 0, len(active))
		for _, a := range affiliation.SortForSuggestion(active) {
			ids = append(ids, a.EstablishmentID)
		}
		logger.Info("affiliations changed",
			"professional_id", changed.ProfessionalID,
			"total", len(list),
			"active", len(active),
			"establishments", ids)
		return nil
	}
}
