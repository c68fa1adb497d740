package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/frahmantamala/santega-authz/internal/affiliation"
	"github.com/frahmantamala/santega-authz/internal/establishment"
	"github.com/spf13/cobra"
)

var switchTo string

var resolveCmd = &cobra.Command{
	Use:   "resolve <professional-id>",
	Short: "Resolve a professional's establishment context and print it as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runResolve(cmd.Context(), args[0])
	},
}

func init() {
	resolveCmd.Flags().StringVar(&switchTo, "switch", "", "affiliation id to switch to after resolving")
}

func runResolve(parent context.Context, professionalID string) error {
	cfg, logger := mustLoad()
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := context.WithTimeout(parent, cfg.Directory.Timeout+10*time.Second)
	defer cancel()

	deps, err := initializeDependencies(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize dependencies: %w", err)
	}
	defer deps.Close()

	identity := affiliation.ProfessionalIdentity{ID: professionalID}
	resolver := establishment.NewResolver(identity, deps.Directory, deps.Preferences, establishment.WithLogger(logger))
	defer resolver.Close()

	resolved, err := resolver.Refresh(ctx)
	if err != nil {
		logger.Warn("resolution failed", "professional_id", professionalID, "error", err)
	}

	if switchTo != "" && err == nil {
		switcher := establishment.NewSwitchController(resolver, deps.Preferences, establishment.WithLogger(logger))
		next, serr := switcher.SwitchTo(ctx, switchTo)
		switch {
		case serr == nil:
			resolved = next
		case errors.Is(serr, establishment.ErrPreferenceNotPersisted):
			logger.Warn("switch not persisted", "affiliation_id", switchTo, "error", serr)
			resolved = next
		default:
			return fmt.Errorf("switch to %s: %w", switchTo, serr)
		}
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(establishment.ToContextResponse(resolved))
}
