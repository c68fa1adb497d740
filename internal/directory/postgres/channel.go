package postgres

import (
	"context"
	"database/sql"
	"fmt"
)

// The notify triggers read their channel from directory_notify_settings, so
// the listener and the database agree on one name.
const upsertChannel = `INSERT INTO directory_notify_settings (id, channel)
VALUES (TRUE, $1)
ON CONFLICT (id) DO UPDATE SET channel = EXCLUDED.channel`

// ConfigureChannel points the affiliation notify triggers at channel. An
// empty channel restores DefaultChannel.
func ConfigureChannel(ctx context.Context, db *sql.DB, channel string) error {
	if channel == "" {
		channel = DefaultChannel
	}
	if _, err := db.ExecContext(ctx, upsertChannel, channel); err != nil {
		return fmt.Errorf("configure notify channel %s: %w", channel, err)
	}
	return nil
}
