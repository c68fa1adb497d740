package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
)

const DefaultChannel = "affiliation_changes"

// Listener turns Postgres NOTIFY payloads on a channel into callbacks. Each
// payload is the id of a professional whose affiliations changed.
type Listener struct {
	dsn        string
	channel    string
	onChange   func(ctx context.Context, professionalID string)
	logger     *slog.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

func NewListener(dsn, channel string, onChange func(ctx context.Context, professionalID string), logger *slog.Logger) *Listener {
	if channel == "" {
		channel = DefaultChannel
	}
	return &Listener{
		dsn:        dsn,
		channel:    channel,
		onChange:   onChange,
		logger:     logger,
		minBackoff: 500 * time.Millisecond,
		maxBackoff: 30 * time.Second,
	}
}

// Backoff yields exponentially growing retry delays capped at a maximum.
type Backoff struct {
	initial, limit, next time.Duration
}

func NewBackoff(initial, limit time.Duration) *Backoff {
	return &Backoff{initial: initial, limit: limit, next: initial}
}

// Next returns the delay to wait now and doubles the following one.
func (b *Backoff) Next() time.Duration {
	d := b.next
	b.next *= 2
	if b.next > b.limit {
		b.next = b.limit
	}
	return d
}

func (b *Backoff) Reset() {
	b.next = b.initial
}

// Run blocks until ctx is done, reconnecting with exponential backoff. The
// backoff starts over once a connection is listening again.
func (l *Listener) Run(ctx context.Context) error {
	backoff := NewBackoff(l.minBackoff, l.maxBackoff)
	for {
		err := l.listen(ctx, backoff.Reset)
		if ctx.Err() != nil {
			return nil
		}
		wait := backoff.Next()
		l.logger.Warn("affiliation listener disconnected",
			"channel", l.channel,
			"error", err,
			"retry_in", wait)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *Listener) listen(ctx context.Context, onListening func()) error {
	conn, err := pgx.Connect(ctx, l.dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{l.channel}.Sanitize()); err != nil {
		return fmt.Errorf("listen %s: %w", l.channel, err)
	}
	onListening()
	l.logger.Info("listening for affiliation changes", "channel", l.channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return err
		}
		l.Dispatch(ctx, n.Payload)
	}
}

// Dispatch handles one notification payload.
func (l *Listener) Dispatch(ctx context.Context, payload string) {
	professionalID := strings.TrimSpace(payload)
	if professionalID == "" {
		l.logger.Warn("ignoring empty affiliation notification", "channel", l.channel)
		return
	}
	l.onChange(ctx, professionalID)
}

// Notify emits a change notification for professionalID on channel.
func Notify(ctx context.Context, dsn, channel, professionalID string) error {
	if channel == "" {
		channel = DefaultChannel
	}
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "SELECT pg_notify($1, $2)", channel, professionalID); err != nil {
		return fmt.Errorf("notify %s: %w", channel, err)
	}
	return nil
}
