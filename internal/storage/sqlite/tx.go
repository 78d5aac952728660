package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/weftworks/weft/internal/types"
)

// beginImmediateWithRetry starts an IMMEDIATE transaction on conn, retrying
// with exponential backoff while the database is busy. IMMEDIATE takes the
// write lock up front so concurrent writers serialize at BEGIN instead of
// deadlocking mid-transaction.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn) error {
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 10 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = 5 * time.Second

	return backoff.Retry(func() error {
		_, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE")
		if err == nil {
			return nil
		}
		if isBusy(err) {
			return err // retryable
		}
		return backoff.Permanent(err)
	}, backoff.WithContext(bo, ctx))
}

func isBusy(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// withTx runs fn inside an IMMEDIATE transaction on a dedicated connection.
// Raw BEGIN/COMMIT on one connection is required because database/sql's
// pool would otherwise spread the statements across connections. Rolls back
// on error or panic; rollback uses a background context so cancellation
// cannot leave the transaction open.
func withTx(ctx context.Context, db *sql.DB, fn func(ctx context.Context, conn *sql.Conn) error) error {
	conn, err := db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer func() { _ = conn.Close() }()

	if err := beginImmediateWithRetry(ctx, conn); err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	if err := fn(ctx, conn); err != nil {
		return err
	}

	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// recordEvent appends one audit log entry on the transaction's connection.
func recordEvent(ctx context.Context, conn *sql.Conn, ev types.Event) error {
	createdAt := ev.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}
	_, err := conn.ExecContext(ctx, `
		INSERT INTO events (issue_id, event_type, actor, old_value, new_value, comment, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.IssueID, string(ev.Type), ev.Actor, ev.OldValue, ev.NewValue, ev.Comment, createdAt)
	if err != nil {
		return fmt.Errorf("recording %s event: %w", ev.Type, err)
	}
	return nil
}
