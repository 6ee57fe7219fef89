package quota

import (
	"context"
	"database/sql"
	"time"

	"github.com/rs/zerolog/log"
)

// UsageRecord is the persistent per-user counter of free-tier invocations.
type UsageRecord struct {
	ID          int       `json:"id"`
	UserID      int       `json:"user_id"`
	Count       int       `json:"count"`
	LastResetAt time.Time `json:"last_reset_at"`
}

// Ledger persists usage counts in MySQL. Increment is a single atomic
// statement so concurrent requests for the same user never lose updates.
type Ledger struct {
	db *sql.DB
}

func NewLedger(db *sql.DB) *Ledger {
	return &Ledger{db: db}
}

func (l *Ledger) Get(ctx context.Context, userID int) (*UsageRecord, error) {
	row := l.db.QueryRowContext(ctx,
		`SELECT id, user_id, count, last_reset_at FROM usage_records WHERE user_id=? LIMIT 1`, userID)
	var rec UsageRecord
	err := row.Scan(&rec.ID, &rec.UserID, &rec.Count, &rec.LastResetAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// Increment upserts the record, creating it with count=1 or bumping count by
// one. The counter moves inside the database, not in a read-then-write in
// the application, so two simultaneous requests both land.
func (l *Ledger) Increment(ctx context.Context, userID int) error {
	_, err := l.db.ExecContext(ctx,
		`INSERT INTO usage_records (user_id, count) VALUES (?, 1)
		 ON DUPLICATE KEY UPDATE count = count + 1`, userID)
	return err
}

// Reset zeroes one user's counter, stamping the reset time.
func (l *Ledger) Reset(ctx context.Context, userID int) error {
	_, err := l.db.ExecContext(ctx,
		`UPDATE usage_records SET count = 0, last_reset_at = CURRENT_TIMESTAMP WHERE user_id=?`, userID)
	return err
}

// ResetAll zeroes every counter. Run on the billing-period boundary by the
// cron job wired in main.
func (l *Ledger) ResetAll(ctx context.Context) error {
	res, err := l.db.ExecContext(ctx,
		`UPDATE usage_records SET count = 0, last_reset_at = CURRENT_TIMESTAMP`)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil {
		log.Info().Int64("records", n).Msg("usage ledger reset")
	}
	return nil
}
