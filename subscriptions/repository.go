package subscriptions

import (
	"context"
	"database/sql"
	"time"
)

type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

const subColumns = `id, user_id, provider, provider_subscription_id, status, current_period_end, created_at, updated_at`

func scanSubscription(row *sql.Row) (*Subscription, error) {
	var s Subscription
	err := row.Scan(&s.ID, &s.UserID, &s.Provider, &s.ProviderSubscriptionID,
		&s.Status, &s.CurrentPeriodEnd, &s.CreatedAt, &s.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetByUserID returns the user's subscription row or nil. At most one row
// exists per user (user_id is unique).
func (r *Repository) GetByUserID(ctx context.Context, userID int) (*Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subColumns+` FROM subscriptions WHERE user_id=? LIMIT 1`, userID)
	return scanSubscription(row)
}

func (r *Repository) GetByProviderSubscriptionID(ctx context.Context, providerSubID string) (*Subscription, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+subColumns+` FROM subscriptions WHERE provider_subscription_id=? LIMIT 1`, providerSubID)
	return scanSubscription(row)
}

// Upsert writes the user's single subscription row. A fresh checkout for a
// user with a canceled subscription reuses the row; history lives with the
// billing provider.
func (r *Repository) Upsert(ctx context.Context, s *Subscription) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO subscriptions (user_id, provider, provider_subscription_id, status, current_period_end)
		 VALUES (?,?,?,?,?)
		 ON DUPLICATE KEY UPDATE provider=VALUES(provider),
			provider_subscription_id=VALUES(provider_subscription_id),
			status=VALUES(status),
			current_period_end=VALUES(current_period_end)`,
		s.UserID, s.Provider, s.ProviderSubscriptionID, s.Status, s.CurrentPeriodEnd)
	if err != nil {
		return err
	}
	if id, err := res.LastInsertId(); err == nil && id > 0 {
		s.ID = int(id)
	}
	return nil
}

// UpdateStatusByProviderSubscriptionID applies a webhook-driven transition.
// Rows are never deleted; cancellation is a status change.
func (r *Repository) UpdateStatusByProviderSubscriptionID(ctx context.Context, providerSubID string, status Status, periodEnd *time.Time) error {
	if periodEnd != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE subscriptions SET status=?, current_period_end=? WHERE provider_subscription_id=?`,
			status, periodEnd, providerSubID)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status=? WHERE provider_subscription_id=?`,
		status, providerSubID)
	return err
}

// UpdateStatusByUserID is the checkout-confirmation variant keyed by the
// user instead of the provider id.
func (r *Repository) UpdateStatusByUserID(ctx context.Context, userID int, status Status, periodEnd *time.Time) error {
	if periodEnd != nil {
		_, err := r.db.ExecContext(ctx,
			`UPDATE subscriptions SET status=?, current_period_end=? WHERE user_id=?`,
			status, periodEnd, userID)
		return err
	}
	_, err := r.db.ExecContext(ctx,
		`UPDATE subscriptions SET status=? WHERE user_id=?`, status, userID)
	return err
}
