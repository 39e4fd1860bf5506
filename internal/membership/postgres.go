// internal/membership/postgres.go
package membership

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// PostgresLinkageRegistry is the durable registry variant.
type PostgresLinkageRegistry struct {
	db *sql.DB
}

func NewPostgresLinkageRegistry(db *sql.DB) *PostgresLinkageRegistry {
	return &PostgresLinkageRegistry{db: db}
}

func (r *PostgresLinkageRegistry) Link(ctx context.Context, telegramUserID int64, websiteUserID string) error {
	query := `INSERT INTO account_links (telegram_user_id, website_user_id)
		VALUES ($1, $2)
		ON CONFLICT (telegram_user_id) DO UPDATE SET website_user_id = EXCLUDED.website_user_id`
	if _, err := r.db.ExecContext(ctx, query, telegramUserID, websiteUserID); err != nil {
		return fmt.Errorf("link upsert: %w", err)
	}
	return nil
}

func (r *PostgresLinkageRegistry) Lookup(ctx context.Context, telegramUserID int64) (string, bool, error) {
	var websiteUserID string
	query := `SELECT website_user_id FROM account_links WHERE telegram_user_id = $1`
	err := r.db.QueryRowContext(ctx, query, telegramUserID).Scan(&websiteUserID)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("link lookup: %w", err)
	}
	return websiteUserID, true, nil
}

// PostgresPaymentLedger is the durable ledger variant. The unique constraint
// on telegram_user_id makes the duplicate check atomic.
type PostgresPaymentLedger struct {
	db *sql.DB
}

func NewPostgresPaymentLedger(db *sql.DB) *PostgresPaymentLedger {
	return &PostgresPaymentLedger{db: db}
}

func (l *PostgresPaymentLedger) Record(ctx context.Context, rec *PaymentRecord) error {
	query := `INSERT INTO membership_payments (telegram_user_id, website_user_id, charge_id, amount, currency, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (telegram_user_id) DO NOTHING`
	res, err := l.db.ExecContext(ctx, query,
		rec.TelegramUserID, rec.WebsiteUserID, rec.ChargeID, rec.Amount, rec.Currency, rec.PaidAt)
	if err != nil {
		return fmt.Errorf("payment record: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("payment record: %w", err)
	}
	if affected == 0 {
		return ErrDuplicatePayment
	}
	return nil
}

func (l *PostgresPaymentLedger) Get(ctx context.Context, telegramUserID int64) (*PaymentRecord, bool, error) {
	var rec PaymentRecord
	query := `SELECT telegram_user_id, website_user_id, charge_id, amount, currency, paid_at
		FROM membership_payments WHERE telegram_user_id = $1`
	err := l.db.QueryRowContext(ctx, query, telegramUserID).Scan(
		&rec.TelegramUserID, &rec.WebsiteUserID, &rec.ChargeID, &rec.Amount, &rec.Currency, &rec.PaidAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("payment get: %w", err)
	}
	return &rec, true, nil
}

func (l *PostgresPaymentLedger) Remove(ctx context.Context, telegramUserID int64) error {
	res, err := l.db.ExecContext(ctx,
		`DELETE FROM membership_payments WHERE telegram_user_id = $1`, telegramUserID)
	if err != nil {
		return fmt.Errorf("payment remove: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("payment remove: %w", err)
	}
	if affected == 0 {
		return ErrNoActivePayment
	}
	return nil
}
