package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lunar-card/internal/model"
)

// VisitorRepository persists per-profile state that outlives a visit:
// the minigame unlock flag and the remembered bank info.
type VisitorRepository struct {
	pool *pgxpool.Pool
}

// NewVisitorRepository creates a new VisitorRepository instance.
func NewVisitorRepository(pool *pgxpool.Pool) *VisitorRepository {
	return &VisitorRepository{pool: pool}
}

// IsUnlocked reports whether profileKey has unlocked the minigame.
func (r *VisitorRepository) IsUnlocked(ctx context.Context, profileKey string) (bool, error) {
	const query = `
		SELECT unlocked_at IS NOT NULL
		FROM visitors
		WHERE profile_key = $1
	`

	var unlocked bool
	err := r.pool.QueryRow(ctx, query, profileKey).Scan(&unlocked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get unlock flag: %w", err)
	}
	return unlocked, nil
}

// SetUnlocked marks profileKey as unlocked. The first unlock time is kept.
func (r *VisitorRepository) SetUnlocked(ctx context.Context, profileKey string) error {
	const query = `
		INSERT INTO visitors (profile_key, unlocked_at, updated_at)
		VALUES ($1, NOW(), NOW())
		ON CONFLICT (profile_key) DO UPDATE
		SET unlocked_at = COALESCE(visitors.unlocked_at, EXCLUDED.unlocked_at),
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, profileKey); err != nil {
		return fmt.Errorf("failed to set unlock flag: %w", err)
	}
	return nil
}

// LoadBank returns the remembered bank info of profileKey, or nil if none.
func (r *VisitorRepository) LoadBank(ctx context.Context, profileKey string) (*model.BankInfo, error) {
	const query = `
		SELECT bank_name, bank_account
		FROM visitors
		WHERE profile_key = $1
	`

	var name, account *string
	err := r.pool.QueryRow(ctx, query, profileKey).Scan(&name, &account)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get bank info: %w", err)
	}
	if name == nil && account == nil {
		return nil, nil
	}

	var info model.BankInfo
	if name != nil {
		info.BankName = *name
	}
	if account != nil {
		info.BankAccount = *account
	}
	return &info, nil
}

// SaveBank remembers the bank info of profileKey.
func (r *VisitorRepository) SaveBank(ctx context.Context, profileKey string, info model.BankInfo) error {
	const query = `
		INSERT INTO visitors (profile_key, bank_name, bank_account, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (profile_key) DO UPDATE
		SET bank_name = EXCLUDED.bank_name,
			bank_account = EXCLUDED.bank_account,
			updated_at = NOW()
	`

	if _, err := r.pool.Exec(ctx, query, profileKey, info.BankName, info.BankAccount); err != nil {
		return fmt.Errorf("failed to save bank info: %w", err)
	}
	return nil
}
