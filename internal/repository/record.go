// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"lunar-card/internal/apperr"
	"lunar-card/internal/model"
)

// Common errors for repository operations.
var (
	ErrRecordNotFound = fmt.Errorf("%w: record", apperr.ErrNotFound)
	ErrUnknownKind    = fmt.Errorf("%w: unknown record kind", apperr.ErrValidation)
)

// recordTables maps each record kind to its table.
var recordTables = map[model.RecordKind]string{
	model.KindViews:    "views",
	model.KindWishes:   "wishes",
	model.KindFortunes: "fortunes",
}

// RecordRepository persists view, wish and fortune records.
type RecordRepository struct {
	pool *pgxpool.Pool
}

// NewRecordRepository creates a new RecordRepository instance.
func NewRecordRepository(pool *pgxpool.Pool) *RecordRepository {
	return &RecordRepository{pool: pool}
}

// CreateView inserts an open view record.
func (r *RecordRepository) CreateView(ctx context.Context, v *model.View) error {
	const query = `
		INSERT INTO views (id, owner_key, viewer_key, viewer_label, target_key, target_label, user_agent, started_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		v.ID, v.OwnerKey, v.ViewerKey, v.ViewerLabel, v.TargetKey, v.TargetLabel, v.UserAgent, v.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create view: %w", err)
	}
	return nil
}

// CloseView stamps the end time and duration of a view.
// Returns ErrRecordNotFound if the view does not exist.
func (r *RecordRepository) CloseView(ctx context.Context, id string, endedAt time.Time, durationSec int64) error {
	const query = `
		UPDATE views
		SET ended_at = $2, duration_sec = $3
		WHERE id = $1
	`

	result, err := r.pool.Exec(ctx, query, id, endedAt, durationSec)
	if err != nil {
		return fmt.Errorf("failed to close view: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}

// CreateWish inserts a wish record.
func (r *RecordRepository) CreateWish(ctx context.Context, w *model.Wish) error {
	const query = `
		INSERT INTO wishes (id, owner_key, viewer_key, viewer_label, target_key, target_label,
			message, fortune_amount, bank_name, bank_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.pool.Exec(ctx, query,
		w.ID, w.OwnerKey, w.ViewerKey, w.ViewerLabel, w.TargetKey, w.TargetLabel,
		w.Message, w.FortuneAmount, w.BankName, w.BankAccount, w.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create wish: %w", err)
	}
	return nil
}

// CreateFortune inserts a fortune record.
func (r *RecordRepository) CreateFortune(ctx context.Context, f *model.Fortune) error {
	const query = `
		INSERT INTO fortunes (id, owner_key, viewer_key, viewer_label, amount, bank_name, bank_account, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`

	_, err := r.pool.Exec(ctx, query,
		f.ID, f.OwnerKey, f.ViewerKey, f.ViewerLabel, f.Amount, f.BankName, f.BankAccount, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create fortune: %w", err)
	}
	return nil
}

// ListViews returns the latest views of ownerKey, newest first.
func (r *RecordRepository) ListViews(ctx context.Context, ownerKey string, limit int) ([]*model.View, error) {
	const query = `
		SELECT id, owner_key, viewer_key, viewer_label, target_key, target_label,
			user_agent, started_at, ended_at, duration_sec
		FROM views
		WHERE owner_key = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, ownerKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list views: %w", err)
	}
	defer rows.Close()

	var views []*model.View
	for rows.Next() {
		var v model.View
		err := rows.Scan(
			&v.ID,
			&v.OwnerKey,
			&v.ViewerKey,
			&v.ViewerLabel,
			&v.TargetKey,
			&v.TargetLabel,
			&v.UserAgent,
			&v.StartedAt,
			&v.EndedAt,
			&v.DurationSec,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan view: %w", err)
		}
		views = append(views, &v)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating views: %w", err)
	}

	return views, nil
}

// ListWishes returns the latest wishes of ownerKey, newest first.
func (r *RecordRepository) ListWishes(ctx context.Context, ownerKey string, limit int) ([]*model.Wish, error) {
	const query = `
		SELECT id, owner_key, viewer_key, viewer_label, target_key, target_label,
			message, fortune_amount, bank_name, bank_account, created_at
		FROM wishes
		WHERE owner_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, ownerKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list wishes: %w", err)
	}
	defer rows.Close()

	var wishes []*model.Wish
	for rows.Next() {
		var w model.Wish
		err := rows.Scan(
			&w.ID,
			&w.OwnerKey,
			&w.ViewerKey,
			&w.ViewerLabel,
			&w.TargetKey,
			&w.TargetLabel,
			&w.Message,
			&w.FortuneAmount,
			&w.BankName,
			&w.BankAccount,
			&w.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan wish: %w", err)
		}
		wishes = append(wishes, &w)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating wishes: %w", err)
	}

	return wishes, nil
}

// ListFortunes returns the latest fortunes of ownerKey, newest first.
func (r *RecordRepository) ListFortunes(ctx context.Context, ownerKey string, limit int) ([]*model.Fortune, error) {
	const query = `
		SELECT id, owner_key, viewer_key, viewer_label, amount, bank_name, bank_account, created_at
		FROM fortunes
		WHERE owner_key = $1
		ORDER BY created_at DESC
		LIMIT $2
	`

	rows, err := r.pool.Query(ctx, query, ownerKey, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list fortunes: %w", err)
	}
	defer rows.Close()

	var fortunes []*model.Fortune
	for rows.Next() {
		var f model.Fortune
		err := rows.Scan(
			&f.ID,
			&f.OwnerKey,
			&f.ViewerKey,
			&f.ViewerLabel,
			&f.Amount,
			&f.BankName,
			&f.BankAccount,
			&f.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan fortune: %w", err)
		}
		fortunes = append(fortunes, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating fortunes: %w", err)
	}

	return fortunes, nil
}

// Delete removes one record of the given kind.
// Returns ErrRecordNotFound if no record has that id.
func (r *RecordRepository) Delete(ctx context.Context, kind model.RecordKind, id string) error {
	table, ok := recordTables[kind]
	if !ok {
		return ErrUnknownKind
	}

	result, err := r.pool.Exec(ctx, "DELETE FROM "+table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete %s record: %w", kind, err)
	}
	if result.RowsAffected() == 0 {
		return ErrRecordNotFound
	}
	return nil
}
