package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/makkenzo/credential-service-api/internal/domain/apikey"
	"go.uber.org/zap"
)

type APIKeyRepository struct {
	db     *pgxpool.Pool
	logger *zap.Logger
}

func NewAPIKeyRepository(db *pgxpool.Pool, logger *zap.Logger) *APIKeyRepository {
	return &APIKeyRepository{
		db:     db,
		logger: logger.Named("APIKeyRepository"),
	}
}

var _ apikey.Repository = (*APIKeyRepository)(nil)

func (r *APIKeyRepository) FindByUser(ctx context.Context, userID int64) (*apikey.APIKey, error) {
	query := `
		SELECT id, user_id, api_key, created_at, updated_at
		FROM user_api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	return r.scanKey(r.db.QueryRow(ctx, query, userID))
}

func (r *APIKeyRepository) FindByKey(ctx context.Context, key string) (*apikey.APIKey, error) {
	query := `
		SELECT id, user_id, api_key, created_at, updated_at
		FROM user_api_keys
		WHERE api_key = $1
	`
	return r.scanKey(r.db.QueryRow(ctx, query, key))
}

func (r *APIKeyRepository) Insert(ctx context.Context, userID int64, key string) (*apikey.APIKey, error) {
	query := `
		INSERT INTO user_api_keys (user_id, api_key)
		VALUES ($1, $2)
		RETURNING id, user_id, api_key, created_at, updated_at
	`

	inserted, err := r.scanKey(r.db.QueryRow(ctx, query, userID, key))
	if err != nil {
		r.logger.Error("Failed to insert api key", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("db error inserting api key: %w", err)
	}

	r.logger.Info("API key row inserted", zap.Int64("id", inserted.ID), zap.Int64("user_id", userID))
	return inserted, nil
}

// InsertIfAbsent inserts only when the user has no key row yet. The
// NOT EXISTS guard plus re-fetch keeps concurrent first issuance
// idempotent without a uniqueness constraint on user_id, which a
// rotation grace window could not tolerate.
func (r *APIKeyRepository) InsertIfAbsent(ctx context.Context, userID int64, key string) (*apikey.APIKey, bool, error) {
	query := `
		INSERT INTO user_api_keys (user_id, api_key)
		SELECT $1, $2
		WHERE NOT EXISTS (
			SELECT 1 FROM user_api_keys WHERE user_id = $1
		)
		RETURNING id, user_id, api_key, created_at, updated_at
	`

	inserted, err := r.scanKey(r.db.QueryRow(ctx, query, userID, key))
	if err == nil {
		return inserted, true, nil
	}
	if !errors.Is(err, apikey.ErrAPIKeyNotFound) {
		r.logger.Error("Failed conditional api key insert", zap.Int64("user_id", userID), zap.Error(err))
		return nil, false, fmt.Errorf("db error inserting api key: %w", err)
	}

	// Another writer got there first; hand back its key.
	existing, err := r.FindByUser(ctx, userID)
	if err != nil {
		return nil, false, err
	}
	return existing, false, nil
}

func (r *APIKeyRepository) ListByUserDesc(ctx context.Context, userID int64) ([]*apikey.APIKey, error) {
	query := `
		SELECT id, user_id, api_key, created_at, updated_at
		FROM user_api_keys
		WHERE user_id = $1
		ORDER BY created_at DESC, id DESC
	`

	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to query api keys for user", zap.Int64("user_id", userID), zap.Error(err))
		return nil, fmt.Errorf("db error listing api keys: %w", err)
	}
	defer rows.Close()

	keys := make([]*apikey.APIKey, 0)
	for rows.Next() {
		var k apikey.APIKey
		err := rows.Scan(&k.ID, &k.UserID, &k.Key, &k.CreatedAt, &k.UpdatedAt)
		if err != nil {
			r.logger.Error("Failed to scan api key row during list", zap.Error(err))
			return nil, fmt.Errorf("db scan error listing api keys: %w", err)
		}
		keys = append(keys, &k)
	}
	if err = rows.Err(); err != nil {
		r.logger.Error("Error iterating api key rows", zap.Error(err))
		return nil, fmt.Errorf("db iteration error listing api keys: %w", err)
	}

	return keys, nil
}

func (r *APIKeyRepository) Delete(ctx context.Context, keyID int64) error {
	cmdTag, err := r.db.Exec(ctx, `DELETE FROM user_api_keys WHERE id = $1`, keyID)
	if err != nil {
		r.logger.Error("Failed to delete api key", zap.Int64("id", keyID), zap.Error(err))
		return fmt.Errorf("db error deleting api key: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return apikey.ErrAPIKeyNotFound
	}
	return nil
}

// DeleteSuperseded removes every key of the user except the newest
// one. A single statement keeps the cleanup atomic: either all the
// superseded rows go or none do.
func (r *APIKeyRepository) DeleteSuperseded(ctx context.Context, userID int64) (int64, error) {
	query := `
		DELETE FROM user_api_keys
		WHERE user_id = $1
		  AND id <> (
			SELECT id FROM user_api_keys
			WHERE user_id = $1
			ORDER BY created_at DESC, id DESC
			LIMIT 1
		  )
	`

	cmdTag, err := r.db.Exec(ctx, query, userID)
	if err != nil {
		r.logger.Error("Failed to delete superseded api keys", zap.Int64("user_id", userID), zap.Error(err))
		return 0, fmt.Errorf("db error deleting superseded api keys: %w", err)
	}

	return cmdTag.RowsAffected(), nil
}

func (r *APIKeyRepository) ListUsersWithSuperseded(ctx context.Context, olderThan time.Time) ([]int64, error) {
	query := `
		SELECT user_id
		FROM user_api_keys
		GROUP BY user_id
		HAVING COUNT(*) > 1 AND MAX(created_at) <= $1
		ORDER BY user_id
	`

	rows, err := r.db.Query(ctx, query, olderThan)
	if err != nil {
		r.logger.Error("Failed to query users with superseded keys", zap.Error(err))
		return nil, fmt.Errorf("db error listing users with superseded keys: %w", err)
	}
	defer rows.Close()

	users := make([]int64, 0)
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, fmt.Errorf("db scan error listing users with superseded keys: %w", err)
		}
		users = append(users, userID)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("db iteration error listing users with superseded keys: %w", err)
	}

	return users, nil
}

func (r *APIKeyRepository) scanKey(row pgx.Row) (*apikey.APIKey, error) {
	var k apikey.APIKey
	err := row.Scan(
		&k.ID,
		&k.UserID,
		&k.Key,
		&k.CreatedAt,
		&k.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apikey.ErrAPIKeyNotFound
		}
		return nil, fmt.Errorf("db error finding api key: %w", err)
	}
	return &k, nil
}
