package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/mbolis/quick-forms/model"
)

// StoreToken remembers an issued refresh token until expiration.
func (s *Store) StoreToken(ctx context.Context, username, tokenID, refreshTokenID string, expiration time.Time) error {
	_, err := s.q.Exec(ctx, s.db, "insert-token", username, tokenID, refreshTokenID, expiration.UTC())
	if err != nil {
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// ConsumeToken deletes a stored refresh token, so that it can be used only
// once. It fails with model.ErrUnauthorized when the token is unknown or
// expired.
func (s *Store) ConsumeToken(ctx context.Context, username, tokenID, refreshTokenID string) error {
	var expiration time.Time
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		err := s.q.Get(ctx, tx, "get-token-expiration", &expiration, username, tokenID, refreshTokenID)
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("unknown refresh token: %w", model.ErrUnauthorized)
		case err != nil:
			return fmt.Errorf("get token: %w", err)
		}

		if _, err := s.q.Exec(ctx, tx, "delete-token", username, tokenID, refreshTokenID); err != nil {
			return fmt.Errorf("delete token: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if expiration.Before(s.timestamp()) {
		return fmt.Errorf("refresh token expired: %w", model.ErrUnauthorized)
	}
	return nil
}

// PurgeExpiredTokens deletes the refresh tokens expired before now.
func (s *Store) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	res, err := s.q.Exec(ctx, s.db, "purge-expired-tokens", s.timestamp())
	if err != nil {
		return 0, fmt.Errorf("purge tokens: %w", err)
	}
	return res.RowsAffected()
}
