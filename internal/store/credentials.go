package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/wmo-raf/adl-collector-app-sub000/internal/model"
)

// GetCredentials returns the tenant's stored token triple, or nil when the
// tenant has never authenticated.
func (s *Store) GetCredentials(ctx context.Context, tenant string) (*model.Credentials, error) {
	var creds model.Credentials
	var expiresAt string

	row := s.db.QueryRowContext(ctx,
		`SELECT tenant, access_token, refresh_token, expires_at FROM credentials WHERE tenant = ?`,
		tenant)
	err := row.Scan(&creds.Tenant, &creds.AccessToken, &creds.RefreshToken, &expiresAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if creds.ExpiresAt, err = parseTime(expiresAt); err != nil {
		return nil, err
	}
	return &creds, nil
}

// SaveTokens persists a new (access, refresh, expiry) triple for the tenant.
// A nil refresh keeps the previously stored refresh token.
func (s *Store) SaveTokens(ctx context.Context, tenant, access string, refresh *string, expiresAt time.Time) error {
	if refresh != nil {
		_, err := s.db.ExecContext(ctx,
			`INSERT INTO credentials (tenant, access_token, refresh_token, expires_at)
			 VALUES (?, ?, ?, ?)
			 ON CONFLICT (tenant) DO UPDATE SET
				access_token = excluded.access_token,
				refresh_token = excluded.refresh_token,
				expires_at = excluded.expires_at`,
			tenant, access, *refresh, formatTime(expiresAt))
		return err
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO credentials (tenant, access_token, expires_at)
		 VALUES (?, ?, ?)
		 ON CONFLICT (tenant) DO UPDATE SET
			access_token = excluded.access_token,
			expires_at = excluded.expires_at`,
		tenant, access, formatTime(expiresAt))
	return err
}
