package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/Makarios44/xuxu-AIBOT/internal/domain"
)

// CredentialRepo implements domain.CredentialStore over the shared Store.
// Access and refresh tokens go through the configured TokenCipher before
// touching the database.
type CredentialRepo struct {
	s *Store
}

// Credentials returns the credential repository view of the store.
func (s *Store) Credentials() *CredentialRepo { return &CredentialRepo{s: s} }

func (r *CredentialRepo) Get(ctx context.Context, userID string, provider domain.Provider) (*domain.Credential, error) {
	row := r.s.db.QueryRowContext(ctx, r.s.rebind(
		`SELECT id, user_id, provider, access_token, refresh_token, expires_at, created_at, updated_at
		 FROM user_tokens WHERE user_id = ? AND provider = ?`),
		userID, string(provider))

	cred, err := r.scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.NewDomainError("CredentialRepo.Get", domain.ErrCredentialNotFound,
			fmt.Sprintf("%s/%s", userID, provider))
	}
	if err != nil {
		return nil, domain.WrapOp("CredentialRepo.Get", err)
	}
	return cred, nil
}

// Upsert inserts or replaces the row keyed by (user_id, provider).
// Last writer wins; concurrent refreshes race harmlessly.
func (r *CredentialRepo) Upsert(ctx context.Context, cred *domain.Credential) error {
	access, refresh, err := r.sealTokens(cred)
	if err != nil {
		return domain.WrapOp("CredentialRepo.Upsert", err)
	}

	now := time.Now().UTC()
	if cred.CreatedAt.IsZero() {
		cred.CreatedAt = now
	}
	cred.UpdatedAt = now

	_, err = r.s.db.ExecContext(ctx, r.s.rebind(
		`INSERT INTO user_tokens (user_id, provider, access_token, refresh_token, expires_at, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (user_id, provider) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`),
		cred.UserID, string(cred.Provider), access, refresh,
		cred.ExpiresAt.UTC(), cred.CreatedAt, cred.UpdatedAt)
	if err != nil {
		return domain.WrapOp("CredentialRepo.Upsert", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	return nil
}

// Update rewrites the token columns of an existing row.
func (r *CredentialRepo) Update(ctx context.Context, cred *domain.Credential) error {
	access, refresh, err := r.sealTokens(cred)
	if err != nil {
		return domain.WrapOp("CredentialRepo.Update", err)
	}

	cred.UpdatedAt = time.Now().UTC()
	res, err := r.s.db.ExecContext(ctx, r.s.rebind(
		`UPDATE user_tokens
		 SET access_token = ?, refresh_token = ?, expires_at = ?, updated_at = ?
		 WHERE user_id = ? AND provider = ?`),
		access, refresh, cred.ExpiresAt.UTC(), cred.UpdatedAt,
		cred.UserID, string(cred.Provider))
	if err != nil {
		return domain.WrapOp("CredentialRepo.Update", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.NewDomainError("CredentialRepo.Update", domain.ErrCredentialNotFound,
			fmt.Sprintf("%s/%s", cred.UserID, cred.Provider))
	}
	return nil
}

func (r *CredentialRepo) Delete(ctx context.Context, userID string, provider domain.Provider) error {
	_, err := r.s.db.ExecContext(ctx, r.s.rebind(
		`DELETE FROM user_tokens WHERE user_id = ? AND provider = ?`),
		userID, string(provider))
	if err != nil {
		return domain.WrapOp("CredentialRepo.Delete", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	return nil
}

func (r *CredentialRepo) ListByUser(ctx context.Context, userID string) ([]domain.Credential, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.rebind(
		`SELECT id, user_id, provider, access_token, refresh_token, expires_at, created_at, updated_at
		 FROM user_tokens WHERE user_id = ? ORDER BY provider`),
		userID)
	if err != nil {
		return nil, domain.WrapOp("CredentialRepo.ListByUser", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	defer rows.Close()
	return r.collect(rows, "CredentialRepo.ListByUser")
}

func (r *CredentialRepo) ListExpiring(ctx context.Context, cutoff time.Time) ([]domain.Credential, error) {
	rows, err := r.s.db.QueryContext(ctx, r.s.rebind(
		`SELECT id, user_id, provider, access_token, refresh_token, expires_at, created_at, updated_at
		 FROM user_tokens WHERE expires_at < ? ORDER BY expires_at`),
		cutoff.UTC())
	if err != nil {
		return nil, domain.WrapOp("CredentialRepo.ListExpiring", fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	defer rows.Close()
	return r.collect(rows, "CredentialRepo.ListExpiring")
}

func (r *CredentialRepo) sealTokens(cred *domain.Credential) (access, refresh string, err error) {
	if access, err = r.s.cipher.Encrypt(cred.AccessToken); err != nil {
		return "", "", fmt.Errorf("encrypt access token: %w", err)
	}
	if refresh, err = r.s.cipher.Encrypt(cred.RefreshToken); err != nil {
		return "", "", fmt.Errorf("encrypt refresh token: %w", err)
	}
	return access, refresh, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (r *CredentialRepo) scan(row rowScanner) (*domain.Credential, error) {
	var cred domain.Credential
	var provider string
	if err := row.Scan(&cred.ID, &cred.UserID, &provider,
		&cred.AccessToken, &cred.RefreshToken,
		&cred.ExpiresAt, &cred.CreatedAt, &cred.UpdatedAt); err != nil {
		return nil, err
	}
	cred.Provider = domain.Provider(provider)

	var err error
	if cred.AccessToken, err = r.s.cipher.Decrypt(cred.AccessToken); err != nil {
		return nil, fmt.Errorf("decrypt access token: %w", err)
	}
	if cred.RefreshToken, err = r.s.cipher.Decrypt(cred.RefreshToken); err != nil {
		return nil, fmt.Errorf("decrypt refresh token: %w", err)
	}
	return &cred, nil
}

func (r *CredentialRepo) collect(rows *sql.Rows, op string) ([]domain.Credential, error) {
	var out []domain.Credential
	for rows.Next() {
		cred, err := r.scan(rows)
		if err != nil {
			return nil, domain.WrapOp(op, err)
		}
		out = append(out, *cred)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapOp(op, fmt.Errorf("%w: %v", domain.ErrStore, err))
	}
	return out, nil
}
