package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"fintrack/internal/models"
)

// ErrNoCredentials is returned when a provider exists but the user has
// never completed the connect flow for it.
var ErrNoCredentials = errors.New("no stored credentials")

type ProviderRepository struct {
	db *DB
}

func NewProviderRepository(db *DB) *ProviderRepository {
	return &ProviderRepository{db: db}
}

// IDs returns the ids of all known providers.
func (r *ProviderRepository) IDs(ctx context.Context) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT id FROM providers`)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan provider id: %w", err)
		}
		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating provider ids: %w", err)
	}

	return ids, nil
}

// Connected returns every provider with stored credentials, i.e. the ones
// the user has actually linked.
func (r *ProviderRepository) Connected(ctx context.Context) ([]*models.Provider, error) {
	query := `
		SELECT id, display_name, logo_url
		FROM providers
		WHERE refresh_token IS NOT NULL
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list connected providers: %w", err)
	}
	defer rows.Close()

	var providers []*models.Provider
	for rows.Next() {
		var p models.Provider
		if err := rows.Scan(&p.ID, &p.DisplayName, &p.LogoURL); err != nil {
			return nil, fmt.Errorf("failed to scan provider: %w", err)
		}
		providers = append(providers, &p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating providers: %w", err)
	}

	return providers, nil
}

// Insert adds a provider if it is not already known. Returns true when a new
// row was created.
func (r *ProviderRepository) Insert(ctx context.Context, p *models.Provider) (bool, error) {
	query := `
		INSERT INTO providers (id, display_name, logo_url)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO NOTHING
	`

	result, err := r.db.ExecContext(ctx, query, p.ID, p.DisplayName, p.LogoURL)
	if err != nil {
		return false, fmt.Errorf("failed to insert provider: %w", err)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get affected rows: %w", err)
	}

	return count == 1, nil
}

// Credentials returns the stored token set for a provider. Providers without
// completed connect flows yield ErrNoCredentials.
func (r *ProviderRepository) Credentials(ctx context.Context, providerID string) (*models.Credential, error) {
	query := `
		SELECT id, access_token, refresh_token, expires_at
		FROM providers
		WHERE id = $1 AND refresh_token IS NOT NULL
	`

	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, providerID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("provider %s: %w", providerID, ErrNoCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get provider credentials: %w", err)
	}

	return cred, nil
}

// UpdateCredentials stores a token set for a provider in one statement.
func (r *ProviderRepository) UpdateCredentials(ctx context.Context, providerID, accessToken string, expiresAt time.Time, refreshToken string) error {
	query := `
		UPDATE providers
		SET access_token = $1, expires_at = $2, refresh_token = $3
		WHERE id = $4
	`

	result, err := r.db.ExecContext(ctx, query, accessToken, expiresAt, refreshToken, providerID)
	if err != nil {
		return fmt.Errorf("failed to update provider credentials: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("provider %s not found", providerID)
	}

	return nil
}

type credentialScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row credentialScanner) (*models.Credential, error) {
	var cred models.Credential
	var expiresAt sql.NullTime

	err := row.Scan(&cred.ProviderID, &cred.AccessToken, &cred.RefreshToken, &expiresAt)
	if err != nil {
		return nil, err
	}

	if expiresAt.Valid {
		cred.ExpiresAt = expiresAt.Time
	}

	return &cred, nil
}
