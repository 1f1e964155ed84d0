package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"fintrack/internal/models"
)

type AccountRepository struct {
	db *DB
}

func NewAccountRepository(db *DB) *AccountRepository {
	return &AccountRepository{db: db}
}

// All returns every stored account across all providers.
func (r *AccountRepository) All(ctx context.Context) ([]*models.Account, error) {
	query := `
		SELECT id, provider_id, display_name
		FROM accounts
		ORDER BY provider_id, id
	`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var acc models.Account
		if err := rows.Scan(&acc.ID, &acc.ProviderID, &acc.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// ByProvider returns the stored accounts belonging to a provider.
func (r *AccountRepository) ByProvider(ctx context.Context, providerID string) ([]*models.Account, error) {
	query := `
		SELECT id, provider_id, display_name
		FROM accounts
		WHERE provider_id = $1
		ORDER BY id
	`

	rows, err := r.db.QueryContext(ctx, query, providerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list provider accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*models.Account
	for rows.Next() {
		var acc models.Account
		if err := rows.Scan(&acc.ID, &acc.ProviderID, &acc.DisplayName); err != nil {
			return nil, fmt.Errorf("failed to scan account: %w", err)
		}
		accounts = append(accounts, &acc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating accounts: %w", err)
	}

	return accounts, nil
}

// Insert upserts an account discovered at the upstream aggregator.
func (r *AccountRepository) Insert(ctx context.Context, acc *models.Account) error {
	query := `
		INSERT INTO accounts (id, provider_id, display_name)
		VALUES ($1, $2, $3)
		ON CONFLICT (id) DO UPDATE SET display_name = EXCLUDED.display_name
	`

	_, err := r.db.ExecContext(ctx, query, acc.ID, acc.ProviderID, acc.DisplayName)
	if err != nil {
		return fmt.Errorf("failed to insert account: %w", err)
	}

	return nil
}

// Credentials resolves an account to its owning provider's token set.
func (r *AccountRepository) Credentials(ctx context.Context, accountID string) (*models.Credential, error) {
	query := `
		SELECT p.id, p.access_token, p.refresh_token, p.expires_at
		FROM providers p
		JOIN accounts a ON a.provider_id = p.id
		WHERE a.id = $1 AND p.refresh_token IS NOT NULL
	`

	cred, err := scanCredential(r.db.QueryRowContext(ctx, query, accountID))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("account %s: %w", accountID, ErrNoCredentials)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get account credentials: %w", err)
	}

	return cred, nil
}
