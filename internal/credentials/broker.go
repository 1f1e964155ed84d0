package credentials

import (
	"context"
	"fmt"
	"log"
	"time"

	"golang.org/x/sync/singleflight"

	"fintrack/internal/models"
	"fintrack/internal/truelayer"
)

// ProviderCredentialStore reads and writes the stored token set for a
// provider. Writes must be atomic (a single statement).
type ProviderCredentialStore interface {
	Credentials(ctx context.Context, providerID string) (*models.Credential, error)
	UpdateCredentials(ctx context.Context, providerID, accessToken string, expiresAt time.Time, refreshToken string) error
}

// AccountCredentialStore resolves an account id to its owning provider's
// stored token set.
type AccountCredentialStore interface {
	Credentials(ctx context.Context, accountID string) (*models.Credential, error)
}

// Broker decides whether a cached access token is still valid or must be
// refreshed. It implements truelayer.TokenSource for both keying schemes.
//
// Refreshes are serialized per provider id: concurrent callers that observe
// the same expired token share a single refresh call instead of each issuing
// their own.
type Broker struct {
	providers ProviderCredentialStore
	accounts  AccountCredentialStore
	flight    singleflight.Group
	now       func() time.Time
}

var _ truelayer.TokenSource = (*Broker)(nil)

// NewBroker creates a token broker over the given credential stores.
func NewBroker(providers ProviderCredentialStore, accounts AccountCredentialStore) *Broker {
	return &Broker{
		providers: providers,
		accounts:  accounts,
		now:       time.Now,
	}
}

// TokenForProvider returns a valid access token for the provider, refreshing
// it first if the stored one has expired.
func (b *Broker) TokenForProvider(ctx context.Context, r truelayer.TokenRenewer, providerID string) (string, error) {
	cred, err := b.providers.Credentials(ctx, providerID)
	if err != nil {
		return "", fmt.Errorf("failed to load credentials for provider %s: %w", providerID, err)
	}

	return b.token(ctx, r, cred)
}

// TokenForAccount returns a valid access token for the provider owning the
// account, refreshing it first if the stored one has expired.
func (b *Broker) TokenForAccount(ctx context.Context, r truelayer.TokenRenewer, accountID string) (string, error) {
	cred, err := b.accounts.Credentials(ctx, accountID)
	if err != nil {
		return "", fmt.Errorf("failed to load credentials for account %s: %w", accountID, err)
	}

	return b.token(ctx, r, cred)
}

// token applies the freshness policy: a token expiring strictly after now is
// returned as-is with no network call; anything else (including expiry at
// exactly now) triggers a refresh.
func (b *Broker) token(ctx context.Context, r truelayer.TokenRenewer, cred *models.Credential) (string, error) {
	if cred.ExpiresAt.After(b.now()) {
		return cred.AccessToken, nil
	}

	return b.refresh(ctx, r, cred)
}

func (b *Broker) refresh(ctx context.Context, r truelayer.TokenRenewer, cred *models.Credential) (string, error) {
	token, err, shared := b.flight.Do(cred.ProviderID, func() (any, error) {
		res, err := r.RenewToken(ctx, cred.RefreshToken)
		if err != nil {
			return "", fmt.Errorf("failed to renew token for provider %s: %w", cred.ProviderID, err)
		}

		expiresAt := b.now().Add(time.Duration(res.ExpiresIn) * time.Second)
		if err := b.providers.UpdateCredentials(ctx, cred.ProviderID, res.AccessToken, expiresAt, res.RefreshToken); err != nil {
			return "", fmt.Errorf("failed to persist credentials for provider %s: %w", cred.ProviderID, err)
		}

		return res.AccessToken, nil
	})
	if err != nil {
		return "", err
	}

	if shared {
		log.Printf("token refresh for provider '%s' shared between concurrent callers", cred.ProviderID)
	}

	return token.(string), nil
}
