package truelayer

import (
	"context"
	"time"
)

// TokenRenewer is the slice of the client the token source needs to perform
// a refresh. Client implements it.
type TokenRenewer interface {
	RenewToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
}

// TokenSource resolves a bearer token for a provider or for an account. Both
// keying schemes resolve to the same underlying provider credential. The
// renewer is passed in rather than held so the source carries no reference
// back to the client.
type TokenSource interface {
	TokenForProvider(ctx context.Context, r TokenRenewer, providerID string) (string, error)
	TokenForAccount(ctx context.Context, r TokenRenewer, accountID string) (string, error)
}

// API is the full aggregator surface, for handlers and sync services that
// want a test double.
type API interface {
	AuthLink(callback, state string) string
	ExchangeCode(ctx context.Context, code, callback string) (*TokenResponse, error)
	RenewToken(ctx context.Context, refreshToken string) (*TokenResponse, error)
	TokenMetadata(ctx context.Context, accessToken string) (*TokenMetadata, error)
	SupportedProviders(ctx context.Context) ([]Provider, error)
	Accounts(ctx context.Context, providerID string) ([]Account, error)
	AccountBalance(ctx context.Context, accountID string) (*AccountBalance, error)
	Transactions(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error)
	PendingTransactions(ctx context.Context, accountID string) ([]Transaction, error)
}
