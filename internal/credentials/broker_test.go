package credentials

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/truelayer"
)

type mockProviderStore struct {
	CredentialsFunc       func(ctx context.Context, providerID string) (*models.Credential, error)
	UpdateCredentialsFunc func(ctx context.Context, providerID, accessToken string, expiresAt time.Time, refreshToken string) error
}

func (m *mockProviderStore) Credentials(ctx context.Context, providerID string) (*models.Credential, error) {
	return m.CredentialsFunc(ctx, providerID)
}

func (m *mockProviderStore) UpdateCredentials(ctx context.Context, providerID, accessToken string, expiresAt time.Time, refreshToken string) error {
	if m.UpdateCredentialsFunc != nil {
		return m.UpdateCredentialsFunc(ctx, providerID, accessToken, expiresAt, refreshToken)
	}
	return nil
}

type mockAccountStore struct {
	CredentialsFunc func(ctx context.Context, accountID string) (*models.Credential, error)
}

func (m *mockAccountStore) Credentials(ctx context.Context, accountID string) (*models.Credential, error) {
	return m.CredentialsFunc(ctx, accountID)
}

type mockRenewer struct {
	RenewTokenFunc func(ctx context.Context, refreshToken string) (*truelayer.TokenResponse, error)
}

func (m *mockRenewer) RenewToken(ctx context.Context, refreshToken string) (*truelayer.TokenResponse, error) {
	return m.RenewTokenFunc(ctx, refreshToken)
}

func TestTokenForProviderFreshness(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		expiresAt   time.Time
		wantToken   string
		wantRenewed bool
	}{
		{
			name:        "unexpired token returned without network call",
			expiresAt:   now.Add(time.Minute),
			wantToken:   "cached",
			wantRenewed: false,
		},
		{
			name:        "expired token triggers refresh",
			expiresAt:   now.Add(-time.Minute),
			wantToken:   "renewed",
			wantRenewed: true,
		},
		{
			name:        "expiry at exactly now counts as expired",
			expiresAt:   now,
			wantToken:   "renewed",
			wantRenewed: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			renewCalls := 0
			renewer := &mockRenewer{
				RenewTokenFunc: func(ctx context.Context, refreshToken string) (*truelayer.TokenResponse, error) {
					renewCalls++
					if refreshToken != "refresh" {
						t.Errorf("RenewToken refresh token = %q", refreshToken)
					}
					return &truelayer.TokenResponse{AccessToken: "renewed", RefreshToken: "refresh-2", ExpiresIn: 3600}, nil
				},
			}

			var persisted *models.Credential
			store := &mockProviderStore{
				CredentialsFunc: func(ctx context.Context, providerID string) (*models.Credential, error) {
					return &models.Credential{
						ProviderID:   providerID,
						AccessToken:  "cached",
						RefreshToken: "refresh",
						ExpiresAt:    tt.expiresAt,
					}, nil
				},
				UpdateCredentialsFunc: func(ctx context.Context, providerID, accessToken string, expiresAt time.Time, refreshToken string) error {
					persisted = &models.Credential{
						ProviderID:   providerID,
						AccessToken:  accessToken,
						RefreshToken: refreshToken,
						ExpiresAt:    expiresAt,
					}
					return nil
				},
			}

			broker := NewBroker(store, nil)
			broker.now = func() time.Time { return now }

			token, err := broker.TokenForProvider(context.Background(), renewer, "provider-1")
			if err != nil {
				t.Fatalf("TokenForProvider() unexpected error: %v", err)
			}
			if token != tt.wantToken {
				t.Errorf("TokenForProvider() = %q, want %q", token, tt.wantToken)
			}

			if tt.wantRenewed {
				if renewCalls != 1 {
					t.Errorf("renew calls = %d, want 1", renewCalls)
				}
				if persisted == nil {
					t.Fatal("refreshed credentials were not persisted")
				}
				if persisted.AccessToken != "renewed" || persisted.RefreshToken != "refresh-2" {
					t.Errorf("persisted = %+v", persisted)
				}
				if want := now.Add(3600 * time.Second); !persisted.ExpiresAt.Equal(want) {
					t.Errorf("persisted expiry = %s, want %s", persisted.ExpiresAt, want)
				}
			} else {
				if renewCalls != 0 {
					t.Errorf("renew calls = %d, want 0", renewCalls)
				}
				if persisted != nil {
					t.Errorf("unexpected persist: %+v", persisted)
				}
			}
		})
	}
}

func TestTokenForAccountResolvesProvider(t *testing.T) {
	now := time.Now()

	accounts := &mockAccountStore{
		CredentialsFunc: func(ctx context.Context, accountID string) (*models.Credential, error) {
			if accountID != "acc-1" {
				t.Errorf("account id = %q", accountID)
			}
			return &models.Credential{
				ProviderID:   "provider-1",
				AccessToken:  "cached",
				RefreshToken: "refresh",
				ExpiresAt:    now.Add(-time.Second),
			}, nil
		},
	}

	var updatedProvider string
	providers := &mockProviderStore{
		CredentialsFunc: func(ctx context.Context, providerID string) (*models.Credential, error) {
			t.Error("provider store should not be read for an account-keyed request")
			return nil, nil
		},
		UpdateCredentialsFunc: func(ctx context.Context, providerID, accessToken string, expiresAt time.Time, refreshToken string) error {
			updatedProvider = providerID
			return nil
		},
	}

	renewer := &mockRenewer{
		RenewTokenFunc: func(ctx context.Context, refreshToken string) (*truelayer.TokenResponse, error) {
			return &truelayer.TokenResponse{AccessToken: "renewed", RefreshToken: "refresh-2", ExpiresIn: 60}, nil
		},
	}

	broker := NewBroker(providers, accounts)

	token, err := broker.TokenForAccount(context.Background(), renewer, "acc-1")
	if err != nil {
		t.Fatalf("TokenForAccount() unexpected error: %v", err)
	}
	if token != "renewed" {
		t.Errorf("TokenForAccount() = %q, want renewed", token)
	}
	if updatedProvider != "provider-1" {
		t.Errorf("credentials persisted under provider %q, want provider-1", updatedProvider)
	}
}

func TestRefreshFailurePropagates(t *testing.T) {
	wantErr := errors.New("invalid_grant")

	store := &mockProviderStore{
		CredentialsFunc: func(ctx context.Context, providerID string) (*models.Credential, error) {
			return &models.Credential{ProviderID: providerID, RefreshToken: "refresh"}, nil
		},
		UpdateCredentialsFunc: func(ctx context.Context, providerID, accessToken string, expiresAt time.Time, refreshToken string) error {
			t.Error("credentials must not be persisted when the refresh fails")
			return nil
		},
	}

	renewer := &mockRenewer{
		RenewTokenFunc: func(ctx context.Context, refreshToken string) (*truelayer.TokenResponse, error) {
			return nil, wantErr
		},
	}

	broker := NewBroker(store, nil)

	if _, err := broker.TokenForProvider(context.Background(), renewer, "provider-1"); !errors.Is(err, wantErr) {
		t.Errorf("TokenForProvider() error = %v, want %v", err, wantErr)
	}
}

func TestConcurrentRefreshesAreShared(t *testing.T) {
	const callers = 8

	release := make(chan struct{})
	loaded := make(chan struct{}, callers)
	var renewCalls atomic.Int64

	store := &mockProviderStore{
		CredentialsFunc: func(ctx context.Context, providerID string) (*models.Credential, error) {
			loaded <- struct{}{}
			return &models.Credential{
				ProviderID:   providerID,
				RefreshToken: "refresh",
				ExpiresAt:    time.Now().Add(-time.Second),
			}, nil
		},
	}

	renewer := &mockRenewer{
		RenewTokenFunc: func(ctx context.Context, refreshToken string) (*truelayer.TokenResponse, error) {
			<-release
			renewCalls.Add(1)
			return &truelayer.TokenResponse{AccessToken: "renewed", RefreshToken: "refresh-2", ExpiresIn: 3600}, nil
		},
	}

	broker := NewBroker(store, nil)

	var wg sync.WaitGroup
	tokens := make([]string, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = broker.TokenForProvider(context.Background(), renewer, "provider-1")
		}(i)
	}

	// Wait for every caller to have loaded the expired credential before
	// allowing the single in-flight refresh to complete.
	for i := 0; i < callers; i++ {
		<-loaded
	}
	time.Sleep(10 * time.Millisecond)
	close(release)

	wg.Wait()

	if got := renewCalls.Load(); got != 1 {
		t.Errorf("renew calls = %d, want 1", got)
	}
	for i := 0; i < callers; i++ {
		if errs[i] != nil {
			t.Errorf("caller %d error: %v", i, errs[i])
		}
		if tokens[i] != "renewed" {
			t.Errorf("caller %d token = %q, want renewed", i, tokens[i])
		}
	}
}
