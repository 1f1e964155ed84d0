package http

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"

	"fintrack/internal/models"
	"fintrack/internal/truelayer"
)

type MockProviderReader struct {
	ConnectedFunc func(ctx context.Context) ([]*models.Provider, error)
}

func (m *MockProviderReader) Connected(ctx context.Context) ([]*models.Provider, error) {
	return m.ConnectedFunc(ctx)
}

type MockAccountReader struct {
	AllFunc        func(ctx context.Context) ([]*models.Account, error)
	ByProviderFunc func(ctx context.Context, providerID string) ([]*models.Account, error)
}

func (m *MockAccountReader) All(ctx context.Context) ([]*models.Account, error) {
	return m.AllFunc(ctx)
}

func (m *MockAccountReader) ByProvider(ctx context.Context, providerID string) ([]*models.Account, error) {
	return m.ByProviderFunc(ctx, providerID)
}

type MockTransactionReader struct {
	ListByAccountFunc func(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error)
}

func (m *MockTransactionReader) ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error) {
	return m.ListByAccountFunc(ctx, accountID, limit)
}

func TestHandleProviders(t *testing.T) {
	providers := &MockProviderReader{
		ConnectedFunc: func(ctx context.Context) ([]*models.Provider, error) {
			return []*models.Provider{{ID: "ob-monzo", DisplayName: "Monzo"}}, nil
		},
	}
	handler := NewAPIHandler(nil, providers, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/providers", nil)
	rec := httptest.NewRecorder()

	handler.HandleProviders(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got []*models.Provider
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(got) != 1 || got[0].ID != "ob-monzo" {
		t.Errorf("unexpected providers: %+v", got)
	}
}

func TestHandleAccountsProviderFilter(t *testing.T) {
	accounts := &MockAccountReader{
		AllFunc: func(ctx context.Context) ([]*models.Account, error) {
			t.Error("All called, want ByProvider")
			return nil, nil
		},
		ByProviderFunc: func(ctx context.Context, providerID string) ([]*models.Account, error) {
			if providerID != "ob-monzo" {
				t.Errorf("providerID = %q, want ob-monzo", providerID)
			}
			return []*models.Account{{ID: "acc-1", ProviderID: "ob-monzo"}}, nil
		},
	}
	handler := NewAPIHandler(nil, nil, accounts, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts?provider=ob-monzo", nil)
	rec := httptest.NewRecorder()

	handler.HandleAccounts(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestHandleBalance(t *testing.T) {
	client := &MockTrueLayer{
		AccountBalanceFunc: func(ctx context.Context, accountID string) (*truelayer.AccountBalance, error) {
			return &truelayer.AccountBalance{
				Currency: "GBP",
				Current:  decimal.RequireFromString("1234.56"),
			}, nil
		},
	}
	handler := NewAPIHandler(client, nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-1/balance", nil)
	req.SetPathValue("id", "acc-1")
	rec := httptest.NewRecorder()

	handler.HandleBalance(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}

	var got truelayer.AccountBalance
	if err := json.NewDecoder(rec.Body).Decode(&got); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if !got.Current.Equal(decimal.RequireFromString("1234.56")) {
		t.Errorf("current balance = %s, want 1234.56", got.Current)
	}
}

func TestHandleBalanceUpstreamErrors(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
	}{
		{
			name:       "auth error maps to bad request",
			err:        &truelayer.AuthError{Code: "invalid_grant"},
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "upstream error maps to bad gateway",
			err:        &truelayer.UpstreamError{Status: 503},
			wantStatus: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &MockTrueLayer{
				AccountBalanceFunc: func(ctx context.Context, accountID string) (*truelayer.AccountBalance, error) {
					return nil, tt.err
				},
			}
			handler := NewAPIHandler(client, nil, nil, nil)

			req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-1/balance", nil)
			req.SetPathValue("id", "acc-1")
			rec := httptest.NewRecorder()

			handler.HandleBalance(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestHandleTransactionsLimit(t *testing.T) {
	var gotLimit int
	transactions := &MockTransactionReader{
		ListByAccountFunc: func(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error) {
			gotLimit = limit
			return nil, nil
		},
	}
	handler := NewAPIHandler(nil, nil, nil, transactions)

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-1/transactions?limit=25", nil)
	req.SetPathValue("id", "acc-1")
	rec := httptest.NewRecorder()

	handler.HandleTransactions(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotLimit != 25 {
		t.Errorf("limit = %d, want 25", gotLimit)
	}

	// empty result still encodes as a JSON array
	if body := rec.Body.String(); body != "[]\n" {
		t.Errorf("body = %q, want empty array", body)
	}
}

func TestHandleTransactionsInvalidLimit(t *testing.T) {
	handler := NewAPIHandler(nil, nil, nil, &MockTransactionReader{})

	req := httptest.NewRequest(http.MethodGet, "/api/accounts/acc-1/transactions?limit=-3", nil)
	req.SetPathValue("id", "acc-1")
	rec := httptest.NewRecorder()

	handler.HandleTransactions(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}
