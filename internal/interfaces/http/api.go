package http

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"fintrack/internal/models"
	"fintrack/internal/truelayer"
)

const defaultTransactionLimit = 100

// ProviderReader lists stored providers.
type ProviderReader interface {
	Connected(ctx context.Context) ([]*models.Provider, error)
}

// AccountReader lists stored accounts.
type AccountReader interface {
	All(ctx context.Context) ([]*models.Account, error)
	ByProvider(ctx context.Context, providerID string) ([]*models.Account, error)
}

// TransactionReader lists stored transactions.
type TransactionReader interface {
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*models.Transaction, error)
}

// APIHandler serves the read endpoints: stored providers, accounts and
// transactions, plus live balance and pending-transaction passthroughs.
type APIHandler struct {
	client       truelayer.API
	providers    ProviderReader
	accounts     AccountReader
	transactions TransactionReader
}

func NewAPIHandler(client truelayer.API, providers ProviderReader, accounts AccountReader, transactions TransactionReader) *APIHandler {
	return &APIHandler{
		client:       client,
		providers:    providers,
		accounts:     accounts,
		transactions: transactions,
	}
}

// HandleProviders returns all providers the user has connected.
func (h *APIHandler) HandleProviders(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	providers, err := h.providers.Connected(r.Context())
	if err != nil {
		log.Printf("Error listing connected providers: %v", err)
		http.Error(w, "Failed to list providers", http.StatusInternalServerError)
		return
	}
	if providers == nil {
		providers = []*models.Provider{}
	}

	writeJSON(w, providers)
}

// HandleAccounts returns stored accounts, optionally filtered by provider.
func (h *APIHandler) HandleAccounts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var accounts []*models.Account
	var err error
	if provider := r.URL.Query().Get("provider"); provider != "" {
		accounts, err = h.accounts.ByProvider(r.Context(), provider)
	} else {
		accounts, err = h.accounts.All(r.Context())
	}
	if err != nil {
		log.Printf("Error listing accounts: %v", err)
		http.Error(w, "Failed to list accounts", http.StatusInternalServerError)
		return
	}
	if accounts == nil {
		accounts = []*models.Account{}
	}

	writeJSON(w, accounts)
}

// HandleBalance proxies a live balance lookup to the aggregator.
func (h *APIHandler) HandleBalance(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := r.PathValue("id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	balance, err := h.client.AccountBalance(r.Context(), accountID)
	if err != nil {
		h.upstreamError(w, "balance", accountID, err)
		return
	}

	writeJSON(w, balance)
}

// HandlePendingTransactions proxies a live pending-transactions lookup.
func (h *APIHandler) HandlePendingTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := r.PathValue("id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	pending, err := h.client.PendingTransactions(r.Context(), accountID)
	if err != nil {
		h.upstreamError(w, "pending transactions", accountID, err)
		return
	}
	if pending == nil {
		pending = []truelayer.Transaction{}
	}

	writeJSON(w, pending)
}

// HandleTransactions returns the synchronized transactions for an account.
func (h *APIHandler) HandleTransactions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	accountID := r.PathValue("id")
	if accountID == "" {
		http.Error(w, "Account ID is required", http.StatusBadRequest)
		return
	}

	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	transactions, err := h.transactions.ListByAccount(r.Context(), accountID, limit)
	if err != nil {
		log.Printf("Error listing transactions for account %s: %v", accountID, err)
		http.Error(w, "Failed to list transactions", http.StatusInternalServerError)
		return
	}
	if transactions == nil {
		transactions = []*models.Transaction{}
	}

	writeJSON(w, transactions)
}

// HandleHealth reports process liveness.
func HandleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

// upstreamError maps aggregator failures to client-facing statuses: auth
// failures are the caller's problem, everything else is a gateway fault.
func (h *APIHandler) upstreamError(w http.ResponseWriter, op, accountID string, err error) {
	log.Printf("Error fetching %s for account %s: %v", op, accountID, err)

	var authErr *truelayer.AuthError
	if errors.As(err, &authErr) {
		http.Error(w, "Provider authorization failed", http.StatusBadRequest)
		return
	}
	http.Error(w, "Upstream request failed", http.StatusBadGateway)
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
