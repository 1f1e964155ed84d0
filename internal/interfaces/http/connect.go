package http

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"

	"fintrack/internal/models"
	"fintrack/internal/truelayer"
)

const stateCookieName = "fintrack_oauth_state"

// ProviderStore is the persistence surface the connect flow needs.
type ProviderStore interface {
	Insert(ctx context.Context, p *models.Provider) (bool, error)
	UpdateCredentials(ctx context.Context, providerID, accessToken string, expiresAt time.Time, refreshToken string) error
}

// AccountWriter stores accounts discovered for a freshly connected provider.
type AccountWriter interface {
	Insert(ctx context.Context, acc *models.Account) error
}

// ConnectHandler drives the OAuth connect flow: redirect the user to the
// aggregator's consent screen, then exchange the callback code for tokens
// and persist them.
type ConnectHandler struct {
	client      truelayer.API
	providers   ProviderStore
	accounts    AccountWriter
	callbackURL string
}

func NewConnectHandler(client truelayer.API, providers ProviderStore, accounts AccountWriter, callbackURL string) *ConnectHandler {
	return &ConnectHandler{
		client:      client,
		providers:   providers,
		accounts:    accounts,
		callbackURL: callbackURL,
	}
}

// HandleConnect redirects the browser to the aggregator's authorization
// page, planting a state cookie checked again on callback.
func (h *ConnectHandler) HandleConnect(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	state := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookieName,
		Value:    state,
		Path:     "/connect",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.client.AuthLink(h.callbackURL, state), http.StatusTemporaryRedirect)
}

// HandleCallback completes the connect flow: validates state, exchanges the
// code, resolves the provider behind the new tokens, stores the credentials
// and discovers the provider's accounts.
func (h *ConnectHandler) HandleCallback(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	query := r.URL.Query()
	if errParam := query.Get("error"); errParam != "" {
		http.Error(w, errParam, http.StatusBadRequest)
		return
	}

	code := query.Get("code")
	if code == "" {
		http.Error(w, "'code' query parameter must be provided", http.StatusBadRequest)
		return
	}

	cookie, err := r.Cookie(stateCookieName)
	if err != nil || cookie.Value == "" || cookie.Value != query.Get("state") {
		http.Error(w, "OAuth state mismatch", http.StatusBadRequest)
		return
	}

	ctx := r.Context()

	tokens, err := h.client.ExchangeCode(ctx, code, h.callbackURL)
	if err != nil {
		log.Printf("Error exchanging auth code: %v", err)
		http.Error(w, "Failed to exchange code for auth token", http.StatusInternalServerError)
		return
	}

	metadata, err := h.client.TokenMetadata(ctx, tokens.AccessToken)
	if err != nil {
		log.Printf("Error resolving token metadata: %v", err)
		http.Error(w, "Failed to get metadata for auth tokens", http.StatusInternalServerError)
		return
	}

	provider := &models.Provider{
		ID:          metadata.Provider.ProviderID,
		DisplayName: metadata.Provider.DisplayName,
		LogoURL:     metadata.Provider.LogoURI,
	}

	if _, err := h.providers.Insert(ctx, provider); err != nil {
		log.Printf("Error saving provider %s: %v", provider.ID, err)
		http.Error(w, "Failed to save provider", http.StatusInternalServerError)
		return
	}

	expiresAt := time.Now().Add(time.Duration(tokens.ExpiresIn) * time.Second)
	if err := h.providers.UpdateCredentials(ctx, provider.ID, tokens.AccessToken, expiresAt, tokens.RefreshToken); err != nil {
		log.Printf("Error saving credentials for provider %s: %v", provider.ID, err)
		http.Error(w, "Failed to save credentials", http.StatusInternalServerError)
		return
	}

	if err := h.discoverAccounts(ctx, provider.ID); err != nil {
		log.Printf("Error discovering accounts for provider %s: %v", provider.ID, err)
		http.Error(w, "Failed to get accounts for provider", http.StatusInternalServerError)
		return
	}

	http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
}

func (h *ConnectHandler) discoverAccounts(ctx context.Context, providerID string) error {
	accounts, err := h.client.Accounts(ctx, providerID)
	if err != nil {
		return err
	}

	for _, acc := range accounts {
		err := h.accounts.Insert(ctx, &models.Account{
			ID:          acc.AccountID,
			ProviderID:  providerID,
			DisplayName: acc.DisplayName,
		})
		if err != nil {
			return err
		}
		log.Printf("account '%s' stored for provider %s", acc.DisplayName, providerID)
	}

	return nil
}
