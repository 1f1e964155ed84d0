package truelayer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Env selects between the TrueLayer sandbox and live environments.
type Env string

const (
	EnvSandbox Env = "sandbox"
	EnvLive    Env = "live"
)

const defaultTimeout = 180 * time.Second // transaction history fetches can be slow

// Config holds the OAuth2 client credentials and target environment.
type Config struct {
	ClientID     string
	ClientSecret string
	Env          Env
}

// Client talks to the TrueLayer auth and data APIs. It holds no mutable
// state beyond its HTTP transport and the injected token source.
type Client struct {
	httpClient *http.Client
	config     Config
	tokens     TokenSource

	// overridable for tests
	authBase string
	apiBase  string
}

// Ensure Client satisfies the interfaces its collaborators depend on.
var (
	_ API          = (*Client)(nil)
	_ TokenRenewer = (*Client)(nil)
)

// NewClient creates a TrueLayer API client. Authenticated data calls resolve
// their bearer token through the given token source.
func NewClient(config Config, tokens TokenSource) *Client {
	hostname := "truelayer-sandbox.com"
	if config.Env == EnvLive {
		hostname = "truelayer.com"
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		config:   config,
		tokens:   tokens,
		authBase: "https://auth." + hostname,
		apiBase:  "https://api." + hostname,
	}
}

// AuthLink builds the user-facing authorization URL for the connect flow.
func (c *Client) AuthLink(callback, state string) string {
	providers := "uk-ob-all uk-oauth-all uk-cs-mock"
	if c.config.Env == EnvLive {
		providers = "uk-ob-all uk-oauth-all"
	}

	params := url.Values{}
	params.Set("response_type", "code")
	params.Set("client_id", c.config.ClientID)
	params.Set("scope", "info accounts balance cards transactions direct_debits standing_orders offline_access")
	params.Set("redirect_uri", callback)
	params.Set("providers", providers)
	params.Set("state", state)

	return c.authBase + "/?" + params.Encode()
}

// ExchangeCode trades an authorization code for a token set.
func (c *Client) ExchangeCode(ctx context.Context, code, callback string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("code", code)
	form.Set("grant_type", "authorization_code")
	form.Set("redirect_uri", callback)

	return c.postToken(ctx, form)
}

// RenewToken trades a refresh token for a fresh token set.
func (c *Client) RenewToken(ctx context.Context, refreshToken string) (*TokenResponse, error) {
	form := url.Values{}
	form.Set("client_id", c.config.ClientID)
	form.Set("client_secret", c.config.ClientSecret)
	form.Set("refresh_token", refreshToken)
	form.Set("grant_type", "refresh_token")

	return c.postToken(ctx, form)
}

func (c *Client) postToken(ctx context.Context, form url.Values) (*TokenResponse, error) {
	endpoint := c.authBase + "/connect/token"

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode != http.StatusOK {
		return nil, classifyError(res.StatusCode, body)
	}

	var token TokenResponse
	if err := json.Unmarshal(body, &token); err != nil {
		return nil, &DecodeError{Err: err}
	}

	return &token, nil
}

// TokenMetadata resolves an access token to its owning provider.
func (c *Client) TokenMetadata(ctx context.Context, accessToken string) (*TokenMetadata, error) {
	var res results[TokenMetadata]
	if err := c.getJSON(ctx, c.apiBase+"/data/v1/me", accessToken, &res); err != nil {
		return nil, err
	}

	if len(res.Results) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("empty metadata response")}
	}

	return &res.Results[0], nil
}

// SupportedProviders lists every institution the aggregator can connect to.
// The endpoint is unauthenticated.
func (c *Client) SupportedProviders(ctx context.Context) ([]Provider, error) {
	var providers []Provider
	if err := c.getJSON(ctx, c.authBase+"/api/providers", "", &providers); err != nil {
		return nil, err
	}
	return providers, nil
}

// Accounts lists the accounts reachable with the given provider's credential.
func (c *Client) Accounts(ctx context.Context, providerID string) ([]Account, error) {
	accessToken, err := c.tokens.TokenForProvider(ctx, c, providerID)
	if err != nil {
		return nil, err
	}

	var res results[Account]
	if err := c.getJSON(ctx, c.apiBase+"/data/v1/accounts", accessToken, &res); err != nil {
		return nil, err
	}

	return res.Results, nil
}

// AccountBalance fetches the current balance for an account.
func (c *Client) AccountBalance(ctx context.Context, accountID string) (*AccountBalance, error) {
	accessToken, err := c.tokens.TokenForAccount(ctx, c, accountID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/data/v1/accounts/%s/balance", c.apiBase, accountID)

	var res results[AccountBalance]
	if err := c.getJSON(ctx, endpoint, accessToken, &res); err != nil {
		return nil, err
	}

	if len(res.Results) == 0 {
		return nil, &DecodeError{Err: fmt.Errorf("empty account balance response")}
	}

	return &res.Results[0], nil
}

// Transactions fetches the settled transactions for an account in [from, to].
func (c *Client) Transactions(ctx context.Context, accountID string, from, to time.Time) ([]Transaction, error) {
	accessToken, err := c.tokens.TokenForAccount(ctx, c, accountID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf(
		"%s/data/v1/accounts/%s/transactions?from=%s&to=%s",
		c.apiBase,
		accountID,
		from.UTC().Format("2006-01-02T15:04:05Z"),
		to.UTC().Format("2006-01-02T15:04:05Z"),
	)

	var res results[Transaction]
	if err := c.getJSON(ctx, endpoint, accessToken, &res); err != nil {
		return nil, err
	}

	return res.Results, nil
}

// PendingTransactions fetches the not-yet-settled transactions for an account.
func (c *Client) PendingTransactions(ctx context.Context, accountID string) ([]Transaction, error) {
	accessToken, err := c.tokens.TokenForAccount(ctx, c, accountID)
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/data/v1/accounts/%s/transactions/pending", c.apiBase, accountID)

	var res results[Transaction]
	if err := c.getJSON(ctx, endpoint, accessToken, &res); err != nil {
		return nil, err
	}

	return res.Results, nil
}

func (c *Client) getJSON(ctx context.Context, endpoint, accessToken string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if accessToken != "" {
		req.Header.Set("Authorization", "Bearer "+accessToken)
	}

	res, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return classifyError(res.StatusCode, body)
	}

	if err := json.Unmarshal(body, v); err != nil {
		return &DecodeError{Err: err}
	}

	return nil
}
