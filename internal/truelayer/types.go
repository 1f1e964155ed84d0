package truelayer

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenResponse is the body returned by the token endpoint for both the
// authorization_code and refresh_token grants.
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	ExpiresIn    int64  `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// Provider is an institution supported by the aggregator.
type Provider struct {
	ProviderID  string `json:"provider_id"`
	DisplayName string `json:"display_name"`
	LogoURL     string `json:"logo_url"`
}

// TokenMetadata resolves an access token to the provider that issued it.
type TokenMetadata struct {
	Provider ProviderMetadata `json:"provider"`
}

type ProviderMetadata struct {
	ProviderID  string `json:"provider_id"`
	DisplayName string `json:"display_name"`
	LogoURI     string `json:"logo_uri"`
}

// Account is a bank account as reported by the data API.
type Account struct {
	AccountID       string           `json:"account_id"`
	AccountType     string           `json:"account_type"`
	AccountNumber   AccountNumber    `json:"account_number"`
	Currency        string           `json:"currency"`
	DisplayName     string           `json:"display_name"`
	UpdateTimestamp string           `json:"update_timestamp"`
	Provider        ProviderMetadata `json:"provider"`
	Description     *string          `json:"description"`
}

type AccountNumber struct {
	IBAN     *string `json:"iban"`
	Number   *string `json:"number"`
	SortCode *string `json:"sort_code"`
}

// AccountBalance is the current balance snapshot for an account.
type AccountBalance struct {
	Currency        string          `json:"currency"`
	Available       decimal.Decimal `json:"available"`
	Current         decimal.Decimal `json:"current"`
	Overdraft       decimal.Decimal `json:"overdraft"`
	UpdateTimestamp string          `json:"update_timestamp"`
}

// Transaction is one transaction as reported by the data API.
type Transaction struct {
	TransactionID             string                 `json:"transaction_id"`
	Timestamp                 time.Time              `json:"timestamp"`
	Description               string                 `json:"description"`
	TransactionType           string                 `json:"transaction_type"`
	TransactionCategory       string                 `json:"transaction_category"`
	TransactionClassification []string               `json:"transaction_classification"`
	MerchantName              *string                `json:"merchant_name"`
	Amount                    decimal.Decimal        `json:"amount"`
	Currency                  string                 `json:"currency"`
	RunningBalance            *RunningBalance        `json:"running_balance"`
	Meta                      map[string]interface{} `json:"meta"`
}

type RunningBalance struct {
	Amount   *decimal.Decimal `json:"amount"`
	Currency *string          `json:"currency"`
}

// Data endpoints wrap their payloads in a results envelope.
type results[T any] struct {
	Results []T `json:"results"`
}
