package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Provider is a financial institution known to the aggregator. Credentials
// are only present once the user has completed the connect flow.
type Provider struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	LogoURL     string `json:"logo_url"`
}

// Credential is the stored OAuth2 token set for a connected provider.
type Credential struct {
	ProviderID   string
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Account is a bank account under a provider. Accounts are created once when
// first discovered and never deleted by the sync engine.
type Account struct {
	ID          string `json:"id"`
	ProviderID  string `json:"provider_id"`
	DisplayName string `json:"display_name"`
}

// Transaction is one synchronized transaction row. (AccountID, ID) is the
// unique key. Amounts are exact decimals so storage round-trips never drift.
type Transaction struct {
	ID           string          `json:"id"`
	AccountID    string          `json:"account_id"`
	Timestamp    time.Time       `json:"timestamp"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	Type         *string         `json:"type"`
	Category     *string         `json:"category"`
	Description  *string         `json:"description"`
	MerchantName *string         `json:"merchant_name"`
}
