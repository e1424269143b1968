/**
 * @description
 * This file defines the Go structs that map to the Plaid API requests and
 * responses consumed by the aggregator client. Responses are decoded into these
 * typed shapes at the client boundary; the app layer never handles raw JSON.
 *
 * @notes
 * - Nullable balances use decimal.NullDecimal so "absent" and "zero" stay distinct.
 */
package domain

import "github.com/shopspring/decimal"

// Plaid account types relevant to this service.
const (
	PlaidAccountDepository = "depository"
	PlaidAccountCredit     = "credit"

	PlaidSubtypeChecking   = "checking"
	PlaidSubtypeSavings    = "savings"
	PlaidSubtypeCreditCard = "credit card"

	PlaidProcessorDwolla = "dwolla"
)

// LinkPurpose selects the products and account filters of a link session.
type LinkPurpose string

const (
	LinkPurposeCards LinkPurpose = "cards"
	LinkPurposeBank  LinkPurpose = "bank"
)

// --- Link Token ---

// LinkTokenUser identifies the end user of a link session.
type LinkTokenUser struct {
	ClientUserID string `json:"client_user_id"`
}

// AccountSubtypeFilter restricts the account subtypes shown during linking.
type AccountSubtypeFilter struct {
	AccountSubtypes []string `json:"account_subtypes"`
}

// LinkTokenCreateRequest is the payload for /link/token/create.
type LinkTokenCreateRequest struct {
	ClientName     string                          `json:"client_name"`
	User           LinkTokenUser                   `json:"user"`
	Products       []string                        `json:"products"`
	CountryCodes   []string                        `json:"country_codes"`
	Language       string                          `json:"language"`
	AccountFilters map[string]AccountSubtypeFilter `json:"account_filters,omitempty"`
}

// LinkTokenCreateResponse is returned by /link/token/create.
type LinkTokenCreateResponse struct {
	LinkToken  string `json:"link_token"`
	Expiration string `json:"expiration"`
	RequestID  string `json:"request_id"`
}

// --- Token Exchange ---

// TokenExchangeResponse is returned by /item/public_token/exchange.
type TokenExchangeResponse struct {
	AccessToken string `json:"access_token"`
	ItemID      string `json:"item_id"`
	RequestID   string `json:"request_id"`
}

// --- Accounts ---

// AccountBalances holds the balances reported for an account.
type AccountBalances struct {
	Current   decimal.NullDecimal `json:"current"`
	Available decimal.NullDecimal `json:"available"`
	Limit     decimal.NullDecimal `json:"limit"`
}

// Account is a single account returned by /accounts/get.
type Account struct {
	AccountID string          `json:"account_id"`
	Type      string          `json:"type"`
	Subtype   string          `json:"subtype"`
	Name      string          `json:"name"`
	Mask      string          `json:"mask"`
	Balances  AccountBalances `json:"balances"`
}

// AccountsResponse is returned by /accounts/get.
type AccountsResponse struct {
	Accounts []Account `json:"accounts"`
}

// --- Liabilities ---

// CreditLiability is the statement data of a credit account.
type CreditLiability struct {
	AccountID            string              `json:"account_id"`
	AccountIDs           []string            `json:"account_ids,omitempty"`
	LastStatementBalance decimal.NullDecimal `json:"last_statement_balance"`
	MinimumPaymentAmount decimal.NullDecimal `json:"minimum_payment_amount"`
	NextPaymentDueDate   string              `json:"next_payment_due_date"`
}

// Matches reports whether the liability belongs to the given account.
func (l CreditLiability) Matches(accountID string) bool {
	if l.AccountID == accountID {
		return true
	}
	for _, id := range l.AccountIDs {
		if id == accountID {
			return true
		}
	}
	return false
}

// Liabilities groups the liabilities returned by /liabilities/get.
type Liabilities struct {
	Credit []CreditLiability `json:"credit"`
}

// LiabilitiesResponse is returned by /liabilities/get.
type LiabilitiesResponse struct {
	Accounts    []Account   `json:"accounts"`
	Liabilities Liabilities `json:"liabilities"`
}

// --- Processor Token ---

// ProcessorTokenResponse is returned by /processor/token/create.
type ProcessorTokenResponse struct {
	ProcessorToken string `json:"processor_token"`
	RequestID      string `json:"request_id"`
}
