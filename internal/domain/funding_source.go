/**
 * @description
 * This file defines the FundingSource model. A funding source is a bank account
 * registered on the payments network and mirrored in the local ledger.
 *
 * @notes
 * - "removed" sources are excluded from every active-source query.
 * - The linking flow treats one active source per user as the steady state.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// FundingSourceStatus is the lifecycle state of a funding source.
type FundingSourceStatus string

const (
	FundingSourceUnverified FundingSourceStatus = "unverified"
	FundingSourceVerified   FundingSourceStatus = "verified"
	FundingSourceRemoved    FundingSourceStatus = "removed"
)

// BankAccountType is the bank account type sent to the payments network.
type BankAccountType string

const (
	BankAccountChecking BankAccountType = "checking"
	BankAccountSavings  BankAccountType = "savings"
)

// FundingSource represents a linked bank account usable as a money source.
type FundingSource struct {
	ID                    uuid.UUID           `json:"id"`
	UserID                uuid.UUID           `json:"user_id"`
	CustomerIdentityID    uuid.UUID           `json:"customer_identity_id"`
	DwollaFundingSourceID string              `json:"dwolla_funding_source_id"`
	Last4                 string              `json:"last4"`
	Name                  string              `json:"name"`
	AccountType           BankAccountType     `json:"account_type"`
	Status                FundingSourceStatus `json:"status"`
	CreatedAt             time.Time           `json:"created_at"`
	UpdatedAt             time.Time           `json:"updated_at"`
}

// ItemType distinguishes the aggregator items a user can hold.
type ItemType string

const (
	ItemTypeBank  ItemType = "bank"
	ItemTypeCards ItemType = "cards"
)

// AggregatorItem is the durable aggregator link for one user and item type.
type AggregatorItem struct {
	UserID      uuid.UUID `json:"user_id"`
	Type        ItemType  `json:"item_type"`
	AccessToken string    `json:"-"`
	ItemID      string    `json:"item_id"`
}
