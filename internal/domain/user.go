/**
 * @description
 * This file defines the core domain model for a User. A user is the local identity
 * that owns every customer record, funding source, card and payment in the ledger.
 *
 * @notes
 * - `IsVerified` only flips to true once the user's payments-network customer
 *   has been reconciled.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User represents a registered account holder.
type User struct {
	ID           uuid.UUID `json:"id"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	IsVerified   bool      `json:"is_verified"`
	CreditScore  int       `json:"credit_score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Profile is the aggregated view returned to the authenticated user.
type Profile struct {
	User           *User             `json:"user"`
	Cards          []CardAccount     `json:"cards"`
	Customer       *CustomerIdentity `json:"dwolla"`
	FundingSources []FundingSource   `json:"fundingSources"`
	Payments       []PaymentSummary  `json:"payments"`
}
