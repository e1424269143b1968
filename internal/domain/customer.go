/**
 * @description
 * This file defines the CustomerIdentity model: the local record of a user's
 * customer on the payments network, together with the KYC data used to create it.
 *
 * @notes
 * - There is at most one identity per user; it is never re-created once present.
 * - `SSNLast4` always holds a Vault envelope, never the raw digits.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
)

// CustomerStatus mirrors the payments-network customer status.
type CustomerStatus string

const (
	CustomerStatusVerified    CustomerStatus = "verified"
	CustomerStatusUnverified  CustomerStatus = "unverified"
	CustomerStatusRetry       CustomerStatus = "retry"
	CustomerStatusDocument    CustomerStatus = "document"
	CustomerStatusSuspended   CustomerStatus = "suspended"
	CustomerStatusDeactivated CustomerStatus = "deactivated"
)

// CustomerIdentity links a user to their payments-network customer.
type CustomerIdentity struct {
	ID               uuid.UUID      `json:"id"`
	UserID           uuid.UUID      `json:"user_id"`
	DwollaCustomerID string         `json:"dwolla_customer_id"`
	LegalFirstName   string         `json:"legal_first_name"`
	LegalLastName    string         `json:"legal_last_name"`
	DateOfBirth      string         `json:"dob"`
	SSNLast4         string         `json:"-"`
	AddressLine1     string         `json:"address_line1"`
	AddressLine2     string         `json:"address_line2,omitempty"`
	City             string         `json:"city"`
	State            string         `json:"state"`
	PostalCode       string         `json:"postal_code"`
	Email            string         `json:"email"`
	Status           CustomerStatus `json:"status"`
	CreatedAt        time.Time      `json:"created_at"`
	UpdatedAt        time.Time      `json:"updated_at"`
}

// KYCInput carries the fields required to create a payments-network customer.
type KYCInput struct {
	LegalFirstName string `json:"legal_first_name"`
	LegalLastName  string `json:"legal_last_name"`
	DateOfBirth    string `json:"dob"`
	SSNLast4       string `json:"ssn_last4"`
	AddressLine1   string `json:"address_line1"`
	AddressLine2   string `json:"address_line2"`
	City           string `json:"city"`
	State          string `json:"state"`
	PostalCode     string `json:"postal_code"`
	Email          string `json:"email"`
}
