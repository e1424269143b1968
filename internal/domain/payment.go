/**
 * @description
 * This file defines the Payment model, the local record of a money movement
 * initiated on the payments network.
 *
 * @notes
 * - Payments are created with status "pending" and are not updated afterwards;
 *   settlement states are owned by the payments network.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentStatus is the local status of a payment.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "pending"
)

// CurrencyUSD is the only currency moved by this service.
const CurrencyUSD = "USD"

// Payment is a money-movement record.
type Payment struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	CreditCardID     uuid.UUID       `json:"credit_card_id"`
	FundingSourceID  uuid.UUID       `json:"funding_source_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	DwollaTransferID string          `json:"dwolla_transfer_id"`
	Status           PaymentStatus   `json:"status"`
	CreatedAt        time.Time       `json:"created_at"`
}

// PaymentSummary is a payment joined with the display names of its card and bank.
type PaymentSummary struct {
	Payment
	CardName *string `json:"card_name"`
	BankName *string `json:"bank_name"`
}
