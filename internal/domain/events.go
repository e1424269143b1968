/**
 * @description
 * This file defines the domain events written to the outbox and published to
 * RabbitMQ after a ledger change commits.
 */
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Routing keys for published events.
const (
	RoutingKeyCustomerVerified    = "customer.verified"
	RoutingKeyFundingSourceLinked = "funding_source.linked"
	RoutingKeyPaymentInitiated    = "payment.initiated"
)

// CustomerVerifiedEvent is emitted once a user's customer identity is reconciled.
type CustomerVerifiedEvent struct {
	UserID           uuid.UUID `json:"user_id"`
	DwollaCustomerID string    `json:"dwolla_customer_id"`
	OccurredAt       time.Time `json:"occurred_at"`
}

// FundingSourceLinkedEvent is emitted when a funding source is stored.
type FundingSourceLinkedEvent struct {
	UserID                uuid.UUID `json:"user_id"`
	DwollaFundingSourceID string    `json:"dwolla_funding_source_id"`
	OccurredAt            time.Time `json:"occurred_at"`
}

// PaymentInitiatedEvent is emitted when a transfer has been created.
type PaymentInitiatedEvent struct {
	UserID           uuid.UUID       `json:"user_id"`
	PaymentID        uuid.UUID       `json:"payment_id"`
	DwollaTransferID string          `json:"dwolla_transfer_id"`
	Amount           decimal.Decimal `json:"amount"`
	Currency         string          `json:"currency"`
	OccurredAt       time.Time       `json:"occurred_at"`
}
