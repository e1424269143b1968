/**
 * @description
 * This file declares the ledger interfaces used by the application layer and the
 * sentinel errors every implementation must return for "not found" and
 * uniqueness outcomes.
 *
 * @notes
 * - Writes that have a downstream event (identity verified, funding source
 *   linked, payment initiated) enqueue the event in the same transaction as the
 *   row change; the OutboxDispatcher publishes it later.
 */
package store

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/zedx/payments-service/internal/domain"
)

var (
	ErrUserNotFound          = errors.New("user not found")
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrCustomerNotFound      = errors.New("customer identity not found")
	ErrFundingSourceNotFound = errors.New("funding source not found")
	ErrCardNotFound          = errors.New("credit card not found")
)

// UserRepository stores application users.
type UserRepository interface {
	CreateUser(ctx context.Context, user *domain.User) error
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
	FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error)
}

// CustomerRepository stores payments-network customer identities.
type CustomerRepository interface {
	FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*domain.CustomerIdentity, error)
	// CreateCustomerIdentity inserts the identity, marks the user verified and
	// enqueues a customer.verified event atomically. If an identity already
	// exists for the user, the stored one is returned with created=false and
	// nothing else changes.
	CreateCustomerIdentity(ctx context.Context, identity *domain.CustomerIdentity) (stored *domain.CustomerIdentity, created bool, err error)
	UpdateCustomerStatus(ctx context.Context, userID uuid.UUID, status domain.CustomerStatus) error
}

// AggregatorItemRepository stores aggregator access tokens per user and item type.
type AggregatorItemRepository interface {
	UpsertAggregatorItem(ctx context.Context, item *domain.AggregatorItem) error
}

// FundingSourceRepository stores linked bank funding sources.
type FundingSourceRepository interface {
	FindActiveFundingSource(ctx context.Context, userID uuid.UUID) (*domain.FundingSource, error)
	ListActiveFundingSources(ctx context.Context, userID uuid.UUID) ([]domain.FundingSource, error)
	FindFundingSourceByID(ctx context.Context, userID, fundingSourceID uuid.UUID) (*domain.FundingSource, error)
	// CreateFundingSource inserts the source unless its network id is already
	// stored, then returns the stored row.
	CreateFundingSource(ctx context.Context, source *domain.FundingSource) (*domain.FundingSource, error)
	MarkFundingSourceRemoved(ctx context.Context, userID, fundingSourceID uuid.UUID) error
}

// CardRepository stores credit-card accounts.
type CardRepository interface {
	UpsertCard(ctx context.Context, card *domain.CardAccount) error
	ListCards(ctx context.Context, userID uuid.UUID) ([]domain.CardAccount, error)
	FindCardByID(ctx context.Context, userID, cardID uuid.UUID) (*domain.CardAccount, error)
}

// PaymentRepository stores payment records.
type PaymentRepository interface {
	CreatePayment(ctx context.Context, payment *domain.Payment) error
	ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PaymentSummary, error)
}

// OutboxMessage is a claimed event awaiting publication.
type OutboxMessage struct {
	ID         int64
	Exchange   string
	RoutingKey string
	Payload    []byte
	Attempts   int
}

// OutboxRepository exposes the event outbox to the dispatcher.
type OutboxRepository interface {
	ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]OutboxMessage, error)
	MarkOutboxPublished(ctx context.Context, id int64) error
	MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error
}

// Repository is the full ledger used by the service.
type Repository interface {
	UserRepository
	CustomerRepository
	AggregatorItemRepository
	FundingSourceRepository
	CardRepository
	PaymentRepository
	OutboxRepository
}
