/**
 * @description
 * This file contains the Service that implements the core operations of the
 * payments service: customer reconciliation, bank linking, card sync and
 * payment initiation. It orchestrates the ledger, the account aggregator, the
 * payments network and the vault, all injected as interfaces.
 *
 * @notes
 * - The service holds no per-user state between calls; every operation reloads
 *   what it needs from the ledger.
 * - External calls within one operation run strictly in sequence.
 */
package app

import (
	"context"

	"github.com/zedx/payments-service/internal/domain"
	"github.com/zedx/payments-service/internal/store"
)

// AccountAggregator is the account-aggregation provider (Plaid).
type AccountAggregator interface {
	CreateLinkToken(ctx context.Context, req domain.LinkTokenCreateRequest) (*domain.LinkTokenCreateResponse, error)
	ExchangePublicToken(ctx context.Context, publicToken string) (*domain.TokenExchangeResponse, error)
	GetAccounts(ctx context.Context, accessToken string) (*domain.AccountsResponse, error)
	GetLiabilities(ctx context.Context, accessToken string) (*domain.LiabilitiesResponse, error)
	CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (*domain.ProcessorTokenResponse, error)
}

// PaymentsNetwork is the money-movement provider (Dwolla).
type PaymentsNetwork interface {
	CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (*domain.CreateOutcome, error)
	SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error)
	GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error)
	ListExchangePartners(ctx context.Context) ([]domain.ExchangePartner, error)
	CreateExchange(ctx context.Context, customerID, partnerHref, token string) (string, error)
	CreateFundingSource(ctx context.Context, customerID, exchangeHref string, accountType domain.BankAccountType, name string) (*domain.CreateOutcome, error)
	RemoveFundingSource(ctx context.Context, fundingSourceID string) error
	CreateTransfer(ctx context.Context, sourceHref, destinationHref string, amount domain.Amount) (string, error)
	CustomerHref(customerID string) string
	FundingSourceHref(fundingSourceID string) string
}

// Vault encrypts sensitive fields before they are stored.
type Vault interface {
	Encrypt(plaintext string) (string, error)
	Decrypt(envelope string) (string, error)
}

// Options carries the configuration the core operations depend on.
type Options struct {
	ClientName          string
	ExchangePartnerName string
	// PaymentDestinationFundingSourceID is the platform settlement funding
	// source. When empty, transfers go to the user's own customer record.
	PaymentDestinationFundingSourceID string
}

// Service implements the core operations.
type Service struct {
	repo       store.Repository
	aggregator AccountAggregator
	network    PaymentsNetwork
	vault      Vault
	opts       Options
}

// NewService creates a new instance of Service.
func NewService(repo store.Repository, aggregator AccountAggregator, network PaymentsNetwork, vault Vault, opts Options) *Service {
	if opts.ClientName == "" {
		opts.ClientName = "ZEDX App"
	}
	if opts.ExchangePartnerName == "" {
		opts.ExchangePartnerName = "Plaid"
	}
	return &Service{
		repo:       repo,
		aggregator: aggregator,
		network:    network,
		vault:      vault,
		opts:       opts,
	}
}
