package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/zedx/payments-service/internal/domain"
	"github.com/zedx/payments-service/internal/store"
)

const defaultFundingSourceName = "Primary Bank Account"

// LinkBankResult is returned by LinkBankAccount.
type LinkBankResult struct {
	FundingSource *domain.FundingSource `json:"funding_source"`
	Reused        bool                  `json:"reused"`
}

// LinkBankAccount turns a bank link session into a verified funding source on
// both the payments network and the ledger. A user keeps at most one active
// funding source; when one exists it is returned without any external call.
func (s *Service) LinkBankAccount(ctx context.Context, userID uuid.UUID, publicToken string) (*LinkBankResult, error) {
	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, validationError("public_token is required")
	}

	identity, err := s.repo.FindCustomerByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			return nil, notFoundError("customer not found; complete identity verification first")
		}
		return nil, persistenceError("load customer identity", err)
	}

	// 1. Idempotency check.
	active, err := s.repo.FindActiveFundingSource(ctx, userID)
	if err == nil {
		return &LinkBankResult{FundingSource: active, Reused: true}, nil
	}
	if !errors.Is(err, store.ErrFundingSourceNotFound) {
		return nil, persistenceError("load funding source", err)
	}

	// 2. Durable access token.
	exchange, err := s.aggregator.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, upstreamError("exchange public token", err)
	}
	if err := s.repo.UpsertAggregatorItem(ctx, &domain.AggregatorItem{
		UserID:      userID,
		Type:        domain.ItemTypeBank,
		AccessToken: exchange.AccessToken,
		ItemID:      exchange.ItemID,
	}); err != nil {
		return nil, persistenceError("store aggregator item", err)
	}

	// 3. Exactly one depository account.
	accounts, err := s.aggregator.GetAccounts(ctx, exchange.AccessToken)
	if err != nil {
		return nil, upstreamError("get accounts", err)
	}
	var depository []domain.Account
	for _, account := range accounts.Accounts {
		if account.Type == domain.PlaidAccountDepository {
			depository = append(depository, account)
		}
	}
	if len(depository) != 1 {
		return nil, validationError("select exactly one account (got %d bank accounts)", len(depository))
	}
	account := depository[0]

	// 4. Processor token for the payments network.
	processor, err := s.aggregator.CreateProcessorToken(ctx, exchange.AccessToken, account.AccountID, domain.PlaidProcessorDwolla)
	if err != nil {
		return nil, upstreamError("create processor token", err)
	}

	// 5. Exchange partner.
	partnerHref, err := s.resolveExchangePartner(ctx)
	if err != nil {
		return nil, err
	}

	// 6. Exchange resource.
	exchangeHref, err := s.network.CreateExchange(ctx, identity.DwollaCustomerID, partnerHref, processor.ProcessorToken)
	if err != nil {
		return nil, upstreamError("create exchange", err)
	}

	// 7. Funding source; a duplicate carries the existing id (9).
	accountType := bankAccountType(account.Subtype)
	name := fundingSourceName(account)
	outcome, err := s.network.CreateFundingSource(ctx, identity.DwollaCustomerID, exchangeHref, accountType, name)
	if err != nil {
		return nil, upstreamError("create funding source", err)
	}
	if outcome.AlreadyExists {
		log.Printf("level=info component=funding msg=\"funding source already exists on network\" user_id=%s funding_source_id=%s", userID, outcome.ID)
	}
	if outcome.ID == "" {
		return nil, fmt.Errorf("%w: funding source id missing from network response", ErrUpstream)
	}

	// 8. Ledger row, conflict-safe on the network id.
	stored, err := s.repo.CreateFundingSource(ctx, &domain.FundingSource{
		UserID:                userID,
		CustomerIdentityID:    identity.ID,
		DwollaFundingSourceID: outcome.ID,
		Last4:                 account.Mask,
		Name:                  name,
		AccountType:           accountType,
		Status:                domain.FundingSourceVerified,
	})
	if err != nil {
		log.Printf("level=error component=funding msg=\"persist funding source failed\" user_id=%s funding_source_id=%s err=%v", userID, outcome.ID, err)
		return nil, persistenceError("store funding source", err)
	}
	if stored.UserID != userID {
		log.Printf("level=warn component=funding msg=\"funding source owned by another user\" user_id=%s funding_source_id=%s", userID, outcome.ID)
		return nil, fmt.Errorf("%w: bank account is already linked to another user", ErrConflict)
	}

	log.Printf("level=info component=funding msg=\"bank account linked\" user_id=%s funding_source_id=%s", userID, stored.DwollaFundingSourceID)
	return &LinkBankResult{FundingSource: stored}, nil
}

// ListFundingSources returns the user's non-removed funding sources, newest first.
func (s *Service) ListFundingSources(ctx context.Context, userID uuid.UUID) ([]domain.FundingSource, error) {
	sources, err := s.repo.ListActiveFundingSources(ctx, userID)
	if err != nil {
		return nil, persistenceError("list funding sources", err)
	}
	return sources, nil
}

// RemoveFundingSource removes a funding source on the network, then marks it
// removed locally.
func (s *Service) RemoveFundingSource(ctx context.Context, userID, fundingSourceID uuid.UUID) error {
	source, err := s.repo.FindFundingSourceByID(ctx, userID, fundingSourceID)
	if err != nil {
		if errors.Is(err, store.ErrFundingSourceNotFound) {
			return notFoundError("funding source not found")
		}
		return persistenceError("load funding source", err)
	}
	if source.Status == domain.FundingSourceRemoved {
		return notFoundError("funding source not found")
	}

	if err := s.network.RemoveFundingSource(ctx, source.DwollaFundingSourceID); err != nil {
		return upstreamError("remove funding source", err)
	}
	if err := s.repo.MarkFundingSourceRemoved(ctx, userID, fundingSourceID); err != nil {
		return persistenceError("mark funding source removed", err)
	}
	return nil
}

func (s *Service) resolveExchangePartner(ctx context.Context) (string, error) {
	partners, err := s.network.ListExchangePartners(ctx)
	if err != nil {
		return "", upstreamError("list exchange partners", err)
	}
	for _, partner := range partners {
		if strings.EqualFold(strings.TrimSpace(partner.Name), s.opts.ExchangePartnerName) && partner.Href() != "" {
			return partner.Href(), nil
		}
	}
	log.Printf("level=error component=funding msg=\"exchange partner not registered\" partner=%s", s.opts.ExchangePartnerName)
	return "", fmt.Errorf("%w: exchange partner %q not found", ErrUpstream, s.opts.ExchangePartnerName)
}

func bankAccountType(subtype string) domain.BankAccountType {
	if strings.EqualFold(subtype, domain.PlaidSubtypeSavings) {
		return domain.BankAccountSavings
	}
	return domain.BankAccountChecking
}

func fundingSourceName(account domain.Account) string {
	name := strings.TrimSpace(account.Name)
	switch {
	case name != "" && account.Mask != "":
		return fmt.Sprintf("%s ••%s", name, account.Mask)
	case name != "":
		return name
	default:
		return defaultFundingSourceName
	}
}
