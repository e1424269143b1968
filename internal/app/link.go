package app

import (
	"context"

	"github.com/google/uuid"
	"github.com/zedx/payments-service/internal/domain"
)

// CreateLinkToken starts an aggregator link session for cards or a bank account.
// An empty purpose means cards.
func (s *Service) CreateLinkToken(ctx context.Context, userID uuid.UUID, purpose domain.LinkPurpose) (*domain.LinkTokenCreateResponse, error) {
	req := domain.LinkTokenCreateRequest{
		ClientName:   s.opts.ClientName,
		User:         domain.LinkTokenUser{ClientUserID: userID.String()},
		CountryCodes: []string{"US"},
		Language:     "en",
	}

	switch purpose {
	case domain.LinkPurposeCards, "":
		req.Products = []string{"liabilities"}
		req.AccountFilters = map[string]domain.AccountSubtypeFilter{
			domain.PlaidAccountCredit: {AccountSubtypes: []string{domain.PlaidSubtypeCreditCard}},
		}
	case domain.LinkPurposeBank:
		req.Products = []string{"auth"}
		req.AccountFilters = map[string]domain.AccountSubtypeFilter{
			domain.PlaidAccountDepository: {AccountSubtypes: []string{domain.PlaidSubtypeChecking, domain.PlaidSubtypeSavings}},
		}
	default:
		return nil, validationError("purpose must be %q or %q", domain.LinkPurposeCards, domain.LinkPurposeBank)
	}

	resp, err := s.aggregator.CreateLinkToken(ctx, req)
	if err != nil {
		return nil, upstreamError("create link token", err)
	}
	return resp, nil
}
