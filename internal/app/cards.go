package app

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zedx/payments-service/internal/domain"
	"github.com/zedx/payments-service/pkg/plaidclient"
)

// SyncCards turns a card link session into stored card accounts enriched with
// liability data and returns every card stored for the user.
func (s *Service) SyncCards(ctx context.Context, userID uuid.UUID, publicToken string) ([]domain.CardAccount, error) {
	publicToken = strings.TrimSpace(publicToken)
	if publicToken == "" {
		return nil, validationError("public_token is required")
	}

	exchange, err := s.aggregator.ExchangePublicToken(ctx, publicToken)
	if err != nil {
		return nil, upstreamError("exchange public token", err)
	}
	if err := s.repo.UpsertAggregatorItem(ctx, &domain.AggregatorItem{
		UserID:      userID,
		Type:        domain.ItemTypeCards,
		AccessToken: exchange.AccessToken,
		ItemID:      exchange.ItemID,
	}); err != nil {
		return nil, persistenceError("store aggregator item", err)
	}

	accounts, err := s.aggregator.GetAccounts(ctx, exchange.AccessToken)
	if err != nil {
		return nil, upstreamError("get accounts", err)
	}

	liabilities := s.fetchLiabilities(ctx, userID, exchange.AccessToken)

	for _, account := range accounts.Accounts {
		if account.Type != domain.PlaidAccountCredit {
			continue
		}
		card := buildCard(userID, account, matchLiability(liabilities, account.AccountID))
		if err := s.repo.UpsertCard(ctx, card); err != nil {
			return nil, persistenceError("store card", err)
		}
	}

	cards, err := s.repo.ListCards(ctx, userID)
	if err != nil {
		return nil, persistenceError("list cards", err)
	}
	return cards, nil
}

// ListCards returns the stored cards of a user.
func (s *Service) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.CardAccount, error) {
	cards, err := s.repo.ListCards(ctx, userID)
	if err != nil {
		return nil, persistenceError("list cards", err)
	}
	return cards, nil
}

// fetchLiabilities is best-effort: any failure yields no liabilities.
func (s *Service) fetchLiabilities(ctx context.Context, userID uuid.UUID, accessToken string) []domain.CreditLiability {
	resp, err := s.aggregator.GetLiabilities(ctx, accessToken)
	if err != nil {
		if plaidclient.IsProductNotReady(err) {
			log.Printf("level=info component=cards msg=\"liabilities not ready yet\" user_id=%s", userID)
		} else {
			log.Printf("level=warn component=cards msg=\"liabilities fetch failed\" user_id=%s err=%v", userID, err)
		}
		return nil
	}
	return resp.Liabilities.Credit
}

func matchLiability(liabilities []domain.CreditLiability, accountID string) *domain.CreditLiability {
	for i := range liabilities {
		if liabilities[i].Matches(accountID) {
			return &liabilities[i]
		}
	}
	return nil
}

func buildCard(userID uuid.UUID, account domain.Account, liability *domain.CreditLiability) *domain.CardAccount {
	current := valueOrZero(account.Balances.Current)
	limit := valueOrZero(account.Balances.Limit)

	available := limit.Sub(current)
	if account.Balances.Available.Valid {
		available = account.Balances.Available.Decimal
	}

	card := &domain.CardAccount{
		UserID:           userID,
		AccountID:        account.AccountID,
		Name:             account.Name,
		Mask:             account.Mask,
		CurrentBalance:   current,
		AvailableBalance: available,
		CreditLimit:      limit,
		TotalDue:         decimal.Zero,
		MinDue:           decimal.Zero,
	}

	if liability != nil {
		card.TotalDue = valueOrZero(liability.LastStatementBalance)
		card.MinDue = valueOrZero(liability.MinimumPaymentAmount)
		if due, err := time.Parse("2006-01-02", liability.NextPaymentDueDate); err == nil {
			card.NextDueDate = &due
		}
	}
	return card
}

func valueOrZero(d decimal.NullDecimal) decimal.Decimal {
	if d.Valid {
		return d.Decimal
	}
	return decimal.Zero
}
