package app

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/zedx/payments-service/internal/domain"
	"github.com/zedx/payments-service/internal/store"
)

// Profile aggregates the user with their cards, customer identity, funding
// sources and latest payments.
func (s *Service) Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	user, err := s.repo.FindUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, persistenceError("load user", err)
	}

	profile := &domain.Profile{User: user}

	if profile.Cards, err = s.repo.ListCards(ctx, userID); err != nil {
		return nil, persistenceError("list cards", err)
	}

	identity, err := s.repo.FindCustomerByUserID(ctx, userID)
	switch {
	case err == nil:
		profile.Customer = identity
	case !errors.Is(err, store.ErrCustomerNotFound):
		return nil, persistenceError("load customer identity", err)
	}

	if profile.FundingSources, err = s.repo.ListActiveFundingSources(ctx, userID); err != nil {
		return nil, persistenceError("list funding sources", err)
	}
	if profile.Payments, err = s.repo.ListPayments(ctx, userID, defaultPaymentsLimit); err != nil {
		return nil, persistenceError("list payments", err)
	}
	return profile, nil
}
