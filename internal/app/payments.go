package app

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/zedx/payments-service/internal/domain"
	"github.com/zedx/payments-service/internal/store"
)

const (
	defaultPaymentsLimit = 20
	maxPaymentsLimit     = 100
)

// maxPaymentAmount is the largest value payments.amount (numeric(12,2)) holds.
var maxPaymentAmount = decimal.RequireFromString("9999999999.99")

// PaymentInput is the request to pay a card from a funding source.
type PaymentInput struct {
	CreditCardID    string          `json:"creditCardId"`
	FundingSourceID string          `json:"fundingSourceId"`
	Amount          decimal.Decimal `json:"amount"`
}

// PaymentResult is returned by InitiatePayment.
type PaymentResult struct {
	PaymentID        uuid.UUID            `json:"payment_id"`
	DwollaTransferID string               `json:"dwolla_transfer_id"`
	Status           domain.PaymentStatus `json:"status"`
}

// InitiatePayment creates a transfer on the payments network and records it as
// a pending payment. Settlement is not awaited.
func (s *Service) InitiatePayment(ctx context.Context, userID uuid.UUID, input PaymentInput) (*PaymentResult, error) {
	cardID, fundingSourceID, err := validatePayment(input)
	if err != nil {
		return nil, err
	}

	source, err := s.repo.FindFundingSourceByID(ctx, userID, fundingSourceID)
	if err != nil {
		if errors.Is(err, store.ErrFundingSourceNotFound) {
			return nil, notFoundError("funding source not found")
		}
		return nil, persistenceError("load funding source", err)
	}
	if source.Status == domain.FundingSourceRemoved {
		return nil, notFoundError("funding source not found")
	}

	if _, err := s.repo.FindCardByID(ctx, userID, cardID); err != nil {
		if errors.Is(err, store.ErrCardNotFound) {
			return nil, notFoundError("credit card not found")
		}
		return nil, persistenceError("load card", err)
	}

	destination, err := s.paymentDestination(ctx, userID)
	if err != nil {
		return nil, err
	}

	transferID, err := s.network.CreateTransfer(ctx,
		s.network.FundingSourceHref(source.DwollaFundingSourceID),
		destination,
		domain.Amount{Currency: domain.CurrencyUSD, Value: input.Amount.StringFixed(2)},
	)
	if err != nil {
		log.Printf("level=error component=payments msg=\"create transfer failed\" user_id=%s funding_source_id=%s err=%v", userID, source.ID, err)
		return nil, upstreamError("create transfer", err)
	}

	payment := &domain.Payment{
		UserID:           userID,
		CreditCardID:     cardID,
		FundingSourceID:  source.ID,
		Amount:           input.Amount,
		Currency:         domain.CurrencyUSD,
		DwollaTransferID: transferID,
		Status:           domain.PaymentPending,
	}
	if err := s.repo.CreatePayment(ctx, payment); err != nil {
		log.Printf("level=error component=payments msg=\"persist payment failed\" user_id=%s transfer_id=%s err=%v", userID, transferID, err)
		return nil, persistenceError("store payment", err)
	}

	log.Printf("level=info component=payments msg=\"payment initiated\" user_id=%s payment_id=%s transfer_id=%s amount=%s", userID, payment.ID, transferID, input.Amount.StringFixed(2))
	return &PaymentResult{PaymentID: payment.ID, DwollaTransferID: transferID, Status: payment.Status}, nil
}

// ListPayments returns the latest payments of a user.
func (s *Service) ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PaymentSummary, error) {
	if limit <= 0 {
		limit = defaultPaymentsLimit
	}
	if limit > maxPaymentsLimit {
		limit = maxPaymentsLimit
	}
	payments, err := s.repo.ListPayments(ctx, userID, limit)
	if err != nil {
		return nil, persistenceError("list payments", err)
	}
	return payments, nil
}

func (s *Service) paymentDestination(ctx context.Context, userID uuid.UUID) (string, error) {
	if s.opts.PaymentDestinationFundingSourceID != "" {
		return s.network.FundingSourceHref(s.opts.PaymentDestinationFundingSourceID), nil
	}
	identity, err := s.repo.FindCustomerByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			return "", notFoundError("customer not found")
		}
		return "", persistenceError("load customer identity", err)
	}
	return s.network.CustomerHref(identity.DwollaCustomerID), nil
}

func validatePayment(input PaymentInput) (uuid.UUID, uuid.UUID, error) {
	cardRaw := strings.TrimSpace(input.CreditCardID)
	sourceRaw := strings.TrimSpace(input.FundingSourceID)
	if cardRaw == "" || sourceRaw == "" || input.Amount.IsZero() {
		return uuid.Nil, uuid.Nil, validationError("creditCardId, fundingSourceId and amount are required")
	}

	cardID, err := uuid.Parse(cardRaw)
	if err != nil {
		return uuid.Nil, uuid.Nil, validationError("creditCardId is invalid")
	}
	sourceID, err := uuid.Parse(sourceRaw)
	if err != nil {
		return uuid.Nil, uuid.Nil, validationError("fundingSourceId is invalid")
	}

	if !input.Amount.IsPositive() {
		return uuid.Nil, uuid.Nil, validationError("amount must be positive")
	}
	if !input.Amount.Equal(input.Amount.Truncate(2)) {
		return uuid.Nil, uuid.Nil, validationError("amount must have at most two decimal places")
	}
	if input.Amount.GreaterThan(maxPaymentAmount) {
		return uuid.Nil, uuid.Nil, validationError("amount must not exceed %s", maxPaymentAmount.StringFixed(2))
	}
	return cardID, sourceID, nil
}
