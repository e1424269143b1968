package store

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/zedx/payments-service/internal/domain"
)

// CreatePayment inserts a payment and enqueues payment.initiated in one transaction.
func (r *PostgresRepository) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx, `
		INSERT INTO payments (user_id, credit_card_id, funding_source_id, amount, currency, dwolla_transfer_id, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`,
		payment.UserID,
		payment.CreditCardID,
		payment.FundingSourceID,
		payment.Amount,
		payment.Currency,
		payment.DwollaTransferID,
		payment.Status,
	).Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		log.Printf("level=error component=store msg=\"insert payment failed\" transfer_id=%s err=%v", payment.DwollaTransferID, err)
		return err
	}

	event := domain.PaymentInitiatedEvent{
		UserID:           payment.UserID,
		PaymentID:        payment.ID,
		DwollaTransferID: payment.DwollaTransferID,
		Amount:           payment.Amount,
		Currency:         payment.Currency,
		OccurredAt:       time.Now().UTC(),
	}
	if err := enqueueEventTx(ctx, tx, r.eventsExchange, domain.RoutingKeyPaymentInitiated, event); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ListPayments returns the latest payments of a user with card and bank names.
func (r *PostgresRepository) ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PaymentSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.db.Query(ctx, `
		SELECT p.id, p.user_id, p.credit_card_id, p.funding_source_id, p.amount, p.currency,
			p.dwolla_transfer_id, p.status, p.created_at, c.name, f.name
		FROM payments p
		LEFT JOIN credit_cards c ON c.id = p.credit_card_id
		LEFT JOIN funding_sources f ON f.id = p.funding_source_id
		WHERE p.user_id = $1
		ORDER BY p.created_at DESC
		LIMIT $2
	`, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	payments := []domain.PaymentSummary{}
	for rows.Next() {
		var p domain.PaymentSummary
		if err := rows.Scan(
			&p.ID,
			&p.UserID,
			&p.CreditCardID,
			&p.FundingSourceID,
			&p.Amount,
			&p.Currency,
			&p.DwollaTransferID,
			&p.Status,
			&p.CreatedAt,
			&p.CardName,
			&p.BankName,
		); err != nil {
			return nil, err
		}
		payments = append(payments, p)
	}
	return payments, rows.Err()
}
