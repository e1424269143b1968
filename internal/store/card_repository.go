package store

import (
	"context"
	"errors"
	"log"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/zedx/payments-service/internal/domain"
)

const cardColumns = `
	id, user_id, account_id, COALESCE(name, ''), COALESCE(mask, ''), current_balance,
	available_balance, credit_limit, total_due, min_due, next_due_date, created_at, updated_at
`

// UpsertCard inserts or refreshes a card keyed on its aggregator account id.
func (r *PostgresRepository) UpsertCard(ctx context.Context, card *domain.CardAccount) error {
	query := `
		INSERT INTO credit_cards (
			user_id, account_id, name, mask, current_balance, available_balance,
			credit_limit, total_due, min_due, next_due_date
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (account_id)
		DO UPDATE SET
			user_id = EXCLUDED.user_id,
			name = EXCLUDED.name,
			mask = EXCLUDED.mask,
			current_balance = EXCLUDED.current_balance,
			available_balance = EXCLUDED.available_balance,
			credit_limit = EXCLUDED.credit_limit,
			total_due = EXCLUDED.total_due,
			min_due = EXCLUDED.min_due,
			next_due_date = EXCLUDED.next_due_date,
			updated_at = NOW()
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		card.UserID,
		card.AccountID,
		card.Name,
		card.Mask,
		card.CurrentBalance,
		card.AvailableBalance,
		card.CreditLimit,
		card.TotalDue,
		card.MinDue,
		card.NextDueDate,
	).Scan(&card.ID, &card.CreatedAt, &card.UpdatedAt)
	if err != nil {
		log.Printf("level=error component=store msg=\"upsert card failed\" account_id=%s err=%v", card.AccountID, err)
		return err
	}
	return nil
}

// ListCards returns the stored cards of a user.
func (r *PostgresRepository) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.CardAccount, error) {
	query := `SELECT ` + cardColumns + ` FROM credit_cards WHERE user_id = $1 ORDER BY created_at`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cards := []domain.CardAccount{}
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, *card)
	}
	return cards, rows.Err()
}

// FindCardByID returns a card owned by the user.
func (r *PostgresRepository) FindCardByID(ctx context.Context, userID, cardID uuid.UUID) (*domain.CardAccount, error) {
	query := `SELECT ` + cardColumns + ` FROM credit_cards WHERE id = $1 AND user_id = $2`
	return scanCard(r.db.QueryRow(ctx, query, cardID, userID))
}

func scanCard(row pgx.Row) (*domain.CardAccount, error) {
	var c domain.CardAccount
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.AccountID,
		&c.Name,
		&c.Mask,
		&c.CurrentBalance,
		&c.AvailableBalance,
		&c.CreditLimit,
		&c.TotalDue,
		&c.MinDue,
		&c.NextDueDate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCardNotFound
		}
		return nil, err
	}
	return &c, nil
}
