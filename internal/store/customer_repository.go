package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/zedx/payments-service/internal/domain"
)

const customerColumns = `
	id, user_id, dwolla_customer_id, legal_first_name, legal_last_name, dob, ssn_last4,
	address_line1, COALESCE(address_line2, ''), city, state, postal_code, email, status,
	created_at, updated_at
`

// FindCustomerByUserID returns the identity of a user.
func (r *PostgresRepository) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*domain.CustomerIdentity, error) {
	query := `SELECT ` + customerColumns + ` FROM customer_identities WHERE user_id = $1`
	return scanCustomer(r.db.QueryRow(ctx, query, userID))
}

// CreateCustomerIdentity persists a reconciled identity. The insert, the user
// verification flag and the customer.verified event share one transaction.
func (r *PostgresRepository) CreateCustomerIdentity(ctx context.Context, identity *domain.CustomerIdentity) (*domain.CustomerIdentity, bool, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, false, err
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO customer_identities (
			user_id, dwolla_customer_id, legal_first_name, legal_last_name, dob, ssn_last4,
			address_line1, address_line2, city, state, postal_code, email, status
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13)
		ON CONFLICT (user_id) DO NOTHING
		RETURNING ` + customerColumns

	stored, err := scanCustomer(tx.QueryRow(ctx, query,
		identity.UserID,
		identity.DwollaCustomerID,
		identity.LegalFirstName,
		identity.LegalLastName,
		identity.DateOfBirth,
		identity.SSNLast4,
		identity.AddressLine1,
		identity.AddressLine2,
		identity.City,
		identity.State,
		identity.PostalCode,
		identity.Email,
		identity.Status,
	))
	if errors.Is(err, ErrCustomerNotFound) {
		// A concurrent request stored the identity first.
		log.Printf("level=info component=store msg=\"customer identity already stored\" user_id=%s", identity.UserID)
		existing, err := r.FindCustomerByUserID(ctx, identity.UserID)
		return existing, false, err
	}
	if err != nil {
		log.Printf("level=error component=store msg=\"insert customer identity failed\" user_id=%s err=%v", identity.UserID, err)
		return nil, false, err
	}

	if _, err := tx.Exec(ctx, `UPDATE users SET is_verified = TRUE, updated_at = NOW() WHERE id = $1`, identity.UserID); err != nil {
		return nil, false, fmt.Errorf("failed to mark user verified: %w", err)
	}

	event := domain.CustomerVerifiedEvent{
		UserID:           stored.UserID,
		DwollaCustomerID: stored.DwollaCustomerID,
		OccurredAt:       time.Now().UTC(),
	}
	if err := enqueueEventTx(ctx, tx, r.eventsExchange, domain.RoutingKeyCustomerVerified, event); err != nil {
		return nil, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, false, err
	}
	return stored, true, nil
}

// UpdateCustomerStatus stores the latest network status of a user's identity.
func (r *PostgresRepository) UpdateCustomerStatus(ctx context.Context, userID uuid.UUID, status domain.CustomerStatus) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE customer_identities
		SET status = $2, updated_at = NOW()
		WHERE user_id = $1
	`, userID, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCustomerNotFound
	}
	return nil
}

func scanCustomer(row pgx.Row) (*domain.CustomerIdentity, error) {
	var c domain.CustomerIdentity
	err := row.Scan(
		&c.ID,
		&c.UserID,
		&c.DwollaCustomerID,
		&c.LegalFirstName,
		&c.LegalLastName,
		&c.DateOfBirth,
		&c.SSNLast4,
		&c.AddressLine1,
		&c.AddressLine2,
		&c.City,
		&c.State,
		&c.PostalCode,
		&c.Email,
		&c.Status,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCustomerNotFound
		}
		return nil, err
	}
	return &c, nil
}
