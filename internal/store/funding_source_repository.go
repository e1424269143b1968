package store

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/zedx/payments-service/internal/domain"
)

const fundingSourceColumns = `
	id, user_id, customer_identity_id, dwolla_funding_source_id, COALESCE(last4, ''), name,
	account_type, status, created_at, updated_at
`

// UpsertAggregatorItem stores the access token of a user's item, replacing any
// previous token of the same type.
func (r *PostgresRepository) UpsertAggregatorItem(ctx context.Context, item *domain.AggregatorItem) error {
	_, err := r.db.Exec(ctx, `
		INSERT INTO aggregator_items (user_id, item_type, access_token, item_id)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (user_id, item_type)
		DO UPDATE SET access_token = EXCLUDED.access_token, item_id = EXCLUDED.item_id, updated_at = NOW()
	`, item.UserID, item.Type, item.AccessToken, item.ItemID)
	if err != nil {
		log.Printf("level=error component=store msg=\"upsert aggregator item failed\" user_id=%s type=%s err=%v", item.UserID, item.Type, err)
	}
	return err
}

// FindActiveFundingSource returns the newest non-removed source of a user.
func (r *PostgresRepository) FindActiveFundingSource(ctx context.Context, userID uuid.UUID) (*domain.FundingSource, error) {
	query := `
		SELECT ` + fundingSourceColumns + `
		FROM funding_sources
		WHERE user_id = $1 AND status <> 'removed'
		ORDER BY created_at DESC
		LIMIT 1
	`
	return scanFundingSource(r.db.QueryRow(ctx, query, userID))
}

// ListActiveFundingSources returns all non-removed sources of a user, newest first.
func (r *PostgresRepository) ListActiveFundingSources(ctx context.Context, userID uuid.UUID) ([]domain.FundingSource, error) {
	query := `
		SELECT ` + fundingSourceColumns + `
		FROM funding_sources
		WHERE user_id = $1 AND status <> 'removed'
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	sources := []domain.FundingSource{}
	for rows.Next() {
		source, err := scanFundingSource(rows)
		if err != nil {
			return nil, err
		}
		sources = append(sources, *source)
	}
	return sources, rows.Err()
}

// FindFundingSourceByID returns a source owned by the user, in any status.
func (r *PostgresRepository) FindFundingSourceByID(ctx context.Context, userID, fundingSourceID uuid.UUID) (*domain.FundingSource, error) {
	query := `SELECT ` + fundingSourceColumns + ` FROM funding_sources WHERE id = $1 AND user_id = $2`
	return scanFundingSource(r.db.QueryRow(ctx, query, fundingSourceID, userID))
}

// CreateFundingSource inserts the source and enqueues funding_source.linked.
// An existing row with the same network id wins and is returned unchanged,
// whichever user owns it; callers compare UserID.
func (r *PostgresRepository) CreateFundingSource(ctx context.Context, source *domain.FundingSource) (*domain.FundingSource, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO funding_sources (
			user_id, customer_identity_id, dwolla_funding_source_id, last4, name, account_type, status
		)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		ON CONFLICT (dwolla_funding_source_id) DO NOTHING
	`,
		source.UserID,
		source.CustomerIdentityID,
		source.DwollaFundingSourceID,
		source.Last4,
		source.Name,
		source.AccountType,
		source.Status,
	)
	if err != nil {
		log.Printf("level=error component=store msg=\"insert funding source failed\" user_id=%s err=%v", source.UserID, err)
		return nil, err
	}

	if tag.RowsAffected() > 0 {
		event := domain.FundingSourceLinkedEvent{
			UserID:                source.UserID,
			DwollaFundingSourceID: source.DwollaFundingSourceID,
			OccurredAt:            time.Now().UTC(),
		}
		if err := enqueueEventTx(ctx, tx, r.eventsExchange, domain.RoutingKeyFundingSourceLinked, event); err != nil {
			return nil, err
		}
	}

	query := `SELECT ` + fundingSourceColumns + ` FROM funding_sources WHERE dwolla_funding_source_id = $1`
	stored, err := scanFundingSource(tx.QueryRow(ctx, query, source.DwollaFundingSourceID))
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return stored, nil
}

// MarkFundingSourceRemoved flags a user's source as removed.
func (r *PostgresRepository) MarkFundingSourceRemoved(ctx context.Context, userID, fundingSourceID uuid.UUID) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE funding_sources
		SET status = 'removed', updated_at = NOW()
		WHERE id = $1 AND user_id = $2
	`, fundingSourceID, userID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrFundingSourceNotFound
	}
	return nil
}

func scanFundingSource(row pgx.Row) (*domain.FundingSource, error) {
	var fs domain.FundingSource
	err := row.Scan(
		&fs.ID,
		&fs.UserID,
		&fs.CustomerIdentityID,
		&fs.DwollaFundingSourceID,
		&fs.Last4,
		&fs.Name,
		&fs.AccountType,
		&fs.Status,
		&fs.CreatedAt,
		&fs.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrFundingSourceNotFound
		}
		return nil, err
	}
	return &fs, nil
}
