package store

import (
	"context"
	"errors"
	"log"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zedx/payments-service/internal/domain"
)

const uniqueViolation = "23505"

// PostgresRepository is the PostgreSQL implementation of Repository.
type PostgresRepository struct {
	db             *pgxpool.Pool
	eventsExchange string
}

var _ Repository = (*PostgresRepository)(nil)

// NewPostgresRepository creates a repository. Events written to the outbox are
// addressed to eventsExchange.
func NewPostgresRepository(db *pgxpool.Pool, eventsExchange string) *PostgresRepository {
	return &PostgresRepository{db: db, eventsExchange: eventsExchange}
}

const userColumns = `id, first_name, COALESCE(last_name, ''), email, password_hash, is_verified, credit_score, created_at, updated_at`

// CreateUser inserts a user and fills in the generated id and timestamps.
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (first_name, last_name, email, password_hash, is_verified, credit_score)
		VALUES ($1, NULLIF($2, ''), $3, $4, $5, $6)
		RETURNING id, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		user.FirstName,
		user.LastName,
		strings.ToLower(strings.TrimSpace(user.Email)),
		user.PasswordHash,
		user.IsVerified,
		user.CreditScore,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateEmail
		}
		log.Printf("level=error component=store msg=\"insert user failed\" err=%v", err)
		return err
	}
	return nil
}

// FindUserByEmail looks a user up by case-insensitive email.
func (r *PostgresRepository) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE LOWER(email) = LOWER($1)`
	return r.scanUser(r.db.QueryRow(ctx, query, strings.TrimSpace(email)))
}

// FindUserByID looks a user up by id.
func (r *PostgresRepository) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanUser(r.db.QueryRow(ctx, query, userID))
}

func (r *PostgresRepository) scanUser(row pgx.Row) (*domain.User, error) {
	var user domain.User
	err := row.Scan(
		&user.ID,
		&user.FirstName,
		&user.LastName,
		&user.Email,
		&user.PasswordHash,
		&user.IsVerified,
		&user.CreditScore,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return &user, nil
}
