package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CardAccount is a credit-card account pulled from the aggregator and enriched
// with statement data. Rows are keyed on AccountID.
type CardAccount struct {
	ID               uuid.UUID       `json:"id"`
	UserID           uuid.UUID       `json:"user_id"`
	AccountID        string          `json:"account_id"`
	Name             string          `json:"name"`
	Mask             string          `json:"mask"`
	CurrentBalance   decimal.Decimal `json:"current_balance"`
	AvailableBalance decimal.Decimal `json:"available_balance"`
	CreditLimit      decimal.Decimal `json:"credit_limit"`
	TotalDue         decimal.Decimal `json:"total_due"`
	MinDue           decimal.Decimal `json:"min_due"`
	NextDueDate      *time.Time      `json:"next_due_date"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}
