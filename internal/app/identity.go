package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zedx/payments-service/internal/domain"
	"github.com/zedx/payments-service/internal/store"
)

// ReconcileResult is returned by ReconcileCustomer.
type ReconcileResult struct {
	DwollaCustomerID string                `json:"dwolla_customer_id"`
	Status           domain.CustomerStatus `json:"status"`
	Reused           bool                  `json:"reused"`
}

// ReconcileCustomer creates the payments-network customer of a user, or returns
// the one already stored. A duplicate-email rejection from the network is
// resolved by adopting the customer found by email.
func (s *Service) ReconcileCustomer(ctx context.Context, userID uuid.UUID, input domain.KYCInput) (*ReconcileResult, error) {
	input = normalizeKYC(input)
	if err := validateKYC(input); err != nil {
		return nil, err
	}

	if _, err := s.repo.FindUserByID(ctx, userID); err != nil {
		if errors.Is(err, store.ErrUserNotFound) {
			return nil, notFoundError("user not found")
		}
		return nil, persistenceError("load user", err)
	}

	existing, err := s.repo.FindCustomerByUserID(ctx, userID)
	if err == nil {
		return &ReconcileResult{DwollaCustomerID: existing.DwollaCustomerID, Status: existing.Status, Reused: true}, nil
	}
	if !errors.Is(err, store.ErrCustomerNotFound) {
		return nil, persistenceError("load customer identity", err)
	}

	encryptedSSN, err := s.vault.Encrypt(input.SSNLast4)
	if err != nil {
		return nil, fmt.Errorf("failed to encrypt tax id: %w", err)
	}

	outcome, err := s.network.CreateCustomer(ctx, domain.CreateCustomerRequest{
		FirstName:   input.LegalFirstName,
		LastName:    input.LegalLastName,
		Email:       input.Email,
		Type:        "personal",
		DateOfBirth: input.DateOfBirth,
		SSN:         input.SSNLast4,
		Address1:    input.AddressLine1,
		Address2:    input.AddressLine2,
		City:        input.City,
		State:       input.State,
		PostalCode:  input.PostalCode,
		Country:     "US",
	})
	if err != nil {
		log.Printf("level=error component=identity msg=\"create customer failed\" user_id=%s err=%v", userID, err)
		return nil, upstreamError("create customer", err)
	}

	customerID := outcome.ID
	if outcome.AlreadyExists {
		customers, err := s.network.SearchCustomers(ctx, input.Email)
		if err != nil {
			return nil, upstreamError("search customers", err)
		}
		if len(customers) == 0 {
			return nil, fmt.Errorf("%w: customer reported as duplicate but no match for email", ErrUpstream)
		}
		customerID = customers[0].ID
		log.Printf("level=info component=identity msg=\"adopted existing customer\" user_id=%s customer_id=%s", userID, customerID)
	}
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer created without id", ErrUpstream)
	}

	stored, created, err := s.repo.CreateCustomerIdentity(ctx, &domain.CustomerIdentity{
		UserID:           userID,
		DwollaCustomerID: customerID,
		LegalFirstName:   input.LegalFirstName,
		LegalLastName:    input.LegalLastName,
		DateOfBirth:      input.DateOfBirth,
		SSNLast4:         encryptedSSN,
		AddressLine1:     input.AddressLine1,
		AddressLine2:     input.AddressLine2,
		City:             input.City,
		State:            input.State,
		PostalCode:       input.PostalCode,
		Email:            input.Email,
		Status:           domain.CustomerStatusVerified,
	})
	if err != nil {
		log.Printf("level=error component=identity msg=\"persist customer identity failed\" user_id=%s customer_id=%s err=%v", userID, customerID, err)
		return nil, persistenceError("store customer identity", err)
	}

	log.Printf("level=info component=identity msg=\"customer reconciled\" user_id=%s customer_id=%s created=%t", userID, stored.DwollaCustomerID, created)
	return &ReconcileResult{DwollaCustomerID: stored.DwollaCustomerID, Status: stored.Status, Reused: !created}, nil
}

// SyncCustomerStatus refreshes the stored status of a user's customer from the network.
func (s *Service) SyncCustomerStatus(ctx context.Context, userID uuid.UUID) (domain.CustomerStatus, error) {
	identity, err := s.repo.FindCustomerByUserID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrCustomerNotFound) {
			return "", notFoundError("customer not found")
		}
		return "", persistenceError("load customer identity", err)
	}

	customer, err := s.network.GetCustomer(ctx, identity.DwollaCustomerID)
	if err != nil {
		return "", upstreamError("get customer", err)
	}

	status := domain.CustomerStatus(strings.ToLower(customer.Status))
	if err := s.repo.UpdateCustomerStatus(ctx, userID, status); err != nil {
		return "", persistenceError("update customer status", err)
	}
	return status, nil
}

func normalizeKYC(in domain.KYCInput) domain.KYCInput {
	in.LegalFirstName = strings.TrimSpace(in.LegalFirstName)
	in.LegalLastName = strings.TrimSpace(in.LegalLastName)
	in.DateOfBirth = strings.TrimSpace(in.DateOfBirth)
	in.SSNLast4 = strings.TrimSpace(in.SSNLast4)
	in.AddressLine1 = strings.TrimSpace(in.AddressLine1)
	in.AddressLine2 = strings.TrimSpace(in.AddressLine2)
	in.City = strings.TrimSpace(in.City)
	in.State = strings.ToUpper(strings.TrimSpace(in.State))
	in.PostalCode = strings.TrimSpace(in.PostalCode)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	return in
}

func validateKYC(in domain.KYCInput) error {
	required := []struct {
		name  string
		value string
	}{
		{"legal_first_name", in.LegalFirstName},
		{"legal_last_name", in.LegalLastName},
		{"dob", in.DateOfBirth},
		{"ssn_last4", in.SSNLast4},
		{"address_line1", in.AddressLine1},
		{"city", in.City},
		{"state", in.State},
		{"postal_code", in.PostalCode},
		{"email", in.Email},
	}
	var missing []string
	for _, field := range required {
		if field.value == "" {
			missing = append(missing, field.name)
		}
	}
	if len(missing) > 0 {
		return validationError("missing required KYC fields: %s", strings.Join(missing, ", "))
	}

	if len(in.SSNLast4) != 4 || strings.Trim(in.SSNLast4, "0123456789") != "" {
		return validationError("ssn_last4 must be exactly 4 digits")
	}
	if _, err := time.Parse("2006-01-02", in.DateOfBirth); err != nil {
		return validationError("dob must be formatted YYYY-MM-DD")
	}
	if _, err := mail.ParseAddress(in.Email); err != nil {
		return validationError("email is invalid")
	}
	return nil
}
