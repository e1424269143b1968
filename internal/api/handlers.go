/**
 * @description
 * HTTP handlers for the payments service. Handlers parse the request, call the
 * application service and translate its result or error kind into a JSON
 * response.
 *
 * @notes
 * - Successful bodies carry `"success": true`; failures carry `{"error": "..."}`.
 * - Upstream and persistence failures are logged and answered with a generic
 *   message so provider details never reach the client.
 */

package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/zedx/payments-service/internal/app"
	"github.com/zedx/payments-service/internal/domain"
	authmw "github.com/zedx/payments-service/pkg/middleware"
)

// PaymentsService is the subset of app.Service the handlers use.
type PaymentsService interface {
	Profile(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)
	CreateLinkToken(ctx context.Context, userID uuid.UUID, purpose domain.LinkPurpose) (*domain.LinkTokenCreateResponse, error)
	SyncCards(ctx context.Context, userID uuid.UUID, publicToken string) ([]domain.CardAccount, error)
	ListCards(ctx context.Context, userID uuid.UUID) ([]domain.CardAccount, error)
	LinkBankAccount(ctx context.Context, userID uuid.UUID, publicToken string) (*app.LinkBankResult, error)
	ListFundingSources(ctx context.Context, userID uuid.UUID) ([]domain.FundingSource, error)
	RemoveFundingSource(ctx context.Context, userID, fundingSourceID uuid.UUID) error
	ReconcileCustomer(ctx context.Context, userID uuid.UUID, input domain.KYCInput) (*app.ReconcileResult, error)
	SyncCustomerStatus(ctx context.Context, userID uuid.UUID) (domain.CustomerStatus, error)
	InitiatePayment(ctx context.Context, userID uuid.UUID, input app.PaymentInput) (*app.PaymentResult, error)
	ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PaymentSummary, error)
}

// Authenticator registers and logs in users.
type Authenticator interface {
	Register(ctx context.Context, input app.RegisterInput) (*app.AuthResult, error)
	Login(ctx context.Context, input app.LoginInput) (*app.AuthResult, error)
}

// Handlers holds the services the handlers call.
type Handlers struct {
	service PaymentsService
	auth    Authenticator
}

// NewHandlers creates a new instance of Handlers.
func NewHandlers(service PaymentsService, auth Authenticator) *Handlers {
	return &Handlers{service: service, auth: auth}
}

type publicTokenRequest struct {
	PublicToken string `json:"public_token"`
}

type linkTokenRequest struct {
	Purpose string `json:"purpose"`
}

// RegisterHandler creates a user and returns a session token.
func (h *Handlers) RegisterHandler(w http.ResponseWriter, r *http.Request) {
	var req app.RegisterInput
	if !decodeBody(w, r, "register", &req) {
		return
	}

	result, err := h.auth.Register(r.Context(), req)
	if err != nil {
		writeServiceError(w, "register", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

// LoginHandler verifies credentials and returns a session token.
func (h *Handlers) LoginHandler(w http.ResponseWriter, r *http.Request) {
	var req app.LoginInput
	if !decodeBody(w, r, "login", &req) {
		return
	}

	result, err := h.auth.Login(r.Context(), req)
	if err != nil {
		writeServiceError(w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"token":   result.Token,
		"user":    result.User,
	})
}

// ProfileHandler returns the aggregated profile of the authenticated user.
func (h *Handlers) ProfileHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	profile, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "profile", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":        true,
		"user":           profile.User,
		"cards":          profile.Cards,
		"dwolla":         profile.Customer,
		"fundingSources": profile.FundingSources,
		"payments":       profile.Payments,
	})
}

// CreateLinkTokenHandler starts an aggregator link session.
func (h *Handlers) CreateLinkTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req linkTokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		log.Printf("level=warn component=api endpoint=create_link_token outcome=reject reason=invalid_json err=%v", err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	purpose := domain.LinkPurpose(strings.ToLower(strings.TrimSpace(req.Purpose)))
	if purpose != "" && purpose != domain.LinkPurposeCards && purpose != domain.LinkPurposeBank {
		writeError(w, http.StatusBadRequest, "purpose must be cards or bank")
		return
	}

	token, err := h.service.CreateLinkToken(r.Context(), userID, purpose)
	if err != nil {
		writeServiceError(w, "create_link_token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"link_token": token.LinkToken,
		"expiration": token.Expiration,
	})
}

// ExchangeCardTokenHandler syncs the credit cards of a completed link session.
func (h *Handlers) ExchangeCardTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req publicTokenRequest
	if !decodeBody(w, r, "exchange_card_token", &req) {
		return
	}

	cards, err := h.service.SyncCards(r.Context(), userID, req.PublicToken)
	if err != nil {
		writeServiceError(w, "exchange_card_token", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cards":   cards,
	})
}

// ExchangeBankTokenHandler links the bank account of a completed link session.
func (h *Handlers) ExchangeBankTokenHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req publicTokenRequest
	if !decodeBody(w, r, "exchange_bank_token", &req) {
		return
	}

	result, err := h.service.LinkBankAccount(r.Context(), userID, req.PublicToken)
	if err != nil {
		writeServiceError(w, "exchange_bank_token", err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"success":        true,
		"funding_source": result.FundingSource,
		"reused":         result.Reused,
	})
}

// ListCardsHandler returns the stored cards of the user.
func (h *Handlers) ListCardsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	cards, err := h.service.ListCards(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "list_cards", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"cards":   cards,
	})
}

// CreateCustomerHandler reconciles the payments-network customer of the user.
func (h *Handlers) CreateCustomerHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req domain.KYCInput
	if !decodeBody(w, r, "create_customer", &req) {
		return
	}

	result, err := h.service.ReconcileCustomer(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, "create_customer", err)
		return
	}

	status := http.StatusCreated
	if result.Reused {
		status = http.StatusOK
	}
	writeJSON(w, status, map[string]interface{}{
		"success":     true,
		"customer_id": result.DwollaCustomerID,
		"status":      result.Status,
		"reused":      result.Reused,
	})
}

// CustomerStatusHandler refreshes the stored customer status from the network.
func (h *Handlers) CustomerStatusHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	status, err := h.service.SyncCustomerStatus(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "customer_status", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"status":  status,
	})
}

// ListFundingSourcesHandler returns the active funding sources of the user.
func (h *Handlers) ListFundingSourcesHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	sources, err := h.service.ListFundingSources(r.Context(), userID)
	if err != nil {
		writeServiceError(w, "list_funding_sources", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":         true,
		"funding_sources": sources,
	})
}

// RemoveFundingSourceHandler removes a funding source on the network and marks it removed.
func (h *Handlers) RemoveFundingSourceHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	fundingSourceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid funding source ID")
		return
	}

	if err := h.service.RemoveFundingSource(r.Context(), userID, fundingSourceID); err != nil {
		writeServiceError(w, "remove_funding_source", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// CreateTransferHandler initiates a card payment from a funding source.
func (h *Handlers) CreateTransferHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req app.PaymentInput
	if !decodeBody(w, r, "create_transfer", &req) {
		return
	}

	log.Printf("level=info component=api endpoint=create_transfer outcome=accepted user_id=%s card_id=%s amount=%s", userID, req.CreditCardID, req.Amount.StringFixed(2))

	result, err := h.service.InitiatePayment(r.Context(), userID, req)
	if err != nil {
		writeServiceError(w, "create_transfer", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"success":     true,
		"payment_id":  result.PaymentID,
		"transfer_id": result.DwollaTransferID,
		"status":      result.Status,
	})
}

// ListPaymentsHandler returns the latest payments of the user.
func (h *Handlers) ListPaymentsHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = parsed
	}

	payments, err := h.service.ListPayments(r.Context(), userID, limit)
	if err != nil {
		writeServiceError(w, "list_payments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"payments": payments,
	})
}

func requireUser(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	userID, ok := authmw.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return uuid.Nil, false
	}
	return userID, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, endpoint string, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		log.Printf("level=warn component=api endpoint=%s outcome=reject reason=invalid_json err=%v", endpoint, err)
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// writeServiceError maps an application error kind to a status code.
func writeServiceError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, app.ErrValidation):
		writeError(w, http.StatusBadRequest, clientMessage(err))
	case errors.Is(err, app.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, clientMessage(err))
	case errors.Is(err, app.ErrNotFound):
		writeError(w, http.StatusNotFound, clientMessage(err))
	case errors.Is(err, app.ErrConflict):
		writeError(w, http.StatusConflict, clientMessage(err))
	case errors.Is(err, app.ErrUpstream):
		log.Printf("level=error component=api endpoint=%s outcome=failed reason=upstream err=%v", endpoint, err)
		writeError(w, http.StatusBadGateway, "Payment provider request failed")
	default:
		log.Printf("level=error component=api endpoint=%s outcome=failed err=%v", endpoint, err)
		writeError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// clientMessage strips the kind prefix from a classified error.
func clientMessage(err error) string {
	msg := err.Error()
	if idx := strings.Index(msg, ": "); idx >= 0 {
		return msg[idx+2:]
	}
	return msg
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("level=error component=api msg=\"failed to encode response\" err=%v", err)
	}
}
