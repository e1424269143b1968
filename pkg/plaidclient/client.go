/**
 * @description
 * This package provides a client for the Plaid API, the account aggregator used
 * to link credit cards and bank accounts.
 *
 * Key features:
 * - Resolves the API host from the configured Plaid environment.
 * - Injects the client id and secret into every request body.
 * - Decodes Plaid error documents into a typed APIError.
 */
package plaidclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/zedx/payments-service/internal/domain"
)

const (
	EnvSandbox     = "sandbox"
	EnvDevelopment = "development"
	EnvProduction  = "production"

	ErrorCodeProductNotReady = "PRODUCT_NOT_READY"
)

// BaseURLForEnv returns the API host of a Plaid environment. Unknown values
// fall back to sandbox.
func BaseURLForEnv(env string) string {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case EnvProduction:
		return "https://production.plaid.com"
	case EnvDevelopment:
		return "https://development.plaid.com"
	default:
		return "https://sandbox.plaid.com"
	}
}

// APIError is the error document returned by Plaid.
type APIError struct {
	StatusCode     int    `json:"-"`
	ErrorType      string `json:"error_type"`
	ErrorCode      string `json:"error_code"`
	ErrorMessage   string `json:"error_message"`
	DisplayMessage string `json:"display_message"`
	RequestID      string `json:"request_id"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("plaid API error: status %d, %s/%s: %s", e.StatusCode, e.ErrorType, e.ErrorCode, e.ErrorMessage)
}

// IsProductNotReady reports whether err is Plaid's PRODUCT_NOT_READY error.
func IsProductNotReady(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode == ErrorCodeProductNotReady
}

// Client is a client for the Plaid API.
type Client struct {
	baseURL    string
	clientID   string
	secret     string
	httpClient *http.Client
}

// NewClient creates a new Plaid API client.
func NewClient(baseURL, clientID, secret string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		clientID: clientID,
		secret:   secret,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// CreateLinkToken starts a link session.
func (c *Client) CreateLinkToken(ctx context.Context, req domain.LinkTokenCreateRequest) (*domain.LinkTokenCreateResponse, error) {
	var resp domain.LinkTokenCreateResponse
	if err := c.do(ctx, "/link/token/create", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ExchangePublicToken trades a link public token for a durable access token.
func (c *Client) ExchangePublicToken(ctx context.Context, publicToken string) (*domain.TokenExchangeResponse, error) {
	var resp domain.TokenExchangeResponse
	body := map[string]string{"public_token": publicToken}
	if err := c.do(ctx, "/item/public_token/exchange", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetAccounts lists the accounts of an item.
func (c *Client) GetAccounts(ctx context.Context, accessToken string) (*domain.AccountsResponse, error) {
	var resp domain.AccountsResponse
	body := map[string]string{"access_token": accessToken}
	if err := c.do(ctx, "/accounts/get", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetLiabilities fetches statement data for the credit accounts of an item.
func (c *Client) GetLiabilities(ctx context.Context, accessToken string) (*domain.LiabilitiesResponse, error) {
	var resp domain.LiabilitiesResponse
	body := map[string]string{"access_token": accessToken}
	if err := c.do(ctx, "/liabilities/get", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateProcessorToken issues a token that lets a processor access one account.
func (c *Client) CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (*domain.ProcessorTokenResponse, error) {
	var resp domain.ProcessorTokenResponse
	body := map[string]string{
		"access_token": accessToken,
		"account_id":   accountID,
		"processor":    processor,
	}
	if err := c.do(ctx, "/processor/token/create", body, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// do posts body to path with credentials merged in and decodes the response into target.
func (c *Client) do(ctx context.Context, path string, body, target interface{}) error {
	payload, err := c.withCredentials(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	log.Printf("level=debug component=plaidclient msg=\"request\" path=%s", path)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return handleErrorResponse(resp.StatusCode, respBody)
	}

	if target != nil {
		if err := json.Unmarshal(respBody, target); err != nil {
			return fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}
	return nil
}

func (c *Client) withCredentials(body interface{}) ([]byte, error) {
	raw, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("request body must be a JSON object: %w", err)
	}
	clientID, _ := json.Marshal(c.clientID)
	secret, _ := json.Marshal(c.secret)
	fields["client_id"] = clientID
	fields["secret"] = secret
	return json.Marshal(fields)
}

func handleErrorResponse(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.ErrorCode == "" {
		log.Printf("level=warn component=plaidclient msg=\"non-JSON error response\" status=%d body=%q", statusCode, string(body))
		apiErr.ErrorType = "API_ERROR"
		apiErr.ErrorMessage = strings.TrimSpace(string(body))
	}
	return apiErr
}
