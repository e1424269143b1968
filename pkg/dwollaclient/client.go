/**
 * @description
 * This package provides a client for the Dwolla API, the payments network that
 * holds customers, bank funding sources and transfers.
 *
 * Key features:
 * - OAuth2 client-credentials authentication with automatic token refresh.
 * - HAL+JSON request/response handling; created resource ids are read from
 *   the Location header.
 * - Duplicate-resource responses are returned as a domain.CreateOutcome with
 *   AlreadyExists set rather than as an error.
 *
 * @dependencies
 * - golang.org/x/oauth2/clientcredentials: token acquisition.
 * - The service's internal domain package for the Dwolla request/response models.
 */
package dwollaclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/zedx/payments-service/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

const (
	EnvSandbox    = "sandbox"
	EnvProduction = "production"

	halContentType = "application/vnd.dwolla.v1.hal+json"
)

// BaseURLForEnv returns the API host of a Dwolla environment. Unknown values
// fall back to sandbox.
func BaseURLForEnv(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), EnvProduction) {
		return "https://api.dwolla.com"
	}
	return "https://api-sandbox.dwolla.com"
}

// APIError is a non-success response from Dwolla.
type APIError struct {
	StatusCode int
	Body       domain.DwollaErrorBody
	Raw        string
}

func (e *APIError) Error() string {
	if e.Body.Code != "" {
		return fmt.Sprintf("dwolla API error: status %d, %s: %s", e.StatusCode, e.Body.Code, e.Body.Message)
	}
	return fmt.Sprintf("dwolla API error: status %d, body: %s", e.StatusCode, e.Raw)
}

// Client is a client for the Dwolla API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Dwolla client authenticated with the application key and secret.
func NewClient(baseURL, key, secret string) *Client {
	baseURL = strings.TrimRight(baseURL, "/")
	cfg := clientcredentials.Config{
		ClientID:     key,
		ClientSecret: secret,
		TokenURL:     baseURL + "/token",
		AuthStyle:    oauth2.AuthStyleInHeader,
	}

	base := &http.Client{Timeout: 30 * time.Second}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	httpClient := cfg.Client(tokenCtx)
	httpClient.Timeout = 30 * time.Second

	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// CustomerHref is the canonical reference of a customer.
func (c *Client) CustomerHref(customerID string) string {
	return fmt.Sprintf("%s/customers/%s", c.baseURL, customerID)
}

// FundingSourceHref is the canonical reference of a funding source.
func (c *Client) FundingSourceHref(fundingSourceID string) string {
	return fmt.Sprintf("%s/funding-sources/%s", c.baseURL, fundingSourceID)
}

// CreateCustomer creates a personal verified customer. A duplicate email is
// reported through CreateOutcome.AlreadyExists.
func (c *Client) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (*domain.CreateOutcome, error) {
	location, err := c.do(ctx, http.MethodPost, c.baseURL+"/customers", req, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && isDuplicateCustomer(apiErr) {
			log.Printf("level=info component=dwollaclient msg=\"customer already exists\" email=%s", req.Email)
			return &domain.CreateOutcome{ID: IDFromHref(apiErr.Body.Links["about"].Href), AlreadyExists: true}, nil
		}
		return nil, err
	}
	return &domain.CreateOutcome{ID: IDFromHref(location)}, nil
}

// SearchCustomers finds customers whose name or email matches term.
func (c *Client) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	var resp domain.CustomerSearchResponse
	u := fmt.Sprintf("%s/customers?search=%s", c.baseURL, url.QueryEscape(term))
	if _, err := c.do(ctx, http.MethodGet, u, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Embedded.Customers, nil
}

// GetCustomer fetches a customer by id.
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	var resp domain.Customer
	if _, err := c.do(ctx, http.MethodGet, c.CustomerHref(customerID), nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListExchangePartners lists the aggregators the network can exchange tokens with.
func (c *Client) ListExchangePartners(ctx context.Context) ([]domain.ExchangePartner, error) {
	var resp domain.ExchangePartnersResponse
	if _, err := c.do(ctx, http.MethodGet, c.baseURL+"/exchange-partners", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Embedded.ExchangePartners, nil
}

// CreateExchange registers a processor token for a customer and returns the
// exchange reference.
func (c *Client) CreateExchange(ctx context.Context, customerID, partnerHref, token string) (string, error) {
	var req domain.CreateExchangeRequest
	req.Links.ExchangePartner = domain.Link{Href: partnerHref}
	req.Token = token

	location, err := c.do(ctx, http.MethodPost, c.CustomerHref(customerID)+"/exchanges", req, nil)
	if err != nil {
		return "", err
	}
	if location == "" {
		return "", errors.New("dwolla API error: exchange created without location")
	}
	return location, nil
}

// CreateFundingSource creates a bank funding source from an exchange. A
// duplicate is reported through CreateOutcome.AlreadyExists with the id of the
// existing source.
func (c *Client) CreateFundingSource(ctx context.Context, customerID, exchangeHref string, accountType domain.BankAccountType, name string) (*domain.CreateOutcome, error) {
	var req domain.CreateFundingSourceRequest
	req.Links.Exchange = domain.Link{Href: exchangeHref}
	req.BankAccountType = string(accountType)
	req.Name = name

	location, err := c.do(ctx, http.MethodPost, c.CustomerHref(customerID)+"/funding-sources", req, nil)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Body.Code == "DuplicateResource" {
			id := IDFromHref(apiErr.Body.Links["about"].Href)
			log.Printf("level=info component=dwollaclient msg=\"funding source already exists\" customer_id=%s funding_source_id=%s", customerID, id)
			return &domain.CreateOutcome{ID: id, AlreadyExists: true}, nil
		}
		return nil, err
	}
	return &domain.CreateOutcome{ID: IDFromHref(location)}, nil
}

// RemoveFundingSource soft-deletes a funding source on the network.
func (c *Client) RemoveFundingSource(ctx context.Context, fundingSourceID string) error {
	_, err := c.do(ctx, http.MethodPost, c.FundingSourceHref(fundingSourceID), domain.RemoveFundingSourceRequest{Removed: true}, nil)
	return err
}

// CreateTransfer moves amount (a decimal string) from source to destination
// and returns the transfer id.
func (c *Client) CreateTransfer(ctx context.Context, sourceHref, destinationHref string, amount domain.Amount) (string, error) {
	var req domain.CreateTransferRequest
	req.Links.Source = domain.Link{Href: sourceHref}
	req.Links.Destination = domain.Link{Href: destinationHref}
	req.Amount = amount

	location, err := c.do(ctx, http.MethodPost, c.baseURL+"/transfers", req, nil)
	if err != nil {
		return "", err
	}
	id := IDFromHref(location)
	if id == "" {
		return "", errors.New("dwolla API error: transfer created without location")
	}
	return id, nil
}

// IDFromHref returns the trailing path segment of a resource reference.
func IDFromHref(href string) string {
	href = strings.TrimRight(strings.TrimSpace(href), "/")
	if href == "" {
		return ""
	}
	return href[strings.LastIndex(href, "/")+1:]
}

func isDuplicateCustomer(apiErr *APIError) bool {
	if apiErr.Body.Code == "DuplicateResource" {
		return true
	}
	if apiErr.Body.Code != "ValidationError" {
		return false
	}
	for _, e := range apiErr.Body.Embedded.Errors {
		if strings.Contains(strings.ToLower(e.Message), "already exists") {
			return true
		}
	}
	return false
}

// do sends a HAL+JSON request and returns the Location header of the response.
func (c *Client) do(ctx context.Context, method, url string, body, target interface{}) (string, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return "", fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewBuffer(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to create http request: %w", err)
	}
	req.Header.Set("Accept", halContentType)
	if body != nil {
		req.Header.Set("Content-Type", halContentType)
	}

	log.Printf("level=debug component=dwollaclient msg=\"request\" method=%s url=%s", method, url)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("http request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", handleErrorResponse(resp.StatusCode, respBody)
	}

	if target != nil && len(respBody) > 0 {
		if err := json.Unmarshal(respBody, target); err != nil {
			return "", fmt.Errorf("failed to unmarshal response body: %w", err)
		}
	}
	return resp.Header.Get("Location"), nil
}

func handleErrorResponse(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode, Raw: string(body)}
	if err := json.Unmarshal(body, &apiErr.Body); err != nil {
		log.Printf("level=warn component=dwollaclient msg=\"non-JSON error response\" status=%d", statusCode)
	}
	return apiErr
}
