package dwollaclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zedx/payments-service/internal/domain"
)

type route func(w http.ResponseWriter, r *http.Request, body []byte)

func newTestClient(t *testing.T, routes map[string]route) (*Client, *httptest.Server) {
	t.Helper()
	var server *httptest.Server
	server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/token" {
			user, pass, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "key", user)
			assert.Equal(t, "secret", pass)
			w.Header().Set("Content-Type", "application/json")
			_, _ = fmt.Fprint(w, `{"access_token":"token-1","token_type":"bearer","expires_in":3600}`)
			return
		}

		assert.Equal(t, "Bearer token-1", r.Header.Get("Authorization"))
		assert.Equal(t, halContentType, r.Header.Get("Accept"))

		handler, ok := routes[r.Method+" "+r.URL.Path]
		if !ok {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
			return
		}
		body, _ := io.ReadAll(r.Body)
		handler(w, r, body)
	}))
	t.Cleanup(server.Close)
	return NewClient(server.URL, "key", "secret"), server
}

func TestIDFromHref(t *testing.T) {
	tests := map[string]string{
		"https://api-sandbox.dwolla.com/customers/abc-123": "abc-123",
		"https://api-sandbox.dwolla.com/transfers/xyz/":    "xyz",
		"":         "",
		"plain-id": "plain-id",
	}
	for href, want := range tests {
		assert.Equal(t, want, IDFromHref(href), href)
	}
}

func TestBaseURLForEnv(t *testing.T) {
	assert.Equal(t, "https://api.dwolla.com", BaseURLForEnv("production"))
	assert.Equal(t, "https://api-sandbox.dwolla.com", BaseURLForEnv("sandbox"))
	assert.Equal(t, "https://api-sandbox.dwolla.com", BaseURLForEnv(""))
}

func TestCreateCustomerReadsLocation(t *testing.T) {
	var server *httptest.Server
	client, server := newTestClient(t, map[string]route{
		"POST /customers": func(w http.ResponseWriter, r *http.Request, body []byte) {
			var req domain.CreateCustomerRequest
			require.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "personal", req.Type)
			assert.Equal(t, "1234", req.SSN)
			w.Header().Set("Location", server.URL+"/customers/cust-1")
			w.WriteHeader(http.StatusCreated)
		},
	})

	outcome, err := client.CreateCustomer(context.Background(), domain.CreateCustomerRequest{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Type: "personal", SSN: "1234",
	})
	require.NoError(t, err)
	assert.Equal(t, "cust-1", outcome.ID)
	assert.False(t, outcome.AlreadyExists)
}

func TestCreateCustomerDuplicateEmail(t *testing.T) {
	client, _ := newTestClient(t, map[string]route{
		"POST /customers": func(w http.ResponseWriter, r *http.Request, body []byte) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, `{"code":"ValidationError","message":"Validation error(s) present.","_embedded":{"errors":[{"code":"Duplicate","message":"A customer with the specified email already exists.","path":"/email"}]}}`)
		},
	})

	outcome, err := client.CreateCustomer(context.Background(), domain.CreateCustomerRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyExists)
	assert.Empty(t, outcome.ID)
}

func TestCreateCustomerValidationErrorIsReturned(t *testing.T) {
	client, _ := newTestClient(t, map[string]route{
		"POST /customers": func(w http.ResponseWriter, r *http.Request, body []byte) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprint(w, `{"code":"ValidationError","message":"Validation error(s) present.","_embedded":{"errors":[{"code":"Invalid","message":"Invalid parameter.","path":"/ssn"}]}}`)
		},
	})

	_, err := client.CreateCustomer(context.Background(), domain.CreateCustomerRequest{Email: "ada@example.com"})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "ValidationError", apiErr.Body.Code)
}

func TestSearchCustomersEscapesTerm(t *testing.T) {
	client, _ := newTestClient(t, map[string]route{
		"GET /customers": func(w http.ResponseWriter, r *http.Request, body []byte) {
			assert.Equal(t, "ada+test@example.com", r.URL.Query().Get("search"))
			_, _ = fmt.Fprint(w, `{"_embedded":{"customers":[{"id":"cust-9","email":"ada+test@example.com","status":"verified"}]}}`)
		},
	})

	customers, err := client.SearchCustomers(context.Background(), "ada+test@example.com")
	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "cust-9", customers[0].ID)
}

func TestExchangeAndFundingSourceFlow(t *testing.T) {
	var server *httptest.Server
	client, server := newTestClient(t, map[string]route{
		"GET /exchange-partners": func(w http.ResponseWriter, r *http.Request, body []byte) {
			_, _ = fmt.Fprintf(w, `{"_embedded":{"exchange-partners":[{"id":"p1","name":"Plaid","status":"active","_links":{"self":{"href":"%s/exchange-partners/p1"}}}]}}`, server.URL)
		},
		"POST /customers/cust-1/exchanges": func(w http.ResponseWriter, r *http.Request, body []byte) {
			var req domain.CreateExchangeRequest
			require.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, server.URL+"/exchange-partners/p1", req.Links.ExchangePartner.Href)
			assert.Equal(t, "processor-1", req.Token)
			w.Header().Set("Location", server.URL+"/exchanges/ex-1")
			w.WriteHeader(http.StatusCreated)
		},
		"POST /customers/cust-1/funding-sources": func(w http.ResponseWriter, r *http.Request, body []byte) {
			var req domain.CreateFundingSourceRequest
			require.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, server.URL+"/exchanges/ex-1", req.Links.Exchange.Href)
			assert.Equal(t, "savings", req.BankAccountType)
			w.Header().Set("Location", server.URL+"/funding-sources/fs-1")
			w.WriteHeader(http.StatusCreated)
		},
	})

	ctx := context.Background()
	partners, err := client.ListExchangePartners(ctx)
	require.NoError(t, err)
	require.Len(t, partners, 1)

	exchangeHref, err := client.CreateExchange(ctx, "cust-1", partners[0].Href(), "processor-1")
	require.NoError(t, err)

	outcome, err := client.CreateFundingSource(ctx, "cust-1", exchangeHref, domain.BankAccountSavings, "Checking ••0000")
	require.NoError(t, err)
	assert.Equal(t, "fs-1", outcome.ID)
	assert.False(t, outcome.AlreadyExists)
}

func TestCreateFundingSourceDuplicate(t *testing.T) {
	var server *httptest.Server
	client, server := newTestClient(t, map[string]route{
		"POST /customers/cust-1/funding-sources": func(w http.ResponseWriter, r *http.Request, body []byte) {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = fmt.Fprintf(w, `{"code":"DuplicateResource","message":"Bank already exists","_links":{"about":{"href":"%s/funding-sources/fs-existing"}}}`, server.URL)
		},
	})

	outcome, err := client.CreateFundingSource(context.Background(), "cust-1", "ex", domain.BankAccountChecking, "Primary Bank Account")
	require.NoError(t, err)
	assert.True(t, outcome.AlreadyExists)
	assert.Equal(t, "fs-existing", outcome.ID)
}

func TestCreateTransfer(t *testing.T) {
	var server *httptest.Server
	client, server := newTestClient(t, map[string]route{
		"POST /transfers": func(w http.ResponseWriter, r *http.Request, body []byte) {
			var req domain.CreateTransferRequest
			require.NoError(t, json.Unmarshal(body, &req))
			assert.Equal(t, "USD", req.Amount.Currency)
			assert.Equal(t, "25.50", req.Amount.Value)
			assert.Equal(t, server.URL+"/funding-sources/fs-1", req.Links.Source.Href)
			w.Header().Set("Location", server.URL+"/transfers/tr-1")
			w.WriteHeader(http.StatusCreated)
		},
	})

	id, err := client.CreateTransfer(context.Background(),
		client.FundingSourceHref("fs-1"),
		client.CustomerHref("cust-1"),
		domain.Amount{Currency: "USD", Value: "25.50"},
	)
	require.NoError(t, err)
	assert.Equal(t, "tr-1", id)
}

func TestRemoveFundingSource(t *testing.T) {
	called := false
	client, _ := newTestClient(t, map[string]route{
		"POST /funding-sources/fs-1": func(w http.ResponseWriter, r *http.Request, body []byte) {
			called = true
			assert.JSONEq(t, `{"removed":true}`, string(body))
			_, _ = fmt.Fprint(w, `{"id":"fs-1","removed":true}`)
		},
	})

	require.NoError(t, client.RemoveFundingSource(context.Background(), "fs-1"))
	assert.True(t, called)
}
