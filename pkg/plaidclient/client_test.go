package plaidclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zedx/payments-service/internal/domain"
)

func newTestServer(t *testing.T, handler func(path string, body map[string]interface{}) (int, string)) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "client-id", body["client_id"])
		assert.Equal(t, "secret", body["secret"])

		status, resp := handler(r.URL.Path, body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = fmt.Fprint(w, resp)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestBaseURLForEnv(t *testing.T) {
	assert.Equal(t, "https://sandbox.plaid.com", BaseURLForEnv("sandbox"))
	assert.Equal(t, "https://development.plaid.com", BaseURLForEnv("Development"))
	assert.Equal(t, "https://production.plaid.com", BaseURLForEnv("production"))
	assert.Equal(t, "https://sandbox.plaid.com", BaseURLForEnv("unknown"))
}

func TestCreateLinkTokenSendsFiltersAndCredentials(t *testing.T) {
	server := newTestServer(t, func(path string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "/link/token/create", path)
		assert.Equal(t, []interface{}{"liabilities"}, body["products"])
		filters := body["account_filters"].(map[string]interface{})
		assert.Contains(t, filters, "credit")
		return http.StatusOK, `{"link_token":"link-sandbox-1","expiration":"2026-01-01T00:00:00Z","request_id":"r1"}`
	})

	client := NewClient(server.URL, "client-id", "secret")
	resp, err := client.CreateLinkToken(context.Background(), domain.LinkTokenCreateRequest{
		ClientName:   "ZEDX App",
		User:         domain.LinkTokenUser{ClientUserID: "u1"},
		Products:     []string{"liabilities"},
		CountryCodes: []string{"US"},
		Language:     "en",
		AccountFilters: map[string]domain.AccountSubtypeFilter{
			"credit": {AccountSubtypes: []string{"credit card"}},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "link-sandbox-1", resp.LinkToken)
}

func TestGetAccountsDecodesBalances(t *testing.T) {
	server := newTestServer(t, func(path string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "/accounts/get", path)
		assert.Equal(t, "access-1", body["access_token"])
		return http.StatusOK, `{"accounts":[{"account_id":"a1","type":"credit","subtype":"credit card","name":"Visa","mask":"4242","balances":{"current":120.5,"available":null,"limit":1000}}]}`
	})

	client := NewClient(server.URL, "client-id", "secret")
	resp, err := client.GetAccounts(context.Background(), "access-1")
	require.NoError(t, err)
	require.Len(t, resp.Accounts, 1)

	balances := resp.Accounts[0].Balances
	assert.True(t, balances.Current.Valid)
	assert.Equal(t, "120.5", balances.Current.Decimal.String())
	assert.False(t, balances.Available.Valid)
	assert.Equal(t, "1000", balances.Limit.Decimal.String())
}

func TestCreateProcessorToken(t *testing.T) {
	server := newTestServer(t, func(path string, body map[string]interface{}) (int, string) {
		assert.Equal(t, "/processor/token/create", path)
		assert.Equal(t, "dwolla", body["processor"])
		assert.Equal(t, "acc-1", body["account_id"])
		return http.StatusOK, `{"processor_token":"processor-sandbox-1","request_id":"r2"}`
	})

	client := NewClient(server.URL, "client-id", "secret")
	resp, err := client.CreateProcessorToken(context.Background(), "access-1", "acc-1", domain.PlaidProcessorDwolla)
	require.NoError(t, err)
	assert.Equal(t, "processor-sandbox-1", resp.ProcessorToken)
}

func TestErrorResponseIsTyped(t *testing.T) {
	server := newTestServer(t, func(path string, body map[string]interface{}) (int, string) {
		return http.StatusBadRequest, `{"error_type":"ITEM_ERROR","error_code":"PRODUCT_NOT_READY","error_message":"not ready","request_id":"r3"}`
	})

	client := NewClient(server.URL, "client-id", "secret")
	_, err := client.GetLiabilities(context.Background(), "access-1")
	require.Error(t, err)
	assert.True(t, IsProductNotReady(err))

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "r3", apiErr.RequestID)
}

func TestNonJSONErrorResponse(t *testing.T) {
	server := newTestServer(t, func(path string, body map[string]interface{}) (int, string) {
		return http.StatusBadGateway, `upstream down`
	})

	client := NewClient(server.URL, "client-id", "secret")
	_, err := client.ExchangePublicToken(context.Background(), "public-1")
	require.Error(t, err)
	assert.False(t, IsProductNotReady(err))
	assert.Contains(t, err.Error(), "upstream down")
}
