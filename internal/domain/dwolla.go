/**
 * @description
 * This file defines the Go structs that map to the Dwolla HAL+JSON API used by
 * the payments-network client.
 *
 * @notes
 * - Dwolla identifies created resources through the Location header; the
 *   trailing path segment of that reference is the resource id.
 * - Duplicate-resource failures are surfaced as a CreateOutcome instead of an
 *   error so that recovery is an ordinary branch in the caller.
 */
package domain

// Link is a HAL link.
type Link struct {
	Href string `json:"href"`
}

// CreateOutcome is the result of a create call on the payments network.
// AlreadyExists is set when the network reported a duplicate; ID then carries
// the existing resource id when the network disclosed it.
type CreateOutcome struct {
	ID            string
	AlreadyExists bool
}

// --- Customers ---

// CreateCustomerRequest is the payload for creating a personal verified customer.
type CreateCustomerRequest struct {
	FirstName   string `json:"firstName"`
	LastName    string `json:"lastName"`
	Email       string `json:"email"`
	Type        string `json:"type"`
	DateOfBirth string `json:"dateOfBirth"`
	SSN         string `json:"ssn"`
	Address1    string `json:"address1"`
	Address2    string `json:"address2,omitempty"`
	City        string `json:"city"`
	State       string `json:"state"`
	PostalCode  string `json:"postalCode"`
	Country     string `json:"country,omitempty"`
}

// Customer is a payments-network customer resource.
type Customer struct {
	ID        string          `json:"id"`
	FirstName string          `json:"firstName"`
	LastName  string          `json:"lastName"`
	Email     string          `json:"email"`
	Type      string          `json:"type"`
	Status    string          `json:"status"`
	Links     map[string]Link `json:"_links,omitempty"`
}

// CustomerSearchResponse is returned by GET /customers?search=.
type CustomerSearchResponse struct {
	Embedded struct {
		Customers []Customer `json:"customers"`
	} `json:"_embedded"`
}

// --- Exchanges ---

// ExchangePartner is a registered aggregator partner on the payments network.
type ExchangePartner struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Status string          `json:"status"`
	Links  map[string]Link `json:"_links"`
}

// Href returns the self reference of the partner.
func (p ExchangePartner) Href() string {
	return p.Links["self"].Href
}

// ExchangePartnersResponse is returned by GET /exchange-partners.
type ExchangePartnersResponse struct {
	Embedded struct {
		ExchangePartners []ExchangePartner `json:"exchange-partners"`
	} `json:"_embedded"`
}

// CreateExchangeRequest binds a processor token to an exchange partner.
type CreateExchangeRequest struct {
	Links struct {
		ExchangePartner Link `json:"exchange-partner"`
	} `json:"_links"`
	Token string `json:"token"`
}

// --- Funding Sources ---

// CreateFundingSourceRequest creates a bank funding source from an exchange.
type CreateFundingSourceRequest struct {
	Links struct {
		Exchange Link `json:"exchange"`
	} `json:"_links"`
	BankAccountType string `json:"bankAccountType"`
	Name            string `json:"name"`
}

// RemoveFundingSourceRequest soft-deletes a funding source.
type RemoveFundingSourceRequest struct {
	Removed bool `json:"removed"`
}

// --- Transfers ---

// Amount is a currency amount encoded the way the payments network expects it.
type Amount struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

// CreateTransferRequest moves money between two referenced resources.
type CreateTransferRequest struct {
	Links struct {
		Source      Link `json:"source"`
		Destination Link `json:"destination"`
	} `json:"_links"`
	Amount Amount `json:"amount"`
}

// --- Errors ---

// DwollaErrorDetail is a single nested validation error.
type DwollaErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

// DwollaErrorBody is the error document returned by the payments network.
type DwollaErrorBody struct {
	Code     string `json:"code"`
	Message  string `json:"message"`
	Embedded struct {
		Errors []DwollaErrorDetail `json:"errors"`
	} `json:"_embedded"`
	Links map[string]Link `json:"_links"`
}
