package app

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zedx/payments-service/internal/domain"
	"github.com/zedx/payments-service/internal/store"
	"github.com/zedx/payments-service/pkg/vault"
)

// memRepo is an in-memory ledger with the same conflict rules as the
// PostgreSQL schema.
type memRepo struct {
	mu      sync.Mutex
	clock   time.Time
	users   map[uuid.UUID]*domain.User
	idents  map[uuid.UUID]*domain.CustomerIdentity
	items   map[string]*domain.AggregatorItem
	sources []*domain.FundingSource
	cards   []*domain.CardAccount
	pays    []*domain.Payment
	events  []string

	failCreateIdentity error
	// beforeCreateIdentity runs ahead of the insert, standing in for a
	// concurrent request that stores the identity first.
	beforeCreateIdentity func()
	failCreatePayment    error
}

func newMemRepo() *memRepo {
	return &memRepo{
		clock:  time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		users:  map[uuid.UUID]*domain.User{},
		idents: map[uuid.UUID]*domain.CustomerIdentity{},
		items:  map[string]*domain.AggregatorItem{},
	}
}

func (r *memRepo) tick() time.Time {
	r.clock = r.clock.Add(time.Second)
	return r.clock
}

func (r *memRepo) addUser(t *testing.T) uuid.UUID {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	u := &domain.User{ID: uuid.New(), FirstName: "Ada", Email: "ada@example.com", CreatedAt: r.tick()}
	r.users[u.ID] = u
	return u.ID
}

func (r *memRepo) addIdentity(userID uuid.UUID, customerID string) *domain.CustomerIdentity {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity := &domain.CustomerIdentity{
		ID:               uuid.New(),
		UserID:           userID,
		DwollaCustomerID: customerID,
		Status:           domain.CustomerStatusVerified,
		CreatedAt:        r.tick(),
	}
	r.idents[userID] = identity
	return identity
}

func (r *memRepo) addCard(userID uuid.UUID, accountID string) *domain.CardAccount {
	r.mu.Lock()
	defer r.mu.Unlock()
	card := &domain.CardAccount{ID: uuid.New(), UserID: userID, AccountID: accountID, Name: "Visa", CreatedAt: r.tick()}
	r.cards = append(r.cards, card)
	return card
}

func (r *memRepo) addFundingSource(userID uuid.UUID, networkID string, status domain.FundingSourceStatus) *domain.FundingSource {
	r.mu.Lock()
	defer r.mu.Unlock()
	source := &domain.FundingSource{
		ID:                    uuid.New(),
		UserID:                userID,
		DwollaFundingSourceID: networkID,
		Name:                  "Checking ••0000",
		AccountType:           domain.BankAccountChecking,
		Status:                status,
		CreatedAt:             r.tick(),
	}
	r.sources = append(r.sources, source)
	return source
}

func (r *memRepo) activeSourceCount(userID uuid.UUID) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.sources {
		if s.UserID == userID && s.Status != domain.FundingSourceRemoved {
			n++
		}
	}
	return n
}

func (r *memRepo) CreateUser(ctx context.Context, user *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, user.Email) {
			return store.ErrDuplicateEmail
		}
	}
	user.ID = uuid.New()
	user.CreatedAt = r.tick()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	r.users[user.ID] = &stored
	return nil
}

func (r *memRepo) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			copied := *u
			return &copied, nil
		}
	}
	return nil, store.ErrUserNotFound
}

func (r *memRepo) FindUserByID(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[userID]
	if !ok {
		return nil, store.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (r *memRepo) FindCustomerByUserID(ctx context.Context, userID uuid.UUID) (*domain.CustomerIdentity, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.idents[userID]
	if !ok {
		return nil, store.ErrCustomerNotFound
	}
	copied := *identity
	return &copied, nil
}

func (r *memRepo) CreateCustomerIdentity(ctx context.Context, identity *domain.CustomerIdentity) (*domain.CustomerIdentity, bool, error) {
	if r.beforeCreateIdentity != nil {
		r.beforeCreateIdentity()
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreateIdentity != nil {
		return nil, false, r.failCreateIdentity
	}
	if existing, ok := r.idents[identity.UserID]; ok {
		copied := *existing
		return &copied, false, nil
	}
	stored := *identity
	stored.ID = uuid.New()
	stored.CreatedAt = r.tick()
	r.idents[identity.UserID] = &stored
	if u, ok := r.users[identity.UserID]; ok {
		u.IsVerified = true
	}
	r.events = append(r.events, domain.RoutingKeyCustomerVerified)
	copied := stored
	return &copied, true, nil
}

func (r *memRepo) UpdateCustomerStatus(ctx context.Context, userID uuid.UUID, status domain.CustomerStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	identity, ok := r.idents[userID]
	if !ok {
		return store.ErrCustomerNotFound
	}
	identity.Status = status
	return nil
}

func (r *memRepo) UpsertAggregatorItem(ctx context.Context, item *domain.AggregatorItem) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	copied := *item
	r.items[item.UserID.String()+"/"+string(item.Type)] = &copied
	return nil
}

func (r *memRepo) FindActiveFundingSource(ctx context.Context, userID uuid.UUID) (*domain.FundingSource, error) {
	sources, _ := r.ListActiveFundingSources(ctx, userID)
	if len(sources) == 0 {
		return nil, store.ErrFundingSourceNotFound
	}
	return &sources[0], nil
}

func (r *memRepo) ListActiveFundingSources(ctx context.Context, userID uuid.UUID) ([]domain.FundingSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.FundingSource{}
	for _, s := range r.sources {
		if s.UserID == userID && s.Status != domain.FundingSourceRemoved {
			out = append(out, *s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *memRepo) FindFundingSourceByID(ctx context.Context, userID, fundingSourceID uuid.UUID) (*domain.FundingSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.ID == fundingSourceID && s.UserID == userID {
			copied := *s
			return &copied, nil
		}
	}
	return nil, store.ErrFundingSourceNotFound
}

func (r *memRepo) CreateFundingSource(ctx context.Context, source *domain.FundingSource) (*domain.FundingSource, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.DwollaFundingSourceID == source.DwollaFundingSourceID {
			copied := *s
			return &copied, nil
		}
	}
	stored := *source
	stored.ID = uuid.New()
	stored.CreatedAt = r.tick()
	r.sources = append(r.sources, &stored)
	r.events = append(r.events, domain.RoutingKeyFundingSourceLinked)
	copied := stored
	return &copied, nil
}

func (r *memRepo) MarkFundingSourceRemoved(ctx context.Context, userID, fundingSourceID uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sources {
		if s.ID == fundingSourceID && s.UserID == userID {
			s.Status = domain.FundingSourceRemoved
			return nil
		}
	}
	return store.ErrFundingSourceNotFound
}

func (r *memRepo) UpsertCard(ctx context.Context, card *domain.CardAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.tick()
	for _, c := range r.cards {
		if c.AccountID == card.AccountID {
			id, created := c.ID, c.CreatedAt
			*c = *card
			c.ID, c.CreatedAt, c.UpdatedAt = id, created, now
			card.ID, card.CreatedAt, card.UpdatedAt = id, created, now
			return nil
		}
	}
	stored := *card
	stored.ID = uuid.New()
	stored.CreatedAt, stored.UpdatedAt = now, now
	r.cards = append(r.cards, &stored)
	card.ID, card.CreatedAt, card.UpdatedAt = stored.ID, now, now
	return nil
}

func (r *memRepo) ListCards(ctx context.Context, userID uuid.UUID) ([]domain.CardAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.CardAccount{}
	for _, c := range r.cards {
		if c.UserID == userID {
			out = append(out, *c)
		}
	}
	return out, nil
}

func (r *memRepo) FindCardByID(ctx context.Context, userID, cardID uuid.UUID) (*domain.CardAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.cards {
		if c.ID == cardID && c.UserID == userID {
			copied := *c
			return &copied, nil
		}
	}
	return nil, store.ErrCardNotFound
}

func (r *memRepo) CreatePayment(ctx context.Context, payment *domain.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failCreatePayment != nil {
		return r.failCreatePayment
	}
	payment.ID = uuid.New()
	payment.CreatedAt = r.tick()
	stored := *payment
	r.pays = append(r.pays, &stored)
	r.events = append(r.events, domain.RoutingKeyPaymentInitiated)
	return nil
}

func (r *memRepo) ListPayments(ctx context.Context, userID uuid.UUID, limit int) ([]domain.PaymentSummary, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []domain.PaymentSummary{}
	for i := len(r.pays) - 1; i >= 0 && len(out) < limit; i-- {
		if r.pays[i].UserID == userID {
			out = append(out, domain.PaymentSummary{Payment: *r.pays[i]})
		}
	}
	return out, nil
}

func (r *memRepo) ClaimOutboxMessages(ctx context.Context, limit int, staleAfterSeconds int) ([]store.OutboxMessage, error) {
	return nil, nil
}

func (r *memRepo) MarkOutboxPublished(ctx context.Context, id int64) error { return nil }

func (r *memRepo) MarkOutboxFailed(ctx context.Context, id int64, retryAfterSeconds int, reason string) error {
	return nil
}

// stubAggregator records calls and returns canned responses.
type stubAggregator struct {
	accounts       []domain.Account
	liabilities    []domain.CreditLiability
	liabilitiesErr error
	exchangeErr    error

	calls       int
	linkRequest domain.LinkTokenCreateRequest
}

func (a *stubAggregator) CreateLinkToken(ctx context.Context, req domain.LinkTokenCreateRequest) (*domain.LinkTokenCreateResponse, error) {
	a.calls++
	a.linkRequest = req
	return &domain.LinkTokenCreateResponse{LinkToken: "link-sandbox-1"}, nil
}

func (a *stubAggregator) ExchangePublicToken(ctx context.Context, publicToken string) (*domain.TokenExchangeResponse, error) {
	a.calls++
	if a.exchangeErr != nil {
		return nil, a.exchangeErr
	}
	return &domain.TokenExchangeResponse{AccessToken: "access-" + publicToken, ItemID: "item-1"}, nil
}

func (a *stubAggregator) GetAccounts(ctx context.Context, accessToken string) (*domain.AccountsResponse, error) {
	a.calls++
	return &domain.AccountsResponse{Accounts: a.accounts}, nil
}

func (a *stubAggregator) GetLiabilities(ctx context.Context, accessToken string) (*domain.LiabilitiesResponse, error) {
	a.calls++
	if a.liabilitiesErr != nil {
		return nil, a.liabilitiesErr
	}
	resp := &domain.LiabilitiesResponse{Accounts: a.accounts}
	resp.Liabilities.Credit = a.liabilities
	return resp, nil
}

func (a *stubAggregator) CreateProcessorToken(ctx context.Context, accessToken, accountID, processor string) (*domain.ProcessorTokenResponse, error) {
	a.calls++
	return &domain.ProcessorTokenResponse{ProcessorToken: "processor-" + accountID}, nil
}

// stubNetwork records calls and returns canned responses.
type stubNetwork struct {
	customerOutcome *domain.CreateOutcome
	customerErr     error
	searchResult    []domain.Customer
	customerStatus  string
	partners        []domain.ExchangePartner
	fsOutcome       *domain.CreateOutcome
	transferID      string
	transferErr     error

	calls          int
	createCustomer []domain.CreateCustomerRequest
	fsType         domain.BankAccountType
	fsName         string
	removed        []string
	transferSource string
	transferDest   string
	transferAmount domain.Amount
}

func newStubNetwork() *stubNetwork {
	return &stubNetwork{
		customerOutcome: &domain.CreateOutcome{ID: "cust-1"},
		customerStatus:  "verified",
		partners: []domain.ExchangePartner{
			{Name: "MX", Links: map[string]domain.Link{"self": {Href: "https://network/exchange-partners/mx"}}},
			{Name: "plaid", Links: map[string]domain.Link{"self": {Href: "https://network/exchange-partners/plaid"}}},
		},
		fsOutcome:  &domain.CreateOutcome{ID: "fs-1"},
		transferID: "tr-1",
	}
}

func (n *stubNetwork) CreateCustomer(ctx context.Context, req domain.CreateCustomerRequest) (*domain.CreateOutcome, error) {
	n.calls++
	n.createCustomer = append(n.createCustomer, req)
	if n.customerErr != nil {
		return nil, n.customerErr
	}
	return n.customerOutcome, nil
}

func (n *stubNetwork) SearchCustomers(ctx context.Context, term string) ([]domain.Customer, error) {
	n.calls++
	return n.searchResult, nil
}

func (n *stubNetwork) GetCustomer(ctx context.Context, customerID string) (*domain.Customer, error) {
	n.calls++
	return &domain.Customer{ID: customerID, Status: n.customerStatus}, nil
}

func (n *stubNetwork) ListExchangePartners(ctx context.Context) ([]domain.ExchangePartner, error) {
	n.calls++
	return n.partners, nil
}

func (n *stubNetwork) CreateExchange(ctx context.Context, customerID, partnerHref, token string) (string, error) {
	n.calls++
	return "https://network/exchanges/ex-1", nil
}

func (n *stubNetwork) CreateFundingSource(ctx context.Context, customerID, exchangeHref string, accountType domain.BankAccountType, name string) (*domain.CreateOutcome, error) {
	n.calls++
	n.fsType = accountType
	n.fsName = name
	return n.fsOutcome, nil
}

func (n *stubNetwork) RemoveFundingSource(ctx context.Context, fundingSourceID string) error {
	n.calls++
	n.removed = append(n.removed, fundingSourceID)
	return nil
}

func (n *stubNetwork) CreateTransfer(ctx context.Context, sourceHref, destinationHref string, amount domain.Amount) (string, error) {
	n.calls++
	n.transferSource = sourceHref
	n.transferDest = destinationHref
	n.transferAmount = amount
	if n.transferErr != nil {
		return "", n.transferErr
	}
	return n.transferID, nil
}

func (n *stubNetwork) CustomerHref(customerID string) string {
	return "https://network/customers/" + customerID
}

func (n *stubNetwork) FundingSourceHref(fundingSourceID string) string {
	return "https://network/funding-sources/" + fundingSourceID
}

func newTestVault(t *testing.T) *vault.Vault {
	t.Helper()
	v, err := vault.New([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("expected vault, got %v", err)
	}
	return v
}

func newTestService(t *testing.T, repo *memRepo, aggregator *stubAggregator, network *stubNetwork, opts Options) *Service {
	t.Helper()
	return NewService(repo, aggregator, network, newTestVault(t), opts)
}
