package billing

import (
	"context"
	"errors"
)

var errNotFound = errors.New("record not found")

// fakeStore is an in-memory SubscriptionStore. Get and Save copy records so
// tests observe persisted state, not shared pointers.
type fakeStore struct {
	records map[uint]*Record
	getErr  error
	saveErr error
	saves   int
}

func newFakeStore(records ...*Record) *fakeStore {
	s := &fakeStore{records: make(map[uint]*Record)}
	for _, rec := range records {
		cp := *rec
		s.records[rec.RestaurantID] = &cp
	}
	return s
}

func (s *fakeStore) Get(ctx context.Context, restaurantID uint) (*Record, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	rec, ok := s.records[restaurantID]
	if !ok {
		return nil, errNotFound
	}
	cp := *rec
	return &cp, nil
}

func (s *fakeStore) Save(ctx context.Context, rec *Record) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	cp := *rec
	s.records[rec.RestaurantID] = &cp
	s.saves++
	return nil
}

func (s *fakeStore) record(restaurantID uint) *Record {
	return s.records[restaurantID]
}

// fakeProvider is a canned-response Provider that counts calls.
type fakeProvider struct {
	subs     map[string]*Subscription
	invoices map[string]*Invoice
	subErr   error
	invErr   error

	getSubCalls int
	getInvCalls int
}

func (p *fakeProvider) GetSubscription(ctx context.Context, subscriptionID string) (*Subscription, error) {
	p.getSubCalls++
	if p.subErr != nil {
		return nil, p.subErr
	}
	sub, ok := p.subs[subscriptionID]
	if !ok {
		return nil, errors.New("no such subscription")
	}
	return sub, nil
}

func (p *fakeProvider) GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	p.getInvCalls++
	if p.invErr != nil {
		return nil, p.invErr
	}
	inv, ok := p.invoices[invoiceID]
	if !ok {
		return nil, errors.New("no such invoice")
	}
	return inv, nil
}

func (p *fakeProvider) FindOrCreateCustomer(ctx context.Context, email string, restaurantID uint) (string, error) {
	return "cus_fake", nil
}

func (p *fakeProvider) CreateCheckoutSession(ctx context.Context, params CheckoutSessionParams) (string, error) {
	return "https://checkout.example/session", nil
}

func (p *fakeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, error) {
	return "https://portal.example/session", nil
}

func (p *fakeProvider) CreateSubscription(ctx context.Context, params CreateSubscriptionParams) (*Subscription, error) {
	return nil, errors.New("not implemented")
}
