// Package stripetest provides an in-memory checkout session gateway for tests.
package stripetest

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/stripe/stripe-go/v84"
)

// Sessions is a fake CheckoutSessions gateway. Sessions are seeded with Put or
// created through CreateSession; errors can be injected per operation.
type Sessions struct {
	mu sync.Mutex

	sessions  map[string]*stripe.CheckoutSession
	lineItems map[string][]*stripe.LineItem
	created   []*stripe.CheckoutSessionCreateParams

	CreateErr    error
	GetErr       error
	LineItemsErr error
	ListErr      error

	GetCalls       int
	LineItemsCalls int
}

// NewSessions returns an empty fake gateway.
func NewSessions() *Sessions {
	return &Sessions{
		sessions:  map[string]*stripe.CheckoutSession{},
		lineItems: map[string][]*stripe.LineItem{},
	}
}

// Put seeds a session and, optionally, its line items.
func (s *Sessions) Put(sess *stripe.CheckoutSession, items ...*stripe.LineItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = sess
	if len(items) > 0 {
		s.lineItems[sess.ID] = items
	}
}

// Created returns every params payload passed to CreateSession.
func (s *Sessions) Created() []*stripe.CheckoutSessionCreateParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*stripe.CheckoutSessionCreateParams(nil), s.created...)
}

func (s *Sessions) CreateSession(_ context.Context, params *stripe.CheckoutSessionCreateParams) (*stripe.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.created = append(s.created, params)
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	id := fmt.Sprintf("cs_test_%d", len(s.created))
	sess := &stripe.CheckoutSession{
		ID:            id,
		URL:           "https://checkout.stripe.test/c/pay/" + id,
		Metadata:      params.Metadata,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusUnpaid,
	}
	if params.CustomerEmail != nil {
		sess.CustomerEmail = *params.CustomerEmail
	}
	s.sessions[id] = sess
	return sess, nil
}

func (s *Sessions) GetSession(_ context.Context, id string) (*stripe.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.GetCalls++
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	sess, ok := s.sessions[id]
	if !ok {
		return nil, &stripe.Error{
			Code:           stripe.ErrorCodeResourceMissing,
			HTTPStatusCode: 404,
			Msg:            "No such checkout.session: " + id,
		}
	}
	return sess, nil
}

func (s *Sessions) ListLineItems(_ context.Context, sessionID string) ([]*stripe.LineItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LineItemsCalls++
	if s.LineItemsErr != nil {
		return nil, s.LineItemsErr
	}
	return s.lineItems[sessionID], nil
}

func (s *Sessions) ListCompletedSince(_ context.Context, since time.Time) ([]*stripe.CheckoutSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ListErr != nil {
		return nil, s.ListErr
	}
	var out []*stripe.CheckoutSession
	for _, sess := range s.sessions {
		if sess.Status == stripe.CheckoutSessionStatusComplete && sess.Created >= since.Unix() {
			out = append(out, sess)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}
