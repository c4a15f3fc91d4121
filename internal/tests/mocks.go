package tests

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
	"fulfillment/internal/repository"
)

// ──────────────────────────────────────────────
// MOCK DELIVERY GATEWAY
// ──────────────────────────────────────────────

// MockDeliveryGateway is a mock implementation of service.DeliveryGateway.
type MockDeliveryGateway struct {
	mu sync.Mutex

	QuoteResponse *domain.QuoteResponse
	QuoteError    error
	LastQuote     domain.QuoteRequest

	DispatchResult *domain.DispatchResult
	DispatchError  error
	LastPayload    any

	TrackPayload json.RawMessage
	TrackError   error

	// Counters for verification
	QuoteCallCount    int32
	DispatchCallCount int32
	TrackCallCount    int32
}

// NewMockDeliveryGateway creates a delivery gateway that quotes a 2 Wheeler
// at 5000 paise and dispatches every order as "CRN-1".
func NewMockDeliveryGateway() *MockDeliveryGateway {
	fare := decimal.NewFromInt(5000)
	return &MockDeliveryGateway{
		QuoteResponse: &domain.QuoteResponse{
			Vehicles: []domain.Vehicle{
				{
					Type: domain.VehicleTwoWheeler,
					ETA:  &domain.VehicleETA{Value: "10 min"},
					Fare: &domain.VehicleFare{Currency: "INR", MinorAmount: &fare},
				},
			},
		},
		DispatchResult: &domain.DispatchResult{
			OrderID:     "CRN-1",
			TrackingURL: "https://track.example/CRN-1",
		},
		TrackPayload: json.RawMessage(`{"order_id":"CRN-1","status":"live"}`),
	}
}

func (m *MockDeliveryGateway) GetQuote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResponse, error) {
	atomic.AddInt32(&m.QuoteCallCount, 1)
	m.mu.Lock()
	m.LastQuote = req
	m.mu.Unlock()
	if m.QuoteError != nil {
		return nil, m.QuoteError
	}
	return m.QuoteResponse, nil
}

func (m *MockDeliveryGateway) CreateOrder(ctx context.Context, payload any) (*domain.DispatchResult, error) {
	atomic.AddInt32(&m.DispatchCallCount, 1)
	m.mu.Lock()
	m.LastPayload = payload
	m.mu.Unlock()
	if m.DispatchError != nil {
		return nil, m.DispatchError
	}
	result := *m.DispatchResult
	return &result, nil
}

func (m *MockDeliveryGateway) TrackOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	atomic.AddInt32(&m.TrackCallCount, 1)
	if m.TrackError != nil {
		return nil, m.TrackError
	}
	return m.TrackPayload, nil
}

// ──────────────────────────────────────────────
// MOCK PAYMENT GATEWAY
// ──────────────────────────────────────────────

// MockPaymentGateway is a mock implementation of service.PaymentGateway.
type MockPaymentGateway struct {
	mu      sync.Mutex
	nextID  int
	Refunds []RefundCall

	SignatureValid bool
	CreateError    error
	RefundError    error
	// RefundErrors fails refunds of specific payment ids.
	RefundErrors map[string]error

	// Counters for verification
	CreateCallCount int32
	VerifyCallCount int32
	RefundCallCount int32
}

// RefundCall records one Refund invocation.
type RefundCall struct {
	PaymentID   string
	AmountMinor int64
}

// NewMockPaymentGateway creates a payment gateway that accepts every signature.
func NewMockPaymentGateway() *MockPaymentGateway {
	return &MockPaymentGateway{SignatureValid: true}
}

func (m *MockPaymentGateway) CreateOrder(ctx context.Context, amountMinor int64, currency string) (*domain.PaymentSession, error) {
	atomic.AddInt32(&m.CreateCallCount, 1)
	if m.CreateError != nil {
		return nil, m.CreateError
	}
	m.mu.Lock()
	m.nextID++
	id := fmt.Sprintf("order_rzp_%d", m.nextID)
	m.mu.Unlock()

	session := &domain.PaymentSession{
		ID:             id,
		Amount:         amountMinor,
		Currency:       currency,
		Status:         "created",
		PaymentCapture: true,
		CreatedAt:      time.Now(),
	}
	session.Raw, _ = json.Marshal(map[string]any{
		"id":       id,
		"amount":   amountMinor,
		"currency": currency,
		"status":   "created",
	})
	return session, nil
}

func (m *MockPaymentGateway) VerifySignature(orderID, paymentID, signature string) bool {
	atomic.AddInt32(&m.VerifyCallCount, 1)
	return m.SignatureValid
}

func (m *MockPaymentGateway) Refund(ctx context.Context, paymentID string, amountMinor int64) (*domain.Refund, error) {
	atomic.AddInt32(&m.RefundCallCount, 1)
	if m.RefundError != nil {
		return nil, m.RefundError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.RefundErrors[paymentID]; err != nil {
		return nil, err
	}
	m.Refunds = append(m.Refunds, RefundCall{PaymentID: paymentID, AmountMinor: amountMinor})
	return &domain.Refund{
		ID:        "rfnd_" + paymentID,
		PaymentID: paymentID,
		Amount:    amountMinor,
		Status:    "processed",
	}, nil
}

// ──────────────────────────────────────────────
// MOCK SESSION STORE
// ──────────────────────────────────────────────

// MockSessionStore is an in-memory service.SessionStore.
type MockSessionStore struct {
	mu       sync.Mutex
	sessions map[string]*domain.PaymentSession

	SaveError    error
	ConsumeError error
}

// NewMockSessionStore creates a new mock session store.
func NewMockSessionStore() *MockSessionStore {
	return &MockSessionStore{sessions: make(map[string]*domain.PaymentSession)}
}

func (m *MockSessionStore) Save(ctx context.Context, session *domain.PaymentSession) error {
	if m.SaveError != nil {
		return m.SaveError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	copy := *session
	m.sessions[session.ID] = &copy
	return nil
}

func (m *MockSessionStore) Consume(ctx context.Context, sessionID string) (*domain.PaymentSession, error) {
	if m.ConsumeError != nil {
		return nil, m.ConsumeError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	session, ok := m.sessions[sessionID]
	if !ok {
		return nil, nil
	}
	delete(m.sessions, sessionID)
	return session, nil
}

// Len returns how many sessions are still stored.
func (m *MockSessionStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// ──────────────────────────────────────────────
// MOCK FULFILLMENT REPOSITORY
// ──────────────────────────────────────────────

// MockFulfillmentRepository is an in-memory repository.FulfillmentRepository
// keyed by payment order id.
type MockFulfillmentRepository struct {
	mu      sync.RWMutex
	records map[string]*domain.Fulfillment
	seq     int
	ticks   int64

	UpsertError       error
	UpdateStatusError error

	UpsertCallCount int32
}

// NewMockFulfillmentRepository creates a new mock ledger.
func NewMockFulfillmentRepository() *MockFulfillmentRepository {
	return &MockFulfillmentRepository{records: make(map[string]*domain.Fulfillment)}
}

func (m *MockFulfillmentRepository) Upsert(ctx context.Context, f *domain.Fulfillment) error {
	atomic.AddInt32(&m.UpsertCallCount, 1)
	if m.UpsertError != nil {
		return m.UpsertError
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	existing, ok := m.records[f.PaymentOrderID]
	if !ok {
		m.seq++
		if f.ID == "" {
			f.ID = fmt.Sprintf("ful-%d", m.seq)
		}
		f.CreatedAt = now
		f.UpdatedAt = now
		copy := *f
		m.records[f.PaymentOrderID] = &copy
		return nil
	}

	existing.Status = f.Status
	existing.FailureReason = f.FailureReason
	if f.PaymentID != "" {
		existing.PaymentID = f.PaymentID
	}
	if f.DeliveryOrderID != "" {
		existing.DeliveryOrderID = f.DeliveryOrderID
	}
	if f.TrackingURL != "" {
		existing.TrackingURL = f.TrackingURL
	}
	existing.UpdatedAt = now
	f.ID = existing.ID
	f.CreatedAt = existing.CreatedAt
	return nil
}

// now returns strictly increasing timestamps so oldest-first ordering never
// ties. Callers hold m.mu.
func (m *MockFulfillmentRepository) now() time.Time {
	m.ticks++
	return time.Unix(1_700_000_000, 0).Add(time.Duration(m.ticks) * time.Millisecond)
}

func (m *MockFulfillmentRepository) GetByPaymentOrderID(ctx context.Context, paymentOrderID string) (*domain.Fulfillment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.records[paymentOrderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	copy := *f
	return &copy, nil
}

func (m *MockFulfillmentRepository) ListByStatus(ctx context.Context, status domain.FulfillmentStatus, limit int) ([]*domain.Fulfillment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*domain.Fulfillment
	for _, f := range m.records {
		if f.Status == status {
			copy := *f
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.Before(out[j].UpdatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MockFulfillmentRepository) UpdateStatus(ctx context.Context, id string, status domain.FulfillmentStatus, reason string) error {
	if m.UpdateStatusError != nil {
		return m.UpdateStatusError
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, f := range m.records {
		if f.ID == id {
			f.Status = status
			f.FailureReason = reason
			f.UpdatedAt = m.now()
			return nil
		}
	}
	return repository.ErrNotFound
}

// ──────────────────────────────────────────────
// MOCK PUBLISHER
// ──────────────────────────────────────────────

// MockPublisher records every published routing key.
type MockPublisher struct {
	mu   sync.Mutex
	keys []string

	PublishError error
}

func (m *MockPublisher) Publish(ctx context.Context, routingKey string, event any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.keys = append(m.keys, routingKey)
	return m.PublishError
}

// Keys returns the routing keys published so far.
func (m *MockPublisher) Keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.keys...)
}
