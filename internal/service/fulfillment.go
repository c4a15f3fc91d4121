package service

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/google/uuid"

	"fulfillment/internal/domain"
	"fulfillment/internal/events"
	"fulfillment/internal/repository"
)

// DeliveryGateway is the delivery vendor API.
type DeliveryGateway interface {
	GetQuote(ctx context.Context, req domain.QuoteRequest) (*domain.QuoteResponse, error)
	CreateOrder(ctx context.Context, payload any) (*domain.DispatchResult, error)
	TrackOrder(ctx context.Context, orderID string) (json.RawMessage, error)
}

// PaymentGateway is the payment vendor API.
type PaymentGateway interface {
	CreateOrder(ctx context.Context, amountMinor int64, currency string) (*domain.PaymentSession, error)
	VerifySignature(orderID, paymentID, signature string) bool
	Refund(ctx context.Context, paymentID string, amountMinor int64) (*domain.Refund, error)
}

// SessionStore keeps payment sessions between checkout and verify.
type SessionStore interface {
	Save(ctx context.Context, session *domain.PaymentSession) error
	Consume(ctx context.Context, sessionID string) (*domain.PaymentSession, error)
}

// FulfillmentDeps contains everything the sequencer talks to.
type FulfillmentDeps struct {
	Delivery  DeliveryGateway
	Payment   PaymentGateway
	Sessions  SessionStore
	Ledger    repository.FulfillmentRepository
	Events    events.Publisher
	Pickup    domain.PickupLocation
	Logger    *slog.Logger
	RequestID func() string
}

// FulfillmentService sequences quote, checkout and dispatch against the
// two vendor gateways. It holds no per-request state: each operation is
// one independent round trip.
type FulfillmentService struct {
	delivery  DeliveryGateway
	payment   PaymentGateway
	sessions  SessionStore
	ledger    repository.FulfillmentRepository
	events    events.Publisher
	pickup    domain.PickupLocation
	log       *slog.Logger
	requestID func() string
}

// NewFulfillmentService creates a new FulfillmentService.
func NewFulfillmentService(deps FulfillmentDeps) *FulfillmentService {
	s := &FulfillmentService{
		delivery:  deps.Delivery,
		payment:   deps.Payment,
		sessions:  deps.Sessions,
		ledger:    deps.Ledger,
		events:    deps.Events,
		pickup:    deps.Pickup,
		log:       deps.Logger,
		requestID: deps.RequestID,
	}
	if s.events == nil {
		s.events = events.NopPublisher{}
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.requestID == nil {
		s.requestID = NewOrderRequestID
	}
	return s
}

// NewOrderRequestID returns "order_" followed by a UUIDv7, which sorts by
// creation time and does not collide within a millisecond.
func NewOrderRequestID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "order_" + id.String()
}

// QuoteRequest contains the parameters for a delivery quote.
type QuoteRequest struct {
	Drop     domain.DropDetails
	Customer domain.Customer
}

// GetQuote prices a delivery from the restaurant to the drop point and
// returns the 2 Wheeler tier.
func (s *FulfillmentService) GetQuote(ctx context.Context, req QuoteRequest) (*domain.Quote, error) {
	if _, ok := req.Drop.Coordinates(); !ok {
		return nil, ErrInvalidDropLocation
	}

	resp, err := s.delivery.GetQuote(ctx, domain.QuoteRequest{
		PickupDetails: s.pickup.Coordinates(),
		DropDetails:   req.Drop,
		Customer:      req.Customer,
	})
	if err != nil {
		return nil, err
	}

	vehicle := resp.FindVehicle(domain.VehicleTwoWheeler)
	if vehicle == nil {
		return nil, ErrVehicleUnavailable
	}

	return domain.QuoteFromVehicle(vehicle), nil
}

// CreateOrderRequest contains the parameters for dispatching an order.
// Any pickup the caller had in mind is ignored.
type CreateOrderRequest struct {
	Drop                 domain.DropDetails
	Customer             domain.Customer
	AdditionalComments   string
	DeliveryInstructions json.RawMessage
}

// CreateOrder dispatches an order from the restaurant to the drop point.
func (s *FulfillmentService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*domain.Order, error) {
	if !req.Drop.Present() {
		return nil, ErrMissingDropDetails
	}

	order := &domain.Order{
		RequestID:            s.requestID(),
		PickupDetails:        s.pickup,
		DropDetails:          req.Drop,
		Customer:             req.Customer,
		AdditionalComments:   req.AdditionalComments,
		DeliveryInstructions: domain.InstructionsOrDefault(req.DeliveryInstructions),
	}
	if order.AdditionalComments == "" {
		order.AdditionalComments = domain.DefaultAdditionalComments
	}

	result, err := s.delivery.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	order.OrderID = result.OrderID
	order.TrackingURL = result.TrackingURL

	s.log.Info("delivery order created",
		"request_id", order.RequestID,
		"order_id", order.OrderID,
	)
	return order, nil
}

// TrackOrder returns the delivery gateway's live status document as-is.
func (s *FulfillmentService) TrackOrder(ctx context.Context, orderID string) (json.RawMessage, error) {
	if orderID == "" {
		return nil, ErrMissingOrderID
	}
	return s.delivery.TrackOrder(ctx, orderID)
}

// recordOutcome writes a ledger transition and publishes it. Neither
// failure is returned: the request outcome is already decided.
func (s *FulfillmentService) recordOutcome(ctx context.Context, eventType string, f *domain.Fulfillment) {
	ctx = context.WithoutCancel(ctx)

	if s.ledger != nil {
		if err := s.ledger.Upsert(ctx, f); err != nil {
			s.log.Error("failed to record fulfillment",
				"payment_order_id", f.PaymentOrderID,
				"status", f.Status,
				"error", err,
			)
		}
	}

	if err := s.events.Publish(ctx, eventType, domain.NewFulfillmentEvent(eventType, f)); err != nil {
		s.log.Error("failed to publish fulfillment event",
			"event", eventType,
			"payment_order_id", f.PaymentOrderID,
			"error", err,
		)
	}
}
