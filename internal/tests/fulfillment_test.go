package tests

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"fulfillment/internal/domain"
	"fulfillment/internal/events"
	"fulfillment/internal/gateway"
	"fulfillment/internal/service"
)

var testPickup = domain.PickupLocation{
	Address: domain.Address{
		StreetAddress1: "Sona Towers",
		City:           "Bengaluru",
		Lat:            12.939391726766775,
		Lng:            77.62629462844717,
		Contact:        domain.Contact{Name: "Porter Test User", PhoneNumber: "+911234567890"},
	},
}

type fixture struct {
	delivery  *MockDeliveryGateway
	payment   *MockPaymentGateway
	sessions  *MockSessionStore
	ledger    *MockFulfillmentRepository
	publisher *MockPublisher
	service   *service.FulfillmentService
}

func newFixture() *fixture {
	f := &fixture{
		delivery:  NewMockDeliveryGateway(),
		payment:   NewMockPaymentGateway(),
		sessions:  NewMockSessionStore(),
		ledger:    NewMockFulfillmentRepository(),
		publisher: &MockPublisher{},
	}
	f.service = service.NewFulfillmentService(service.FulfillmentDeps{
		Delivery: f.delivery,
		Payment:  f.payment,
		Sessions: f.sessions,
		Ledger:   f.ledger,
		Events:   f.publisher,
		Pickup:   testPickup,
	})
	return f
}

func mustDrop(t *testing.T, raw string) domain.DropDetails {
	t.Helper()
	d, err := domain.NewDropDetails(json.RawMessage(raw))
	if err != nil {
		t.Fatalf("failed to parse drop details %s: %v", raw, err)
	}
	return d
}

func quoteJSON(t *testing.T, q *domain.Quote) map[string]any {
	t.Helper()
	b, err := json.Marshal(q)
	if err != nil {
		t.Fatalf("failed to marshal quote: %v", err)
	}
	var out map[string]any
	if err := json.Unmarshal(b, &out); err != nil {
		t.Fatalf("failed to unmarshal quote: %v", err)
	}
	return out
}

// ──────────────────────────────────────────────
// 1. QUOTES
// ──────────────────────────────────────────────

func TestGetQuote_TwoWheeler_ConvertsFare(t *testing.T) {
	t.Parallel()

	f := newFixture()

	quote, err := f.service.GetQuote(context.Background(), service.QuoteRequest{
		Drop: mustDrop(t, `{"lat":12.9,"lng":77.6}`),
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	got := quoteJSON(t, quote)
	if got["type"] != "2 Wheeler" {
		t.Errorf("expected type 2 Wheeler, got %v", got["type"])
	}
	if got["eta"] != "10 min" {
		t.Errorf("expected eta 10 min, got %v", got["eta"])
	}
	if got["fare"] != float64(50) {
		t.Errorf("expected fare 50, got %v", got["fare"])
	}

	pickup := f.delivery.LastQuote.PickupDetails
	if pickup.Lat != testPickup.Address.Lat || pickup.Lng != testPickup.Address.Lng {
		t.Errorf("expected quote from restaurant pickup, got %+v", pickup)
	}
}

func TestGetQuote_NoTwoWheeler_ReturnsNotAvailable(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.delivery.QuoteResponse = &domain.QuoteResponse{
		Vehicles: []domain.Vehicle{{Type: "Truck"}, {Type: "2 wheeler"}},
	}

	_, err := f.service.GetQuote(context.Background(), service.QuoteRequest{
		Drop: mustDrop(t, `{"lat":12.9,"lng":77.6}`),
	})
	if !errors.Is(err, service.ErrVehicleUnavailable) {
		t.Errorf("expected ErrVehicleUnavailable, got: %v", err)
	}
}

func TestGetQuote_InvalidDrop_SkipsGateway(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		drop string
	}{
		{name: "missing drop", drop: `null`},
		{name: "missing lng", drop: `{"lat":12.9}`},
		{name: "string coordinates", drop: `{"lat":"12.9","lng":"77.6"}`},
		{name: "null coordinates", drop: `{"lat":null,"lng":null}`},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			_, err := f.service.GetQuote(context.Background(), service.QuoteRequest{
				Drop: mustDrop(t, tc.drop),
			})
			if !errors.Is(err, service.ErrInvalidDropLocation) {
				t.Errorf("expected ErrInvalidDropLocation, got: %v", err)
			}
			if f.delivery.QuoteCallCount != 0 {
				t.Errorf("expected no gateway call, got %d", f.delivery.QuoteCallCount)
			}
		})
	}
}

func TestGetQuote_NestedAddressCoordinates(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.service.GetQuote(context.Background(), service.QuoteRequest{
		Drop: mustDrop(t, `{"address":{"lat":12.93,"lng":77.61,"city":"Bengaluru"}}`),
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}
}

func TestGetQuote_ZeroAndMissingFare(t *testing.T) {
	t.Parallel()

	zero := decimal.Zero
	testCases := []struct {
		name     string
		vehicle  domain.Vehicle
		wantFare any
		wantETA  any
	}{
		{
			name: "zero fare is kept",
			vehicle: domain.Vehicle{
				Type: domain.VehicleTwoWheeler,
				ETA:  &domain.VehicleETA{Value: float64(0)},
				Fare: &domain.VehicleFare{MinorAmount: &zero},
			},
			wantFare: float64(0),
			wantETA:  float64(0),
		},
		{
			name:     "missing fare and eta",
			vehicle:  domain.Vehicle{Type: domain.VehicleTwoWheeler},
			wantFare: domain.NotAvailable,
			wantETA:  domain.NotAvailable,
		},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			f.delivery.QuoteResponse = &domain.QuoteResponse{Vehicles: []domain.Vehicle{tc.vehicle}}

			quote, err := f.service.GetQuote(context.Background(), service.QuoteRequest{
				Drop: mustDrop(t, `{"lat":12.9,"lng":77.6}`),
			})
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			got := quoteJSON(t, quote)
			if got["fare"] != tc.wantFare {
				t.Errorf("expected fare %v, got %v", tc.wantFare, got["fare"])
			}
			if got["eta"] != tc.wantETA {
				t.Errorf("expected eta %v, got %v", tc.wantETA, got["eta"])
			}
		})
	}
}

func TestGetQuote_UpstreamError_PassesThrough(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.delivery.QuoteError = &gateway.UpstreamError{Gateway: "porter", Status: http.StatusUnprocessableEntity, Message: "invalid drop"}

	_, err := f.service.GetQuote(context.Background(), service.QuoteRequest{
		Drop: mustDrop(t, `{"lat":12.9,"lng":77.6}`),
	})

	var upstream *gateway.UpstreamError
	if !errors.As(err, &upstream) {
		t.Fatalf("expected UpstreamError, got: %v", err)
	}
	if upstream.HTTPStatus() != http.StatusUnprocessableEntity {
		t.Errorf("expected status 422, got %d", upstream.HTTPStatus())
	}
}

// ──────────────────────────────────────────────
// 2. DIRECT ORDERS
// ──────────────────────────────────────────────

func TestCreateOrder_UsesRestaurantPickupAndDefaults(t *testing.T) {
	t.Parallel()

	f := newFixture()

	order, err := f.service.CreateOrder(context.Background(), service.CreateOrderRequest{
		Drop:     mustDrop(t, `{"lat":12.9,"lng":77.6,"pickup_details":{"lat":1,"lng":1}}`),
		Customer: domain.Customer{Name: "Asha", Mobile: domain.Mobile{CountryCode: "+91", Number: "9000000000"}},
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if order.OrderID != "CRN-1" {
		t.Errorf("expected order id CRN-1, got %s", order.OrderID)
	}
	if !strings.HasPrefix(order.RequestID, "order_") {
		t.Errorf("expected request id prefixed with order_, got %s", order.RequestID)
	}
	if order.PickupDetails.Address.Lat != testPickup.Address.Lat {
		t.Errorf("expected restaurant pickup, got %+v", order.PickupDetails)
	}
	if order.AdditionalComments != domain.DefaultAdditionalComments {
		t.Errorf("expected default comments, got %q", order.AdditionalComments)
	}
	var instructions domain.DeliveryInstructions
	if err := json.Unmarshal(order.DeliveryInstructions, &instructions); err != nil {
		t.Fatalf("default instructions are not valid JSON: %v", err)
	}
	if len(instructions.InstructionsList) != 1 {
		t.Errorf("expected one default instruction, got %d", len(instructions.InstructionsList))
	}

	sent, ok := f.delivery.LastPayload.(*domain.Order)
	if !ok {
		t.Fatalf("expected *domain.Order payload, got %T", f.delivery.LastPayload)
	}
	if sent.PickupDetails.Address.Lng != testPickup.Address.Lng {
		t.Errorf("expected pickup lng %v, got %v", testPickup.Address.Lng, sent.PickupDetails.Address.Lng)
	}
}

func TestCreateOrder_KeepsCallerInstructions(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name         string
		instructions json.RawMessage
		want         string
	}{
		{
			name:         "caller list",
			instructions: json.RawMessage(`{"instructions_list":[{"type":"text","description":"Ring twice"}]}`),
			want:         `{"instructions_list":[{"type":"text","description":"Ring twice"}]}`,
		},
		{
			name:         "empty list",
			instructions: json.RawMessage(`{"instructions_list":[]}`),
			want:         `{"instructions_list":[]}`,
		},
		{
			name:         "unknown fields",
			instructions: json.RawMessage(`{"instructions_list":[],"fragile":true}`),
			want:         `{"instructions_list":[],"fragile":true}`,
		},
		{
			name:         "null",
			instructions: json.RawMessage(`null`),
			want:         `{"instructions_list":[{"type":"text","description":"Keep the package upright"}]}`,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()

			order, err := f.service.CreateOrder(context.Background(), service.CreateOrderRequest{
				Drop:                 mustDrop(t, `{"lat":12.9,"lng":77.6}`),
				AdditionalComments:   "Leave at door",
				DeliveryInstructions: tc.instructions,
			})
			if err != nil {
				t.Fatalf("expected no error, got: %v", err)
			}

			if order.AdditionalComments != "Leave at door" {
				t.Errorf("expected caller comments, got %q", order.AdditionalComments)
			}
			if string(order.DeliveryInstructions) != tc.want {
				t.Errorf("expected %s, got %s", tc.want, order.DeliveryInstructions)
			}
		})
	}
}

func TestCreateOrder_RequestIDsAreUnique(t *testing.T) {
	t.Parallel()

	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		id := service.NewOrderRequestID()
		if seen[id] {
			t.Fatalf("duplicate request id %s", id)
		}
		seen[id] = true
	}
}

func TestCreateOrder_MissingDrop_Fails(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.service.CreateOrder(context.Background(), service.CreateOrderRequest{})
	if !errors.Is(err, service.ErrMissingDropDetails) {
		t.Errorf("expected ErrMissingDropDetails, got: %v", err)
	}
	if f.delivery.DispatchCallCount != 0 {
		t.Error("expected no dispatch")
	}
}

func TestTrackOrder_EmptyID_Fails(t *testing.T) {
	t.Parallel()

	f := newFixture()

	_, err := f.service.TrackOrder(context.Background(), "")
	if !errors.Is(err, service.ErrMissingOrderID) {
		t.Errorf("expected ErrMissingOrderID, got: %v", err)
	}
}

// ──────────────────────────────────────────────
// 3. CHECKOUT
// ──────────────────────────────────────────────

func TestCheckout_ConvertsToMinorUnits(t *testing.T) {
	t.Parallel()

	f := newFixture()

	session, err := f.service.CreatePaymentSession(context.Background(), service.CheckoutRequest{
		Amount: decimal.NewFromInt(250),
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if session.Amount != 25000 {
		t.Errorf("expected amount 25000, got %d", session.Amount)
	}
	if session.Currency != "INR" {
		t.Errorf("expected currency INR, got %s", session.Currency)
	}
	if f.sessions.Len() != 1 {
		t.Errorf("expected session to be stored, got %d", f.sessions.Len())
	}

	record, err := f.ledger.GetByPaymentOrderID(context.Background(), session.ID)
	if err != nil {
		t.Fatalf("expected ledger record, got: %v", err)
	}
	if record.Status != domain.FulfillmentStatusSessionCreated {
		t.Errorf("expected SESSION_CREATED, got %s", record.Status)
	}

	keys := f.publisher.Keys()
	if len(keys) != 1 || keys[0] != events.PaymentSessionCreated {
		t.Errorf("expected session created event, got %v", keys)
	}
}

func TestCheckout_InvalidAmount_Fails(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name   string
		amount decimal.Decimal
	}{
		{name: "zero", amount: decimal.Zero},
		{name: "negative", amount: decimal.NewFromInt(-5)},
		{name: "rounds to zero paise", amount: decimal.RequireFromString("0.001")},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			f := newFixture()
			_, err := f.service.CreatePaymentSession(context.Background(), service.CheckoutRequest{Amount: tc.amount})
			if !errors.Is(err, service.ErrInvalidAmount) {
				t.Errorf("expected ErrInvalidAmount, got: %v", err)
			}
			if f.payment.CreateCallCount != 0 {
				t.Error("expected no payment gateway call")
			}
		})
	}
}

func TestCheckout_SessionStoreDown_Fails(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.sessions.SaveError = errors.New("redis unavailable")

	_, err := f.service.CreatePaymentSession(context.Background(), service.CheckoutRequest{
		Amount: decimal.NewFromInt(100),
	})
	if err == nil {
		t.Fatal("expected error when session cannot be stored")
	}
}

func TestCheckout_LedgerDown_StillSucceeds(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.ledger.UpsertError = errors.New("db unavailable")
	f.publisher.PublishError = errors.New("broker unavailable")

	_, err := f.service.CreatePaymentSession(context.Background(), service.CheckoutRequest{
		Amount: decimal.NewFromInt(100),
	})
	if err != nil {
		t.Fatalf("expected ledger failure to be logged only, got: %v", err)
	}
}

// ──────────────────────────────────────────────
// 4. VERIFY AND DISPATCH
// ──────────────────────────────────────────────

const orderDetails = `{"request_id":"order_1","drop_details":{"lat":12.9,"lng":77.6}}`

func checkout(t *testing.T, f *fixture) *domain.PaymentSession {
	t.Helper()
	session, err := f.service.CreatePaymentSession(context.Background(), service.CheckoutRequest{
		Amount: decimal.NewFromInt(250),
	})
	if err != nil {
		t.Fatalf("checkout failed: %v", err)
	}
	return session
}

func TestVerify_ReportedFailure_NoSideEffects(t *testing.T) {
	t.Parallel()

	f := newFixture()
	session := checkout(t, f)

	_, err := f.service.VerifyAndDispatch(context.Background(), service.VerifyRequest{
		Success:        false,
		OrderDetails:   json.RawMessage(orderDetails),
		PaymentOrderID: session.ID,
	})
	if !errors.Is(err, service.ErrPaymentFailed) {
		t.Errorf("expected ErrPaymentFailed, got: %v", err)
	}
	if f.delivery.DispatchCallCount != 0 {
		t.Error("expected no dispatch")
	}
	if f.payment.VerifyCallCount != 0 {
		t.Error("expected signature not to be checked")
	}
	if f.sessions.Len() != 1 {
		t.Error("expected session to survive a failed payment")
	}
}

func TestVerify_BadSignature_Rejected(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.payment.SignatureValid = false
	session := checkout(t, f)

	_, err := f.service.VerifyAndDispatch(context.Background(), service.VerifyRequest{
		Success:        true,
		OrderDetails:   json.RawMessage(orderDetails),
		PaymentOrderID: session.ID,
		PaymentID:      "pay_1",
		Signature:      "forged",
	})
	if !errors.Is(err, service.ErrPaymentUnverified) {
		t.Errorf("expected ErrPaymentUnverified, got: %v", err)
	}
	if f.delivery.DispatchCallCount != 0 {
		t.Error("expected no dispatch")
	}
}

func TestVerify_MissingOrderDetails_Rejected(t *testing.T) {
	t.Parallel()

	for _, details := range []string{"", "null", "  "} {
		f := newFixture()
		session := checkout(t, f)

		_, err := f.service.VerifyAndDispatch(context.Background(), service.VerifyRequest{
			Success:        true,
			OrderDetails:   json.RawMessage(details),
			PaymentOrderID: session.ID,
			PaymentID:      "pay_1",
		})
		if !errors.Is(err, service.ErrMissingOrderDetails) {
			t.Errorf("details %q: expected ErrMissingOrderDetails, got: %v", details, err)
		}
	}
}

func TestVerify_Success_DispatchesVerbatim(t *testing.T) {
	t.Parallel()

	f := newFixture()
	session := checkout(t, f)

	result, err := f.service.VerifyAndDispatch(context.Background(), service.VerifyRequest{
		Success:        true,
		OrderDetails:   json.RawMessage(orderDetails),
		PaymentOrderID: session.ID,
		PaymentID:      "pay_1",
		Signature:      "sig",
	})
	if err != nil {
		t.Fatalf("expected no error, got: %v", err)
	}

	if result.OrderID != "CRN-1" || result.TrackingURL == "" {
		t.Errorf("unexpected dispatch result: %+v", result)
	}

	payload, ok := f.delivery.LastPayload.(json.RawMessage)
	if !ok || string(payload) != orderDetails {
		t.Errorf("expected order details forwarded verbatim, got %v", f.delivery.LastPayload)
	}

	record, _ := f.ledger.GetByPaymentOrderID(context.Background(), session.ID)
	if record.Status != domain.FulfillmentStatusDispatched {
		t.Errorf("expected DISPATCHED, got %s", record.Status)
	}
	if record.PaymentID != "pay_1" || record.DeliveryOrderID != "CRN-1" {
		t.Errorf("expected payment and delivery ids recorded, got %+v", record)
	}
}

func TestVerify_Replay_DispatchesOnce(t *testing.T) {
	t.Parallel()

	f := newFixture()
	session := checkout(t, f)

	req := service.VerifyRequest{
		Success:        true,
		OrderDetails:   json.RawMessage(orderDetails),
		PaymentOrderID: session.ID,
		PaymentID:      "pay_1",
		Signature:      "sig",
	}

	if _, err := f.service.VerifyAndDispatch(context.Background(), req); err != nil {
		t.Fatalf("first verify failed: %v", err)
	}

	_, err := f.service.VerifyAndDispatch(context.Background(), req)
	if !errors.Is(err, service.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on replay, got: %v", err)
	}
	if f.delivery.DispatchCallCount != 1 {
		t.Errorf("expected exactly one dispatch, got %d", f.delivery.DispatchCallCount)
	}
}

// ──────────────────────────────────────────────
// 5. COMPENSATION
// ──────────────────────────────────────────────

func TestVerify_DispatchFailure_IsRefunded(t *testing.T) {
	t.Parallel()

	f := newFixture()
	f.delivery.DispatchError = &gateway.UpstreamError{Gateway: "porter", Status: http.StatusServiceUnavailable, Message: "no riders"}
	session := checkout(t, f)

	_, err := f.service.VerifyAndDispatch(context.Background(), service.VerifyRequest{
		Success:        true,
		OrderDetails:   json.RawMessage(orderDetails),
		PaymentOrderID: session.ID,
		PaymentID:      "pay_9",
		Signature:      "sig",
	})
	var upstream *gateway.UpstreamError
	if !errors.As(err, &upstream) || upstream.HTTPStatus() != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 UpstreamError, got: %v", err)
	}

	record, _ := f.ledger.GetByPaymentOrderID(context.Background(), session.ID)
	if record.Status != domain.FulfillmentStatusDispatchFailed {
		t.Fatalf("expected DISPATCH_FAILED, got %s", record.Status)
	}

	reconciler := service.NewReconciler(f.ledger, f.payment, f.publisher, 0, 10, nil)
	refunded, err := reconciler.ReconcileOnce(context.Background())
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if refunded != 1 {
		t.Fatalf("expected 1 refund, got %d", refunded)
	}

	if len(f.payment.Refunds) != 1 || f.payment.Refunds[0] != (RefundCall{PaymentID: "pay_9", AmountMinor: 25000}) {
		t.Errorf("unexpected refunds: %+v", f.payment.Refunds)
	}

	record, _ = f.ledger.GetByPaymentOrderID(context.Background(), session.ID)
	if record.Status != domain.FulfillmentStatusRefunded {
		t.Errorf("expected REFUNDED, got %s", record.Status)
	}

	keys := f.publisher.Keys()
	want := []string{events.PaymentSessionCreated, events.FulfillmentDispatchFailed, events.PaymentRefunded}
	if strings.Join(keys, ",") != strings.Join(want, ",") {
		t.Errorf("expected events %v, got %v", want, keys)
	}

	// A second pass has nothing left to do.
	refunded, _ = reconciler.ReconcileOnce(context.Background())
	if refunded != 0 {
		t.Errorf("expected no further refunds, got %d", refunded)
	}
}
