package domain

import (
	"bytes"
	"encoding/json"
)

const (
	// DefaultAdditionalComments is sent when the caller leaves comments empty.
	DefaultAdditionalComments = "Handle with care"

	// OrderPlacedMessage is returned to the storefront on a successful dispatch.
	OrderPlacedMessage = "Order placed successfully!"
)

// Instruction is a single delivery instruction for the rider.
type Instruction struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// DeliveryInstructions groups the rider instructions of an order.
type DeliveryInstructions struct {
	InstructionsList []Instruction `json:"instructions_list"`
}

// DefaultDeliveryInstructions returns the instruction used when the caller
// sends none.
func DefaultDeliveryInstructions() DeliveryInstructions {
	return DeliveryInstructions{
		InstructionsList: []Instruction{
			{Type: "text", Description: "Keep the package upright"},
		},
	}
}

// InstructionsOrDefault returns the caller's instructions byte for byte, or
// the default instructions when raw is absent or null. An explicit empty
// list is the caller's choice and is kept.
func InstructionsOrDefault(raw json.RawMessage) json.RawMessage {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null")) {
		return append(json.RawMessage(nil), trimmed...)
	}
	b, _ := json.Marshal(DefaultDeliveryInstructions())
	return b
}

// Order is a delivery order as sent to the delivery gateway, plus the
// identifiers the gateway assigns once it accepts it.
type Order struct {
	RequestID            string          `json:"request_id"`
	PickupDetails        PickupLocation  `json:"pickup_details"`
	DropDetails          DropDetails     `json:"drop_details"`
	Customer             Customer        `json:"customer"`
	AdditionalComments   string          `json:"additional_comments"`
	DeliveryInstructions json.RawMessage `json:"delivery_instructions"`

	OrderID     string `json:"-"`
	TrackingURL string `json:"-"`
}

// DispatchResult is what the delivery gateway returns for a created order.
type DispatchResult struct {
	OrderID     string `json:"order_id"`
	TrackingURL string `json:"tracking_url"`
}
