package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when checkout omits one.
const DefaultCurrency = "INR"

var minorUnitsPerMajor = decimal.NewFromInt(100)

// ToMinorUnits converts a major-unit amount (rupees) to minor units
// (paise), rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(minorUnitsPerMajor).Round(0).IntPart()
}

// FromMinorUnits converts minor units back to the major-unit amount.
func FromMinorUnits(minor decimal.Decimal) decimal.Decimal {
	return minor.Div(minorUnitsPerMajor)
}

// PaymentSession is an order created at the payment gateway, consumed by
// the storefront's payment widget and then by exactly one verify call.
type PaymentSession struct {
	ID             string          `json:"id"`
	Amount         int64           `json:"amount"`
	Currency       string          `json:"currency"`
	Status         string          `json:"status"`
	PaymentCapture bool            `json:"payment_capture"`
	CreatedAt      time.Time       `json:"created_at"`
	Raw            json.RawMessage `json:"-"`
}

// Refund is a refund issued at the payment gateway.
type Refund struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Amount    int64  `json:"amount"`
	Status    string `json:"status"`
}
