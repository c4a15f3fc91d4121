package domain

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

const (
	// VehicleTwoWheeler is the only vehicle tier the storefront offers.
	VehicleTwoWheeler = "2 Wheeler"

	// NotAvailable is rendered in place of an ETA or fare the gateway omitted.
	NotAvailable = "N/A"
)

// QuoteRequest is the delivery gateway's quote payload.
type QuoteRequest struct {
	PickupDetails Coordinates `json:"pickup_details"`
	DropDetails   DropDetails `json:"drop_details"`
	Customer      Customer    `json:"customer"`
}

// QuoteResponse is the subset of the gateway's quote response we read.
type QuoteResponse struct {
	Vehicles []Vehicle `json:"vehicles"`
}

// Vehicle is one priced vehicle tier in a quote response.
type Vehicle struct {
	Type string       `json:"type"`
	ETA  *VehicleETA  `json:"eta"`
	Fare *VehicleFare `json:"fare"`
}

// VehicleETA is the gateway's arrival estimate. Value is passed through
// untouched, it may be a number or a display string.
type VehicleETA struct {
	Value any    `json:"value"`
	Unit  string `json:"unit,omitempty"`
}

// VehicleFare is the gateway's price in minor currency units.
type VehicleFare struct {
	Currency    string           `json:"currency,omitempty"`
	MinorAmount *decimal.Decimal `json:"minor_amount"`
}

// FindVehicle returns the vehicle whose type matches exactly, or nil.
func (r *QuoteResponse) FindVehicle(vehicleType string) *Vehicle {
	for i := range r.Vehicles {
		if r.Vehicles[i].Type == vehicleType {
			return &r.Vehicles[i]
		}
	}
	return nil
}

// Quote is the delivery fee and ETA shown to the storefront.
// A nil ETA or Fare means the gateway did not report it; a zero fare is
// a real value and is kept.
type Quote struct {
	VehicleType string
	ETA         any
	Fare        *decimal.Decimal
}

// QuoteFromVehicle converts the gateway's minor-unit fare to major units.
func QuoteFromVehicle(v *Vehicle) *Quote {
	q := &Quote{VehicleType: v.Type}
	if v.ETA != nil && v.ETA.Value != nil {
		q.ETA = v.ETA.Value
	}
	if v.Fare != nil && v.Fare.MinorAmount != nil {
		fare := FromMinorUnits(*v.Fare.MinorAmount)
		q.Fare = &fare
	}
	return q
}

// MarshalJSON renders {type, eta, fare} with "N/A" for missing values.
func (q Quote) MarshalJSON() ([]byte, error) {
	out := struct {
		Type string `json:"type"`
		ETA  any    `json:"eta"`
		Fare any    `json:"fare"`
	}{
		Type: q.VehicleType,
		ETA:  NotAvailable,
		Fare: NotAvailable,
	}
	if q.ETA != nil {
		out.ETA = q.ETA
	}
	if q.Fare != nil {
		out.Fare = q.Fare.InexactFloat64()
	}
	return json.Marshal(out)
}
