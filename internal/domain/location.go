package domain

import (
	"bytes"
	"encoding/json"
)

// Coordinates is a latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Contact identifies the person reachable at a pickup or drop point.
type Contact struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
}

// Address is an address block in the delivery gateway's wire format.
type Address struct {
	ApartmentAddress string  `json:"apartment_address"`
	StreetAddress1   string  `json:"street_address1"`
	StreetAddress2   string  `json:"street_address2"`
	Landmark         string  `json:"landmark"`
	City             string  `json:"city"`
	State            string  `json:"state"`
	Pincode          string  `json:"pincode"`
	Country          string  `json:"country"`
	Lat              float64 `json:"lat"`
	Lng              float64 `json:"lng"`
	Contact          Contact `json:"contact_details"`
}

// PickupLocation is the restaurant every delivery starts from.
// It is loaded once at startup and never modified afterwards.
type PickupLocation struct {
	Address Address `json:"address"`
}

// Coordinates returns the pickup point.
func (p PickupLocation) Coordinates() Coordinates {
	return Coordinates{Lat: p.Address.Lat, Lng: p.Address.Lng}
}

// DropDetails is the caller-supplied drop point. The JSON object is kept
// verbatim so it can be forwarded to the delivery gateway unchanged; the
// coordinates are read from "lat"/"lng" or "address.lat"/"address.lng".
type DropDetails struct {
	raw    json.RawMessage
	coords *Coordinates
}

// NewDropDetails parses a raw drop object.
func NewDropDetails(raw json.RawMessage) (DropDetails, error) {
	var d DropDetails
	if err := d.UnmarshalJSON(raw); err != nil {
		return DropDetails{}, err
	}
	return d, nil
}

// UnmarshalJSON keeps the raw object and extracts numeric coordinates.
func (d *DropDetails) UnmarshalJSON(b []byte) error {
	trimmed := bytes.TrimSpace(b)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		*d = DropDetails{}
		return nil
	}

	// address may be a free-text string or a nested object.
	var top struct {
		Lat     json.RawMessage `json:"lat"`
		Lng     json.RawMessage `json:"lng"`
		Address json.RawMessage `json:"address"`
	}
	if err := json.Unmarshal(trimmed, &top); err != nil {
		return err
	}

	d.raw = append(json.RawMessage(nil), trimmed...)
	d.coords = nil

	lat, latOK := number(top.Lat)
	lng, lngOK := number(top.Lng)
	if (!latOK || !lngOK) && isObject(top.Address) {
		var nested struct {
			Lat json.RawMessage `json:"lat"`
			Lng json.RawMessage `json:"lng"`
		}
		if err := json.Unmarshal(top.Address, &nested); err == nil {
			lat, latOK = number(nested.Lat)
			lng, lngOK = number(nested.Lng)
		}
	}
	if latOK && lngOK {
		d.coords = &Coordinates{Lat: lat, Lng: lng}
	}
	return nil
}

// MarshalJSON writes the caller's object back out unchanged.
func (d DropDetails) MarshalJSON() ([]byte, error) {
	if len(d.raw) == 0 {
		return []byte("null"), nil
	}
	return d.raw, nil
}

// Present reports whether the caller sent a drop object at all.
func (d DropDetails) Present() bool {
	return len(d.raw) > 0
}

// Coordinates returns the drop point, ok is false when lat or lng is
// missing or not a JSON number.
func (d DropDetails) Coordinates() (Coordinates, bool) {
	if d.coords == nil {
		return Coordinates{}, false
	}
	return *d.coords, true
}

func number(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, false
	}
	return f, true
}

func isObject(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) > 0 && raw[0] == '{'
}

// Mobile is a phone number split the way the delivery gateway expects.
type Mobile struct {
	CountryCode string `json:"country_code"`
	Number      string `json:"number"`
}

// Customer is the person the delivery is for.
type Customer struct {
	Name   string `json:"name"`
	Mobile Mobile `json:"mobile"`
}
