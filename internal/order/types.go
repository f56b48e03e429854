// Package order normalizes guest-submitted drafts into canonical orders and
// drives the staff-only status lifecycle.
package order

import (
	"time"

	"github.com/sjawhar/roomline/internal/catalog"
)

type Status string

const (
	StatusAcknowledged Status = "acknowledged"
	StatusInProgress   Status = "in_progress"
	StatusDelivering   Status = "delivering"
	StatusCompleted    Status = "completed"
	StatusNote         Status = "note"
)

type DeliveryTiming string

const (
	TimingASAP     DeliveryTiming = "asap"
	Timing30Min    DeliveryTiming = "30min"
	Timing1Hour    DeliveryTiming = "1hour"
	TimingSpecific DeliveryTiming = "specific"
)

func (t DeliveryTiming) Valid() bool {
	switch t {
	case TimingASAP, Timing30Min, Timing1Hour, TimingSpecific:
		return true
	}
	return false
}

type Item struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Quantity    int     `json:"quantity"`
	UnitPrice   float64 `json:"unit_price"`
}

// Draft is the guest-editable order before normalization. Every field is
// untrusted.
type Draft struct {
	Reference           string         `json:"reference,omitempty"`
	CallID              string         `json:"call_id,omitempty"`
	RoomNumber          string         `json:"room_number"`
	OrderType           string         `json:"order_type,omitempty"`
	Items               []Item         `json:"items"`
	DeliveryTiming      DeliveryTiming `json:"delivery_timing"`
	SpecialInstructions string         `json:"special_instructions,omitempty"`
	TotalAmount         *float64       `json:"total_amount,omitempty"`
	GuestEmail          string         `json:"guest_email,omitempty"`
	Language            string         `json:"language,omitempty"`
}

type Order struct {
	Reference           string           `json:"reference"`
	CallID              string           `json:"call_id"`
	RoomNumber          string           `json:"room_number"`
	OrderType           catalog.Category `json:"order_type"`
	Items               []Item           `json:"items"`
	DeliveryTiming      DeliveryTiming   `json:"delivery_timing"`
	SpecialInstructions string           `json:"special_instructions,omitempty"`
	TotalAmount         float64          `json:"total_amount"`
	Status              Status           `json:"status"`
	GuestEmail          string           `json:"guest_email,omitempty"`
	Language            string           `json:"language,omitempty"`
	CreatedAt           time.Time        `json:"created_at"`
	UpdatedAt           time.Time        `json:"updated_at"`
}

// Draft converts an order back into draft form, e.g. to re-run normalization.
func (o Order) Draft() Draft {
	total := o.TotalAmount
	return Draft{
		Reference:           o.Reference,
		CallID:              o.CallID,
		RoomNumber:          o.RoomNumber,
		OrderType:           string(o.OrderType),
		Items:               append([]Item(nil), o.Items...),
		DeliveryTiming:      o.DeliveryTiming,
		SpecialInstructions: o.SpecialInstructions,
		TotalAmount:         &total,
		GuestEmail:          o.GuestEmail,
		Language:            o.Language,
	}
}

// Filter narrows ListOrders. Zero fields match everything; Date is YYYY-MM-DD
// in UTC.
type Filter struct {
	Status     Status
	RoomNumber string
	Date       string
	CallID     string
	Limit      int
}

type StatusChange struct {
	OrderRef  string    `json:"order_ref"`
	From      Status    `json:"from"`
	To        Status    `json:"to"`
	ChangedBy string    `json:"changed_by"`
	ChangedAt time.Time `json:"changed_at"`
}
