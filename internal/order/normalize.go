package order

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/sjawhar/roomline/internal/catalog"
)

// DefaultRoomNumber replaces room numbers that do not look like a room.
const DefaultRoomNumber = "0000"

const totalTolerance = 0.005

// MaxLineTotal caps quantity times unit price for a single item, keeping order
// totals finite.
const MaxLineTotal = 1_000_000.0

var roomNumberPattern = regexp.MustCompile(`^\d{1,4}[A-Z]?$`)

// Correction records one change normalization made to caller-supplied data.
type Correction struct {
	Field  string `json:"field"`
	Value  string `json:"value"`
	Reason string `json:"reason"`
}

func (c Correction) String() string {
	return fmt.Sprintf("%s %q: %s", c.Field, c.Value, c.Reason)
}

// ValidationError is returned in strict mode when a draft needed correcting.
type ValidationError struct {
	Corrections []Correction
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Corrections))
	for i, c := range e.Corrections {
		parts[i] = c.String()
	}
	return "invalid order draft: " + strings.Join(parts, "; ")
}

type Normalizer struct {
	now    func() time.Time
	newRef func() string
}

func NewNormalizer() *Normalizer {
	return &Normalizer{now: time.Now, newRef: NewReference}
}

// NewReference returns an order reference such as "ORD-1F3A9C0B".
func NewReference() string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "ORD-" + strings.ToUpper(id[:8])
}

// Normalize forces a draft into a valid order. It never fails; the returned
// corrections list what was changed. Normalizing an order's own Draft yields
// the same order.
func (n *Normalizer) Normalize(d Draft) (Order, []Correction) {
	var corrections []Correction
	now := n.now().UTC()

	room := strings.ToUpper(strings.TrimSpace(d.RoomNumber))
	if !roomNumberPattern.MatchString(room) {
		corrections = append(corrections, Correction{Field: "room_number", Value: d.RoomNumber, Reason: "replaced with " + DefaultRoomNumber})
		room = DefaultRoomNumber
	}

	orderType := catalog.RoomService
	if strings.TrimSpace(d.OrderType) != "" {
		c, ok := catalog.Parse(d.OrderType)
		if ok {
			orderType = c
		} else {
			corrections = append(corrections, Correction{Field: "order_type", Value: d.OrderType, Reason: "unknown category, using " + string(catalog.RoomService)})
		}
	}

	timing := DeliveryTiming(strings.ToLower(strings.TrimSpace(string(d.DeliveryTiming))))
	if !timing.Valid() {
		if timing != "" {
			corrections = append(corrections, Correction{Field: "delivery_timing", Value: string(d.DeliveryTiming), Reason: "unknown timing, using asap"})
		}
		timing = TimingASAP
	}

	items := make([]Item, 0, len(d.Items))
	for i, item := range d.Items {
		name := strings.TrimSpace(item.Name)
		switch {
		case name == "":
			corrections = append(corrections, Correction{Field: fmt.Sprintf("items[%d]", i), Value: item.Name, Reason: "dropped: missing name"})
			continue
		case item.Quantity <= 0:
			corrections = append(corrections, Correction{Field: fmt.Sprintf("items[%d]", i), Value: name, Reason: "dropped: quantity must be positive"})
			continue
		case item.UnitPrice < 0 || math.IsNaN(item.UnitPrice) || math.IsInf(item.UnitPrice, 0):
			corrections = append(corrections, Correction{Field: fmt.Sprintf("items[%d]", i), Value: name, Reason: "dropped: invalid unit price"})
			continue
		case float64(item.Quantity)*item.UnitPrice > MaxLineTotal:
			corrections = append(corrections, Correction{Field: fmt.Sprintf("items[%d]", i), Value: name, Reason: fmt.Sprintf("dropped: line total above %.0f", MaxLineTotal)})
			continue
		}
		items = append(items, Item{
			Name:        name,
			Description: strings.TrimSpace(item.Description),
			Quantity:    item.Quantity,
			UnitPrice:   item.UnitPrice,
		})
	}
	if len(items) == 0 {
		corrections = append(corrections, Correction{Field: "items", Reason: "no valid items, added placeholder"})
		items = []Item{PlaceholderItem()}
	}

	computed := Total(items)
	total := computed
	if d.TotalAmount != nil {
		if math.Abs(*d.TotalAmount-computed) <= totalTolerance {
			total = roundCents(*d.TotalAmount)
		} else {
			corrections = append(corrections, Correction{Field: "total_amount", Value: fmt.Sprintf("%.2f", *d.TotalAmount), Reason: fmt.Sprintf("recomputed as %.2f", computed)})
		}
	}

	callID := strings.TrimSpace(d.CallID)
	if callID == "" {
		callID = "CALL-" + now.Format("20060102150405")
	}

	ref := strings.TrimSpace(d.Reference)
	if ref == "" {
		ref = n.newRef()
	}

	return Order{
		Reference:           ref,
		CallID:              callID,
		RoomNumber:          room,
		OrderType:           orderType,
		Items:               items,
		DeliveryTiming:      timing,
		SpecialInstructions: strings.TrimSpace(d.SpecialInstructions),
		TotalAmount:         total,
		Status:              StatusAcknowledged,
		GuestEmail:          strings.TrimSpace(d.GuestEmail),
		Language:            strings.TrimSpace(d.Language),
		CreatedAt:           now,
		UpdatedAt:           now,
	}, corrections
}

// Validate is the strict form of Normalize: any correction is an error.
func (n *Normalizer) Validate(d Draft) (Order, error) {
	o, corrections := n.Normalize(d)
	if len(corrections) > 0 {
		return Order{}, &ValidationError{Corrections: corrections}
	}
	return o, nil
}

func PlaceholderItem() Item {
	return Item{Name: "Service", Quantity: 1, UnitPrice: 0}
}

// Total is the sum of quantity times unit price, rounded to cents.
func Total(items []Item) float64 {
	var sum float64
	for _, item := range items {
		sum += float64(item.Quantity) * item.UnitPrice
	}
	return roundCents(sum)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
