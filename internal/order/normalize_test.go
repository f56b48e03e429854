package order

import (
	"encoding/json"
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"github.com/sjawhar/roomline/internal/catalog"
)

var fixedNow = time.Date(2026, 3, 14, 18, 30, 15, 0, time.UTC)

func testNormalizer() *Normalizer {
	return &Normalizer{
		now:    func() time.Time { return fixedNow },
		newRef: func() string { return "ORD-TEST0001" },
	}
}

func floatPtr(v float64) *float64 { return &v }

func TestNormalizeRoomNumber(t *testing.T) {
	n := testNormalizer()
	tests := []struct {
		in   string
		want string
	}{
		{"7", "7"},
		{"12B", "12B"},
		{"12b", "12B"},
		{" 305 ", "305"},
		{"abcde", DefaultRoomNumber},
		{"", DefaultRoomNumber},
		{"12345", DefaultRoomNumber},
		{"12BC", DefaultRoomNumber},
	}
	for _, tt := range tests {
		o, _ := n.Normalize(Draft{RoomNumber: tt.in})
		if o.RoomNumber != tt.want {
			t.Errorf("room %q: got %q, want %q", tt.in, o.RoomNumber, tt.want)
		}
	}
}

func TestNormalizeEnumsDefault(t *testing.T) {
	n := testNormalizer()

	o, corrections := n.Normalize(Draft{RoomNumber: "305", OrderType: "yacht", DeliveryTiming: "tomorrowish"})
	if o.OrderType != catalog.RoomService {
		t.Fatalf("expected room-service, got %q", o.OrderType)
	}
	if o.DeliveryTiming != TimingASAP {
		t.Fatalf("expected asap, got %q", o.DeliveryTiming)
	}
	if len(corrections) != 3 {
		t.Fatalf("expected order type, timing and placeholder corrections, got %v", corrections)
	}

	o, _ = n.Normalize(Draft{RoomNumber: "305", OrderType: "Housekeeping", DeliveryTiming: "1HOUR"})
	if o.OrderType != catalog.Housekeeping || o.DeliveryTiming != Timing1Hour {
		t.Fatalf("expected valid enums to pass, got %q %q", o.OrderType, o.DeliveryTiming)
	}
}

func TestNormalizeEmptyItemsSynthesizesPlaceholder(t *testing.T) {
	n := testNormalizer()
	drafts := []Draft{
		{RoomNumber: "305"},
		{RoomNumber: "305", Items: []Item{}},
		{RoomNumber: "305", Items: []Item{{Name: " ", Quantity: 1, UnitPrice: 5}, {Name: "Tea", Quantity: 0, UnitPrice: 2}}},
		{RoomNumber: "305", Items: []Item{{Name: "Refund", Quantity: 1, UnitPrice: -3}}, TotalAmount: floatPtr(-3)},
	}
	for i, d := range drafts {
		o, _ := n.Normalize(d)
		if len(o.Items) != 1 || o.Items[0] != PlaceholderItem() {
			t.Fatalf("draft %d: expected single placeholder, got %+v", i, o.Items)
		}
		if o.TotalAmount != 0 {
			t.Fatalf("draft %d: expected total 0, got %v", i, o.TotalAmount)
		}
	}
}

func TestNormalizeTotals(t *testing.T) {
	n := testNormalizer()
	items := []Item{
		{Name: "Beef burger", Quantity: 2, UnitPrice: 12.5},
		{Name: "Orange juice", Quantity: 1, UnitPrice: 4.25},
	}

	o, _ := n.Normalize(Draft{RoomNumber: "305", Items: items})
	if o.TotalAmount != 29.25 {
		t.Fatalf("expected computed total 29.25, got %v", o.TotalAmount)
	}

	o, corrections := n.Normalize(Draft{RoomNumber: "305", Items: items, TotalAmount: floatPtr(29.254)})
	if o.TotalAmount != 29.25 || len(corrections) != 0 {
		t.Fatalf("expected consistent total kept, got %v %v", o.TotalAmount, corrections)
	}

	o, corrections = n.Normalize(Draft{RoomNumber: "305", Items: items, TotalAmount: floatPtr(10)})
	if o.TotalAmount != 29.25 {
		t.Fatalf("expected inconsistent total recomputed, got %v", o.TotalAmount)
	}
	if len(corrections) != 1 || corrections[0].Field != "total_amount" {
		t.Fatalf("expected total correction, got %v", corrections)
	}
}

func TestNormalizeDropsOversizedLines(t *testing.T) {
	n := testNormalizer()
	o, corrections := n.Normalize(Draft{
		RoomNumber:     "305",
		DeliveryTiming: TimingASAP,
		TotalAmount:    floatPtr(math.Inf(1)),
		Items: []Item{
			{Name: "Suite", Quantity: 10, UnitPrice: 1e308},
			{Name: "Coffee", Quantity: 2, UnitPrice: 3.5},
		},
	})

	if len(o.Items) != 1 || o.Items[0].Name != "Coffee" {
		t.Fatalf("expected only the coffee to survive, got %+v", o.Items)
	}
	if o.TotalAmount != 7 {
		t.Fatalf("expected total 7, got %v", o.TotalAmount)
	}
	if len(corrections) != 2 || corrections[0].Field != "items[0]" || corrections[1].Field != "total_amount" {
		t.Fatalf("unexpected corrections %+v", corrections)
	}
	if _, err := json.Marshal(o); err != nil {
		t.Fatalf("normalized order must encode: %v", err)
	}
}

func TestNormalizeCallIDAndStatus(t *testing.T) {
	n := testNormalizer()

	o, _ := n.Normalize(Draft{RoomNumber: "305"})
	if o.CallID != "CALL-20260314183015" {
		t.Fatalf("expected synthesized call id, got %q", o.CallID)
	}
	if o.Status != StatusAcknowledged || !o.CreatedAt.Equal(fixedNow) || o.Reference != "ORD-TEST0001" {
		t.Fatalf("unexpected order %+v", o)
	}

	o, _ = n.Normalize(Draft{CallID: "call-42", RoomNumber: "305"})
	if o.CallID != "call-42" {
		t.Fatalf("expected supplied call id, got %q", o.CallID)
	}
}

func TestNormalizeIsIdempotent(t *testing.T) {
	n := testNormalizer()
	drafts := []Draft{
		{},
		{RoomNumber: "12b", OrderType: "spa", DeliveryTiming: "specific", SpecialInstructions: " quiet room ",
			Items: []Item{{Name: " Massage ", Description: " 60 min ", Quantity: 1, UnitPrice: 80}, {Name: "", Quantity: 1}}},
		{RoomNumber: "305", Items: []Item{{Name: "Burger", Quantity: 3, UnitPrice: 0.1}}, TotalAmount: floatPtr(99)},
	}
	for i, d := range drafts {
		first, _ := n.Normalize(d)
		second, corrections := n.Normalize(first.Draft())
		if !reflect.DeepEqual(first, second) {
			t.Fatalf("draft %d: normalization not idempotent:\n%+v\n%+v", i, first, second)
		}
		if len(corrections) != 0 {
			t.Fatalf("draft %d: expected no corrections on second pass, got %v", i, corrections)
		}
	}
}

func TestValidateStrict(t *testing.T) {
	n := testNormalizer()

	_, err := n.Validate(Draft{RoomNumber: "abcde", Items: []Item{{Name: "Tea", Quantity: 1, UnitPrice: 3}}})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected *ValidationError, got %v", err)
	}
	if len(verr.Corrections) != 1 || verr.Corrections[0].Field != "room_number" {
		t.Fatalf("unexpected corrections %v", verr.Corrections)
	}

	o, err := n.Validate(Draft{RoomNumber: "305", Items: []Item{{Name: "Tea", Quantity: 1, UnitPrice: 3}}})
	if err != nil {
		t.Fatalf("expected clean draft to validate, got %v", err)
	}
	if o.TotalAmount != 3 {
		t.Fatalf("unexpected total %v", o.TotalAmount)
	}
}

func TestNewReferenceFormat(t *testing.T) {
	ref := NewReference()
	if len(ref) != 12 || ref[:4] != "ORD-" {
		t.Fatalf("unexpected reference %q", ref)
	}
	for _, r := range ref[4:] {
		if (r < '0' || r > '9') && (r < 'A' || r > 'F') {
			t.Fatalf("unexpected character %q in %q", r, ref)
		}
	}
}
