// Package catalog holds the fixed set of hotel service categories shared by
// request extraction and order normalization.
package catalog

import "strings"

type Category string

const (
	RoomService      Category = "room-service"
	Housekeeping     Category = "housekeeping"
	Transportation   Category = "transportation"
	Spa              Category = "spa"
	Tours            Category = "tours"
	TechnicalSupport Category = "technical-support"
	Concierge        Category = "concierge"
	Wellness         Category = "wellness"
	Security         Category = "security"
	SpecialOccasion  Category = "special-occasion"
	Other            Category = "other"
)

var all = []Category{
	RoomService,
	Housekeeping,
	Transportation,
	Spa,
	Tours,
	TechnicalSupport,
	Concierge,
	Wellness,
	Security,
	SpecialOccasion,
	Other,
}

var labels = map[Category]string{
	RoomService:      "Food & Beverage",
	Housekeeping:     "Housekeeping",
	Transportation:   "Transportation",
	Spa:              "Spa",
	Tours:            "Tours",
	TechnicalSupport: "Technical Support",
	Concierge:        "Concierge",
	Wellness:         "Wellness",
	Security:         "Security",
	SpecialOccasion:  "Special Occasion",
	Other:            "Other",
}

var aliases = map[string]Category{
	"food":            RoomService,
	"food-beverage":   RoomService,
	"food-&-beverage": RoomService,
	"f&b":             RoomService,
	"dining":          RoomService,
	"transport":       Transportation,
	"tour":            Tours,
	"technical":       TechnicalSupport,
	"tech-support":    TechnicalSupport,
	"special-event":   SpecialOccasion,
}

// All returns the categories in their canonical order.
func All() []Category {
	return append([]Category(nil), all...)
}

// Label is the human-readable name used in summaries and notifications.
func (c Category) Label() string {
	if l, ok := labels[c]; ok {
		return l
	}
	return labels[Other]
}

func (c Category) Valid() bool {
	_, ok := labels[c]
	return ok
}

// Parse maps loose spellings ("Room Service", "room_service", "TECHNICAL")
// onto a category. The second result is false when nothing matched.
func Parse(raw string) (Category, bool) {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.NewReplacer("_", "-", " ", "-").Replace(key)
	if key == "" {
		return "", false
	}
	if c := Category(key); c.Valid() {
		return c, true
	}
	if c, ok := aliases[key]; ok {
		return c, true
	}
	return "", false
}

// ParseOr is Parse with a fallback for unknown input.
func ParseOr(raw string, fallback Category) Category {
	if c, ok := Parse(raw); ok {
		return c
	}
	return fallback
}
