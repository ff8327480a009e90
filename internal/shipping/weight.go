package shipping

import (
	"strings"

	"bookshop/internal/models"
)

// MinWeightKg is booked when an order's weight cannot be worked out, so that
// incomplete product data never blocks a shipment.
const MinWeightKg = 0.5

// Package dimensions in centimetres. Orders do not track their box size.
const (
	DefaultLength  = 10
	DefaultBreadth = 10
	DefaultHeight  = 10
)

// ToKilograms converts weight expressed in unit to kilograms. An empty or
// unknown unit is taken as kilograms.
func ToKilograms(weight float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "g", "gm", "gms", "gram", "grams":
		return weight / 1000
	case "lb", "lbs", "pound", "pounds":
		return weight * 0.45359237
	case "oz", "ounce", "ounces":
		return weight * 0.028349523125
	default:
		return weight
	}
}

// ResolveWeight returns the weight in kilograms to declare to the carrier.
// A positive precomputed total wins; otherwise item weights are summed per
// unit quantity. A result that is not positive falls back to MinWeightKg.
func ResolveWeight(precomputed float64, items []models.OrderItem) float64 {
	if precomputed > 0 {
		return precomputed
	}
	var total float64
	for _, it := range items {
		if it.Weight <= 0 || it.Quantity <= 0 {
			continue
		}
		total += ToKilograms(it.Weight, it.WeightUnit) * float64(it.Quantity)
	}
	if total <= 0 {
		return MinWeightKg
	}
	return total
}

// SplitName splits a billing name into first and last name for the carrier.
// Everything after the first word is the last name; "." stands in when there
// is none.
func SplitName(full string) (first, last string) {
	parts := strings.Fields(full)
	switch len(parts) {
	case 0:
		return "Customer", "."
	case 1:
		return parts[0], "."
	default:
		return parts[0], strings.Join(parts[1:], " ")
	}
}
