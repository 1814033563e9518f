// Package pricing composes reference prices and market signals into bounded
// quotes.
package pricing

import (
	"math"

	"SimEcon/internal/domain/models"
)

// MinTotal is the smallest total any sell quote may return.
const MinTotal = 0.01

// Bounds are the absolute per-unit limits applied after category bounds.
type Bounds struct {
	AbsoluteMin float64
	AbsoluteMax float64
}

var DefaultBounds = Bounds{AbsoluteMin: 0.01, AbsoluteMax: 1_000_000}

// Result is a priced quantity. Clamped reports that the raw unit price fell
// outside its bounds.
type Result struct {
	Unit    float64 `json:"unit"`
	Total   float64 `json:"total"`
	Clamped bool    `json:"clamped"`
}

// ClampUnit bounds raw to [ref*min, ref*max] of the category, then to the
// absolute limits. The absolute floor wins when the two ranges disagree.
// NaN input is treated as the reference price.
func ClampUnit(raw, ref float64, spec models.CategorySpec, b Bounds) (float64, bool) {
	nan := math.IsNaN(raw)
	if nan {
		raw = ref
	}
	v := clamp(raw, ref*spec.MinMultiplier, ref*spec.MaxMultiplier)
	v = math.Min(v, b.AbsoluteMax)
	v = math.Max(v, b.AbsoluteMin)
	return v, nan || v != raw
}

// Compute applies every multiplier to ref, clamps the unit price and
// multiplies by qty.
func Compute(ref float64, cat models.ItemCategory, qty int, b Bounds, multipliers ...float64) Result {
	raw := ref
	for _, m := range multipliers {
		raw *= m
	}
	unit, clamped := ClampUnit(raw, ref, cat.Spec(), b)
	total := unit * float64(qty)
	if total < MinTotal {
		total = MinTotal
	}
	return Result{Unit: unit, Total: total, Clamped: clamped}
}

// SupplyDemandMultiplier maps a warehouse fill ratio to a price factor:
// empty shelves raise the price, full ones lower it.
func SupplyDemandMultiplier(fill, sensitivity float64) float64 {
	return clamp(1+(0.5-fill)*sensitivity, 0.5, 1.5)
}

// Damp keeps ratio of m's deviation from 1.0.
func Damp(m, ratio float64) float64 {
	return 1 + (m-1)*ratio
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
