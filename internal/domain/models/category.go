package models

import "sort"

// ItemCategory classifies products for pricing bounds, tax and risk.
type ItemCategory string

const (
	CategoryCannabis       ItemCategory = "CANNABIS"
	CategoryTobacco        ItemCategory = "TOBACCO"
	CategoryMushroom       ItemCategory = "MUSHROOM"
	CategoryLSD            ItemCategory = "LSD"
	CategoryMDMA           ItemCategory = "MDMA"
	CategoryCocaine        ItemCategory = "COCAINE"
	CategoryMeth           ItemCategory = "METH"
	CategoryHeroin         ItemCategory = "HEROIN"
	CategorySeedIllegal    ItemCategory = "SEED_ILLEGAL"
	CategoryChemical       ItemCategory = "CHEMICAL"
	CategoryMachineIllegal ItemCategory = "MACHINE_ILLEGAL"
	CategoryFood           ItemCategory = "FOOD"
	CategorySeedLegal      ItemCategory = "SEED_LEGAL"
	CategoryMachineLegal   ItemCategory = "MACHINE_LEGAL"
	CategoryTool           ItemCategory = "TOOL"
	CategoryOther          ItemCategory = "OTHER"
)

// Tax rates applied to sell proceeds.
const (
	LegalTaxRate   = 0.19
	IllegalTaxRate = 0.0
)

// CategorySpec is read-only reference data attached to a category.
type CategorySpec struct {
	Illegal       bool    `json:"illegal"`
	MinMultiplier float64 `json:"min_multiplier"`
	MaxMultiplier float64 `json:"max_multiplier"`
	Sensitivity   float64 `json:"sensitivity"`
	TaxRate       float64 `json:"tax_rate"`
}

func illegalSpec(minMult, maxMult, sensitivity float64) CategorySpec {
	return CategorySpec{Illegal: true, MinMultiplier: minMult, MaxMultiplier: maxMult, Sensitivity: sensitivity, TaxRate: IllegalTaxRate}
}

func legalSpec(minMult, maxMult, sensitivity float64) CategorySpec {
	return CategorySpec{MinMultiplier: minMult, MaxMultiplier: maxMult, Sensitivity: sensitivity, TaxRate: LegalTaxRate}
}

var categorySpecs = map[ItemCategory]CategorySpec{
	CategoryCannabis:       illegalSpec(0.5, 3.0, 0.8),
	CategoryTobacco:        illegalSpec(0.6, 2.5, 0.6),
	CategoryMushroom:       illegalSpec(0.5, 3.0, 0.8),
	CategoryLSD:            illegalSpec(0.5, 3.5, 0.9),
	CategoryMDMA:           illegalSpec(0.5, 3.5, 0.9),
	CategoryCocaine:        illegalSpec(0.5, 4.0, 1.0),
	CategoryMeth:           illegalSpec(0.5, 4.0, 1.0),
	CategoryHeroin:         illegalSpec(0.5, 4.0, 1.0),
	CategorySeedIllegal:    illegalSpec(0.7, 2.0, 0.4),
	CategoryChemical:       illegalSpec(0.7, 2.0, 0.4),
	CategoryMachineIllegal: illegalSpec(0.8, 1.8, 0.3),
	CategoryFood:           legalSpec(0.7, 1.5, 0.6),
	CategorySeedLegal:      legalSpec(0.7, 1.5, 0.4),
	CategoryMachineLegal:   legalSpec(0.8, 1.5, 0.3),
	CategoryTool:           legalSpec(0.8, 1.5, 0.3),
	CategoryOther:          legalSpec(0.5, 2.0, 0.5),
}

// Spec returns the reference data, falling back to OTHER for unknown tags.
func (c ItemCategory) Spec() CategorySpec {
	if s, ok := categorySpecs[c]; ok {
		return s
	}
	return categorySpecs[CategoryOther]
}

func (c ItemCategory) Illegal() bool { return c.Spec().Illegal }

// ParseCategory returns false for unknown tags.
func ParseCategory(s string) (ItemCategory, bool) {
	c := ItemCategory(s)
	_, ok := categorySpecs[c]
	return c, ok
}

// Categories lists every known category in stable order.
func Categories() []ItemCategory {
	out := make([]ItemCategory, 0, len(categorySpecs))
	for c := range categorySpecs {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
