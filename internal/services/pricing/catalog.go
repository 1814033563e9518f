package pricing

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"SimEcon/internal/domain/models"
)

// EventTemplate is a market event that the cycle can roll.
type EventTemplate struct {
	Name       string
	Categories []models.ItemCategory
	Multiplier float64
	Days       int
}

var (
	partyDrugs     = []models.ItemCategory{models.CategoryMDMA, models.CategoryLSD, models.CategoryCocaine, models.CategoryCannabis}
	syntheticDrugs = []models.ItemCategory{models.CategoryMeth, models.CategoryMDMA, models.CategoryLSD}
	plantDrugs     = []models.ItemCategory{models.CategoryCannabis, models.CategoryTobacco, models.CategoryMushroom, models.CategoryCocaine}
	stimulants     = []models.ItemCategory{models.CategoryCocaine, models.CategoryMeth}
	allDrugs       = []models.ItemCategory{
		models.CategoryCannabis, models.CategoryMushroom, models.CategoryLSD, models.CategoryMDMA,
		models.CategoryCocaine, models.CategoryMeth, models.CategoryHeroin,
	}
)

// EventCatalog is the pool of random market events.
var EventCatalog = []EventTemplate{
	{"Police raid: cannabis", []models.ItemCategory{models.CategoryCannabis}, 1.5, 3},
	{"Police raid: cocaine", []models.ItemCategory{models.CategoryCocaine}, 1.6, 3},
	{"Festival season", partyDrugs, 1.4, 5},
	{"Chemical shortage", syntheticDrugs, 1.45, 4},
	{"Drought", plantDrugs, 1.35, 4},
	{"Cannabis glut", []models.ItemCategory{models.CategoryCannabis}, 0.7, 3},
	{"Meth glut", []models.ItemCategory{models.CategoryMeth}, 0.65, 3},
	{"New competition", allDrugs, 0.8, 2},
	{"VIP demand", []models.ItemCategory{models.CategoryCocaine}, 1.8, 2},
	{"Exam season", stimulants, 1.3, 3},
	{"Techno festival", []models.ItemCategory{models.CategoryMDMA, models.CategoryLSD}, 1.7, 2},
	{"Border controls", allDrugs, 1.25, 5},
}

// RandomEvent picks a template and schedules it from now, with one
// simulated day lasting dayLength.
func RandomEvent(rng *rand.Rand, now time.Time, dayLength time.Duration) models.PricingEvent {
	t := EventCatalog[rng.Intn(len(EventCatalog))]
	return t.Event(now, dayLength)
}

func (t EventTemplate) Event(now time.Time, dayLength time.Duration) models.PricingEvent {
	cats := make([]models.ItemCategory, len(t.Categories))
	copy(cats, t.Categories)
	return models.PricingEvent{
		ID:         uuid.NewString(),
		Name:       t.Name,
		Categories: cats,
		Multiplier: t.Multiplier,
		ExpiresAt:  now.Add(time.Duration(t.Days) * dayLength),
	}
}
