package pricing

import (
	"sync"
	"time"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/logger"
)

const (
	// ConfiscationMultiplier marks up buy prices of seizable goods.
	ConfiscationMultiplier = 1.25

	raidEffectWindow = 60 * time.Minute
	raidDecayAfter   = 30 * time.Minute
	raidStep         = 0.05
	raidCap          = 0.30
)

var wantedLevelMultipliers = [...]float64{1.0, 1.05, 1.12, 1.20, 1.35, 1.50}

var baseRisk = map[models.ItemCategory]float64{
	models.CategoryCannabis:       1.15,
	models.CategoryTobacco:        1.10,
	models.CategoryMushroom:       1.20,
	models.CategoryLSD:            1.30,
	models.CategoryMDMA:           1.30,
	models.CategoryCocaine:        1.40,
	models.CategoryMeth:           1.45,
	models.CategoryHeroin:         1.50,
	models.CategorySeedIllegal:    1.10,
	models.CategoryChemical:       1.10,
	models.CategoryMachineIllegal: 1.05,
}

// BaseRisk is the category's markup before enforcement pressure.
func BaseRisk(cat models.ItemCategory) float64 {
	if r, ok := baseRisk[cat]; ok {
		return r
	}
	return 1.0
}

// WantedLevelMultiplier clamps level to 0..5.
func WantedLevelMultiplier(level int) float64 {
	if level < 0 {
		level = 0
	}
	if level >= len(wantedLevelMultipliers) {
		level = len(wantedLevelMultipliers) - 1
	}
	return wantedLevelMultipliers[level]
}

// ConfiscationRisk applies only to goods subject to seizure.
func ConfiscationRisk(cat models.ItemCategory) float64 {
	if cat == models.CategoryMachineIllegal {
		return ConfiscationMultiplier
	}
	return 1.0
}

// RiskPremium tracks enforcement pressure. The raid bonus grows 5% per
// recent raid up to 30% and fades linearly over an hour after the last raid.
type RiskPremium struct {
	mu          sync.RWMutex
	wantedLevel int
	raidCount   int
	lastRaid    time.Time
	now         func() time.Time
	log         *logger.Logger
}

func NewRiskPremium(log *logger.Logger) *RiskPremium {
	if log == nil {
		log = logger.Nop()
	}
	return &RiskPremium{now: time.Now, log: log}
}

func (r *RiskPremium) SetWantedLevel(level int) {
	if level < 0 {
		level = 0
	}
	if level > 5 {
		level = 5
	}
	r.mu.Lock()
	r.wantedLevel = level
	r.mu.Unlock()
}

func (r *RiskPremium) WantedLevel() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.wantedLevel
}

func (r *RiskPremium) OnRaid(reason string) {
	r.mu.Lock()
	r.lastRaid = r.now()
	r.raidCount++
	count := r.raidCount
	r.mu.Unlock()
	r.log.Info("pricing.raid registered", logger.String("reason", reason), logger.Int("recent_raids", count))
}

// Decay drops one recent raid once the last raid is older than 30 minutes.
func (r *RiskPremium) Decay() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.raidCount > 0 && r.now().Sub(r.lastRaid) > raidDecayAfter {
		r.raidCount--
	}
}

func (r *RiskPremium) Reset() {
	r.mu.Lock()
	r.raidCount = 0
	r.lastRaid = time.Time{}
	r.mu.Unlock()
}

func (r *RiskPremium) RaidCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.raidCount
}

// RaidBonus is 1.0 with no recent raids or once the effect window passed.
func (r *RiskPremium) RaidBonus() float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.raidCount == 0 {
		return 1.0
	}
	since := r.now().Sub(r.lastRaid)
	if since > raidEffectWindow {
		return 1.0
	}
	recency := 1 - float64(since)/float64(raidEffectWindow)
	impact := float64(r.raidCount) * raidStep
	if impact > raidCap {
		impact = raidCap
	}
	return 1 + impact*recency
}

// Multiplier is 1.0 for legal categories.
func (r *RiskPremium) Multiplier(cat models.ItemCategory) float64 {
	if !cat.Illegal() {
		return 1.0
	}
	return BaseRisk(cat) * WantedLevelMultiplier(r.WantedLevel()) * r.RaidBonus()
}
