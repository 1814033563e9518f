package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// CreditRecord is the behavioural history a score is derived from.
type CreditRecord struct {
	Actor            ActorID         `json:"actor"`
	CompletedLoans   int             `json:"completed_loans"`
	DefaultedLoans   int             `json:"defaulted_loans"`
	MissedPayments   int             `json:"missed_payments"`
	OnTimePayments   int             `json:"on_time_payments"`
	FirstActivityDay int64           `json:"first_activity_day"`
	AvgBalance       float64         `json:"avg_balance"`
	BalanceSamples   int64           `json:"balance_samples"`
	TotalRepaid      decimal.Decimal `json:"total_repaid"`
}

// Rating is a credit tier, best first.
type Rating string

const (
	RatingAAA Rating = "AAA"
	RatingAA  Rating = "AA"
	RatingA   Rating = "A"
	RatingBBB Rating = "BBB"
	RatingBB  Rating = "BB"
	RatingB   Rating = "B"
	RatingCCC Rating = "CCC"
	RatingD   Rating = "D"
)

// RatingTier maps a minimum score to a loan ceiling.
type RatingTier struct {
	Rating   Rating `json:"rating"`
	MinScore int    `json:"min_score"`
	MaxLoan  int64  `json:"max_loan"`
	Stars    int    `json:"stars"`
}

var ratingTiers = []RatingTier{
	{RatingAAA, 900, 250000, 5},
	{RatingAA, 800, 150000, 5},
	{RatingA, 700, 100000, 4},
	{RatingBBB, 600, 50000, 4},
	{RatingBB, 500, 25000, 3},
	{RatingB, 350, 15000, 2},
	{RatingCCC, 100, 5000, 1},
	{RatingD, 0, 0, 0},
}

// TierForScore returns the best tier whose minimum the score reaches.
func TierForScore(score int) RatingTier {
	for _, t := range ratingTiers {
		if score >= t.MinScore {
			return t
		}
	}
	return ratingTiers[len(ratingTiers)-1]
}

func (r Rating) rank() int {
	for i, t := range ratingTiers {
		if t.Rating == r {
			return i
		}
	}
	return len(ratingTiers)
}

// AtLeast reports whether r is as good as or better than other.
func (r Rating) AtLeast(other Rating) bool { return r.rank() <= other.rank() }

func (r Rating) Tier() RatingTier {
	for _, t := range ratingTiers {
		if t.Rating == r {
			return t
		}
	}
	return ratingTiers[len(ratingTiers)-1]
}

type LoanType string

const (
	LoanStarter  LoanType = "STARTER"
	LoanStandard LoanType = "STANDARD"
	LoanPremium  LoanType = "PREMIUM"
	LoanVIP      LoanType = "VIP"
)

// LoanSpec is the fixed offer for a loan type.
type LoanSpec struct {
	Principal      int64   `json:"principal"`
	BaseRate       float64 `json:"base_rate"`
	DurationDays   int     `json:"duration_days"`
	RequiredRating Rating  `json:"required_rating"`
}

var loanSpecs = map[LoanType]LoanSpec{
	LoanStarter:  {Principal: 5000, BaseRate: 0.08, DurationDays: 14, RequiredRating: RatingCCC},
	LoanStandard: {Principal: 15000, BaseRate: 0.10, DurationDays: 28, RequiredRating: RatingB},
	LoanPremium:  {Principal: 50000, BaseRate: 0.12, DurationDays: 56, RequiredRating: RatingBBB},
	LoanVIP:      {Principal: 150000, BaseRate: 0.15, DurationDays: 90, RequiredRating: RatingAA},
}

// Spec returns false for unknown loan types.
func (t LoanType) Spec() (LoanSpec, bool) {
	s, ok := loanSpecs[t]
	return s, ok
}

// LoanTypes lists offers from smallest to largest.
func LoanTypes() []LoanType {
	return []LoanType{LoanStarter, LoanStandard, LoanPremium, LoanVIP}
}

// Loan is an active obligation. Remaining never goes below zero.
type Loan struct {
	ID            uuid.UUID       `json:"id"`
	Actor         ActorID         `json:"actor"`
	Type          LoanType        `json:"type"`
	Principal     decimal.Decimal `json:"principal"`
	EffectiveRate float64         `json:"effective_rate"`
	DurationDays  int             `json:"duration_days"`
	StartDay      int64           `json:"start_day"`
	Total         decimal.Decimal `json:"total"`
	Remaining     decimal.Decimal `json:"remaining"`
	DailyPayment  decimal.Decimal `json:"daily_payment"`
}

// CreditReport is the read view served to operators.
type CreditReport struct {
	Actor      ActorID      `json:"actor"`
	Score      int          `json:"score"`
	Tier       RatingTier   `json:"tier"`
	Modifier   float64      `json:"rate_modifier"`
	Record     CreditRecord `json:"record"`
	ActiveLoan *Loan        `json:"active_loan,omitempty"`
}
