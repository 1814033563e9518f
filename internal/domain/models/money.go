package models

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyPlaces is the number of fractional digits every ledger amount carries.
const MoneyPlaces = 2

// ActorID identifies anything that holds a balance: players and system accounts.
type ActorID = uuid.UUID

// TreasuryID is the state account that receives taxes and penalties.
var TreasuryID = uuid.MustParse("00000000-0000-0000-0000-00000000feed")

// Money converts a float quote into a ledger amount.
func Money(v float64) decimal.Decimal {
	return decimal.NewFromFloat(v).Round(MoneyPlaces)
}

// RoundMoney rounds to cent precision.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyPlaces)
}

// ParseActor parses a string-serialized actor id.
func ParseActor(s string) (ActorID, error) {
	return uuid.Parse(s)
}

// Account is a balance snapshot for one actor.
type Account struct {
	Actor   ActorID         `json:"actor"`
	Balance decimal.Decimal `json:"balance"`
}
