package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SavingsAccount holds funds outside the spendable balance.
type SavingsAccount struct {
	ID              uuid.UUID       `json:"id"`
	Actor           ActorID         `json:"actor"`
	Balance         decimal.Decimal `json:"balance"`
	OpenedDay       int64           `json:"opened_day"`
	LastInterestDay int64           `json:"last_interest_day"`
	InterestEarned  decimal.Decimal `json:"interest_earned"`
	CreatedAt       time.Time       `json:"created_at"`
}

// LockedAt reports whether the account is still inside its lock period.
func (s SavingsAccount) LockedAt(day int64, lockDays int) bool {
	return day-s.OpenedDay < int64(lockDays)
}

// OverdraftInfo describes an actor's overdraft position.
type OverdraftInfo struct {
	Actor             ActorID         `json:"actor"`
	Balance           decimal.Decimal `json:"balance"`
	Overdrawn         decimal.Decimal `json:"overdrawn"`
	Limit             decimal.Decimal `json:"limit"`
	InOverdraft       bool            `json:"in_overdraft"`
	DaysSinceInterest int64           `json:"days_since_interest"`
}

// Notice is an actor-facing message raised by scheduled processing.
type Notice struct {
	Actor   ActorID   `json:"actor"`
	Kind    string    `json:"kind"`
	Message string    `json:"message"`
	At      time.Time `json:"at"`
}
