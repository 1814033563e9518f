package models

import "errors"

// Ledger
var (
	ErrNegativeAmount     = errors.New("amount must not be negative")
	ErrInsufficientFunds  = errors.New("insufficient funds")
	ErrSelfTransfer       = errors.New("cannot transfer to self")
	ErrRateLimited        = errors.New("rate limit exceeded")
	ErrBalanceCeiling     = errors.New("balance ceiling exceeded")
	ErrAccountNotFound    = errors.New("account not found")
	ErrAccountExists      = errors.New("account already exists")
	ErrTransferIncomplete = errors.New("transfer withdrawn but not deposited")
)

// Credit and loans
var (
	ErrActiveLoan       = errors.New("actor already has an active loan")
	ErrNoActiveLoan     = errors.New("actor has no active loan")
	ErrBalanceTooLow    = errors.New("balance below loan minimum")
	ErrRatingTooLow     = errors.New("credit rating too low for loan type")
	ErrPrincipalTooHigh = errors.New("principal exceeds rating ceiling")
	ErrUnknownLoanType  = errors.New("unknown loan type")
)

// Savings and tax
var (
	ErrSavingsMinimum  = errors.New("deposit below savings minimum")
	ErrSavingsLimit    = errors.New("savings limit per actor exceeded")
	ErrSavingsLocked   = errors.New("savings account is still locked")
	ErrSavingsNotFound = errors.New("savings account not found")
	ErrSavingsBalance  = errors.New("savings balance too low")
	ErrNoTaxDebt       = errors.New("no outstanding tax debt")
)
