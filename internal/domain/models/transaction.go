package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type TransactionType string

const (
	TxDeposit          TransactionType = "DEPOSIT"
	TxWithdrawal       TransactionType = "WITHDRAWAL"
	TxTransfer         TransactionType = "TRANSFER"
	TxShopPurchase     TransactionType = "SHOP_PURCHASE"
	TxShopSale         TransactionType = "SHOP_SALE"
	TxSalary           TransactionType = "SALARY"
	TxDailyReward      TransactionType = "DAILY_REWARD"
	TxInterest         TransactionType = "INTEREST"
	TxTax              TransactionType = "TAX"
	TxLoanDisbursement TransactionType = "LOAN_DISBURSEMENT"
	TxLoanRepayment    TransactionType = "LOAN_REPAYMENT"
	TxOverdraftFee     TransactionType = "OVERDRAFT_FEE"
	TxOverdraftSeizure TransactionType = "OVERDRAFT_SEIZURE"
	TxSavingsDeposit   TransactionType = "SAVINGS_DEPOSIT"
	TxSavingsWithdraw  TransactionType = "SAVINGS_WITHDRAW"
	TxAdminSet         TransactionType = "ADMIN_SET"
	TxOther            TransactionType = "OTHER"
)

// Rate limiter operation classes.
const (
	RateClassTransfer = "transfer"
	RateClassCommand  = "command"
)

var transactionTypes = map[TransactionType]struct{}{
	TxDeposit: {}, TxWithdrawal: {}, TxTransfer: {}, TxShopPurchase: {}, TxShopSale: {},
	TxSalary: {}, TxDailyReward: {}, TxInterest: {}, TxTax: {}, TxLoanDisbursement: {},
	TxLoanRepayment: {}, TxOverdraftFee: {}, TxOverdraftSeizure: {}, TxSavingsDeposit: {},
	TxSavingsWithdraw: {}, TxAdminSet: {}, TxOther: {},
}

// ParseTransactionType returns false for unknown tags.
func ParseTransactionType(s string) (TransactionType, bool) {
	t := TransactionType(s)
	_, ok := transactionTypes[t]
	return t, ok
}

// RateClass returns the limiter class for actor-initiated types and "" for
// system postings (interest, tax, loans) which are never throttled.
func (t TransactionType) RateClass() string {
	switch t {
	case TxTransfer:
		return RateClassTransfer
	case TxDeposit, TxWithdrawal, TxSavingsDeposit, TxSavingsWithdraw:
		return RateClassCommand
	default:
		return ""
	}
}

// Transaction is an immutable journal record. Amount is signed from the
// owning actor's point of view.
type Transaction struct {
	ID           uuid.UUID       `json:"id"`
	Actor        ActorID         `json:"actor"`
	Timestamp    time.Time       `json:"timestamp"`
	Type         TransactionType `json:"type"`
	From         *ActorID        `json:"from,omitempty"`
	To           *ActorID        `json:"to,omitempty"`
	Amount       decimal.Decimal `json:"amount"`
	Description  string          `json:"description"`
	BalanceAfter decimal.Decimal `json:"balance_after"`
}

func (t Transaction) IsIncome() bool  { return t.Amount.IsPositive() }
func (t Transaction) IsExpense() bool { return t.Amount.IsNegative() }
