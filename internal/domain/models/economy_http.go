package models

// Requests for operator HTTP endpoints. Defined in domain for consistency and reuse.

type ActorRequest struct {
	Actor string `param:"actor" validate:"required,uuid"`
}

type TransactionsRequest struct {
	Actor string `param:"actor" validate:"required,uuid"`
	Limit int    `query:"limit" default:"50" validate:"gte=1,lte=1000"`
	Type  string `query:"type"`
	From  string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To    string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
}

type ArchiveRequest struct {
	Actor string `param:"actor" validate:"required,uuid"`
	From  string `query:"from" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To    string `query:"to" validate:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Limit int    `query:"limit" default:"200" validate:"gte=1,lte=5000"`
}

type TransferRequest struct {
	From        string  `json:"from" validate:"required,uuid"`
	To          string  `json:"to" validate:"required,uuid,nefield=From"`
	Amount      float64 `json:"amount" validate:"money"`
	Description string  `json:"description" default:"transfer" validate:"max=200"`
}

type PriceRequest struct {
	Product string  `param:"product" validate:"required"`
	Side    string  `query:"side" default:"sell" validate:"oneof=sell buy"`
	Quality float64 `query:"quality" default:"1" validate:"gt=0,lte=10"`
	Qty     int     `query:"qty" default:"1" validate:"gte=1,lte=100000"`
}

type ForcePhaseRequest struct {
	Phase string `json:"phase" validate:"required,oneof=NORMAL BOOM OVERHEAT RECESSION DEPRESSION RECOVERY"`
	Days  int    `json:"days" validate:"gte=0,lte=365"`
}

type LoanRequest struct {
	Actor string `json:"actor" validate:"required,uuid"`
	Type  string `json:"type" validate:"required,oneof=STARTER STANDARD PREMIUM VIP"`
}

type RepayRequest struct {
	Actor string `param:"actor" validate:"required,uuid"`
}

type TradeRequest struct {
	Actor   string  `json:"actor" validate:"required,uuid"`
	Product string  `json:"product" validate:"required"`
	Quality float64 `json:"quality" default:"1" validate:"gt=0,lte=10"`
	Qty     int     `json:"qty" default:"1" validate:"gte=1,lte=100000"`
}
