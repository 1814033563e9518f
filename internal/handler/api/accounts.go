package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/usecase"
	xhttp "SimEcon/pkg/http"
	"SimEcon/pkg/logger"
)

type balanceResponse struct {
	Actor   models.ActorID  `json:"actor"`
	Balance decimal.Decimal `json:"balance"`
	Exists  bool            `json:"exists"`
}

type transactionsResponse struct {
	Actor        models.ActorID       `json:"actor"`
	Transactions []models.Transaction `json:"transactions"`
	Count        int                  `json:"count"`
	TotalIncome  decimal.Decimal      `json:"total_income"`
	TotalExpense decimal.Decimal      `json:"total_expense"`
}

type transferResponse struct {
	From        models.ActorID  `json:"from"`
	To          models.ActorID  `json:"to"`
	Amount      decimal.Decimal `json:"amount"`
	FromBalance decimal.Decimal `json:"from_balance"`
	ToBalance   decimal.Decimal `json:"to_balance"`
}

func (h *EconomyHandler) Balance(c echo.Context) error {
	req := &models.ActorRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	actor := actorID(req.Actor)
	l := h.Economy.Ledger
	return xhttp.SuccessResponse(c, balanceResponse{Actor: actor, Balance: l.GetBalance(actor), Exists: l.Exists(actor)})
}

// Transactions serves the in-memory journal: by type when type is set,
// by time range when from or to is set, otherwise the most recent entries.
func (h *EconomyHandler) Transactions(c echo.Context) error {
	req := &models.TransactionsRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	actor := actorID(req.Actor)
	j := h.Economy.Journal

	var txs []models.Transaction
	switch {
	case req.Type != "":
		t, ok := models.ParseTransactionType(req.Type)
		if !ok {
			return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown transaction type %q", req.Type))
		}
		txs = j.ByType(actor, t)
	case req.From != "" || req.To != "":
		from := xhttp.ParseTimeDefault(req.From, time.Time{})
		to := xhttp.ParseTimeDefault(req.To, h.now())
		txs = j.Between(actor, from, to)
	default:
		txs = j.Recent(actor, req.Limit)
	}
	if len(txs) > req.Limit {
		txs = txs[len(txs)-req.Limit:]
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	return xhttp.SuccessResponse(c, transactionsResponse{
		Actor:        actor,
		Transactions: txs,
		Count:        len(txs),
		TotalIncome:  j.TotalIncome(actor),
		TotalExpense: j.TotalExpense(actor),
	})
}

// Archived queries long-term history. The default window is the last 30 days.
func (h *EconomyHandler) Archived(c echo.Context) error {
	req := &models.ArchiveRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	if h.Archive == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("transaction archive is not configured"))
	}
	to := xhttp.ParseTimeDefault(req.To, h.now())
	from := xhttp.ParseTimeDefault(req.From, to.AddDate(0, 0, -30))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to"))
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()
	txs, err := h.Archive.Query(ctx, actorID(req.Actor), from, to, req.Limit)
	if err != nil {
		return h.fail(c, "archive", err)
	}
	return xhttp.ListResponse(c, txs, int64(len(txs)))
}

func (h *EconomyHandler) Transfer(c echo.Context) error {
	req := &models.TransferRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	from, to := actorID(req.From), actorID(req.To)
	amount := models.Money(req.Amount)
	if err := h.Economy.Ledger.Transfer(from, to, amount, req.Description); err != nil {
		return h.fail(c, "transfer", err)
	}
	return xhttp.CreatedResponse(c, transferResponse{
		From:        from,
		To:          to,
		Amount:      amount,
		FromBalance: h.Economy.Ledger.GetBalance(from),
		ToBalance:   h.Economy.Ledger.GetBalance(to),
	})
}

// ApplyBatch runs a ledger batch synchronously. Item failures are reported
// in the result; a malformed batch applies nothing.
func (h *EconomyHandler) ApplyBatch(c echo.Context) error {
	if h.Batches == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("batch processing is not configured"))
	}
	req := &usecase.BatchCommand{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	res, err := h.Batches.Apply(*req)
	if err != nil {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()))
	}
	h.Log.Info("api.batch_applied", logger.Int("total", res.Total), logger.Int("failed", res.Failed))
	return xhttp.DataResponse(c, http.StatusOK, res)
}
