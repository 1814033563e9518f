package api

import (
	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"

	"SimEcon/internal/domain/models"
	xhttp "SimEcon/pkg/http"
)

type repayResponse struct {
	Actor   models.ActorID  `json:"actor"`
	Balance decimal.Decimal `json:"balance"`
	Repaid  decimal.Decimal `json:"repaid"`
}

func (h *EconomyHandler) Credit(c echo.Context) error {
	req := &models.ActorRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	return xhttp.SuccessResponse(c, h.Economy.Loans.Report(actorID(req.Actor)))
}

func (h *EconomyHandler) ApplyLoan(c echo.Context) error {
	req := &models.LoanRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	loan, err := h.Economy.Loans.Apply(actorID(req.Actor), models.LoanType(req.Type))
	if err != nil {
		return h.fail(c, "loan_apply", err)
	}
	return xhttp.CreatedResponse(c, loan)
}

// RepayLoan pays the remaining balance in full.
func (h *EconomyHandler) RepayLoan(c echo.Context) error {
	req := &models.RepayRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	actor := actorID(req.Actor)
	loan, ok := h.Economy.Loans.Loan(actor)
	if !ok {
		return h.fail(c, "loan_repay", models.ErrNoActiveLoan)
	}
	if err := h.Economy.Loans.Repay(actor); err != nil {
		return h.fail(c, "loan_repay", err)
	}
	return xhttp.SuccessResponse(c, repayResponse{
		Actor:   actor,
		Balance: h.Economy.Ledger.GetBalance(actor),
		Repaid:  loan.Remaining,
	})
}
