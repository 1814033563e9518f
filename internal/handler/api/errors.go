package api

import (
	"errors"
	"net/http"

	"SimEcon/internal/domain/models"
	xhttp "SimEcon/pkg/http"
)

var domainErrors = []struct {
	err    error
	status int
	code   string
}{
	{models.ErrNegativeAmount, http.StatusBadRequest, "ERR_INVALID_AMOUNT"},
	{models.ErrSelfTransfer, http.StatusBadRequest, "ERR_SELF_TRANSFER"},
	{models.ErrUnknownLoanType, http.StatusBadRequest, "ERR_UNKNOWN_LOAN_TYPE"},
	{models.ErrAccountNotFound, http.StatusNotFound, "ERR_ACCOUNT_NOT_FOUND"},
	{models.ErrNoActiveLoan, http.StatusNotFound, "ERR_NO_ACTIVE_LOAN"},
	{models.ErrSavingsNotFound, http.StatusNotFound, "ERR_SAVINGS_NOT_FOUND"},
	{models.ErrRateLimited, http.StatusTooManyRequests, "ERR_RATE_LIMITED"},
	{models.ErrInsufficientFunds, http.StatusConflict, "ERR_INSUFFICIENT_FUNDS"},
	{models.ErrTransferIncomplete, http.StatusConflict, "ERR_TRANSFER_INCOMPLETE"},
	{models.ErrBalanceCeiling, http.StatusConflict, "ERR_BALANCE_CEILING"},
	{models.ErrAccountExists, http.StatusConflict, "ERR_ACCOUNT_EXISTS"},
	{models.ErrActiveLoan, http.StatusConflict, "ERR_ACTIVE_LOAN"},
	{models.ErrBalanceTooLow, http.StatusConflict, "ERR_BALANCE_TOO_LOW"},
	{models.ErrRatingTooLow, http.StatusConflict, "ERR_RATING_TOO_LOW"},
	{models.ErrPrincipalTooHigh, http.StatusConflict, "ERR_PRINCIPAL_TOO_HIGH"},
}

// appError maps domain sentinels to HTTP errors. Order matters:
// ErrTransferIncomplete wraps the deposit failure that caused it.
func appError(err error) *xhttp.AppError {
	var ae *xhttp.AppError
	if errors.As(err, &ae) {
		return ae
	}
	for _, d := range domainErrors {
		if errors.Is(err, d.err) {
			return xhttp.NewAppError(d.code, "", d.err.Error(), d.status).WithError(err)
		}
	}
	return xhttp.InternalError("internal error").WithError(err)
}
