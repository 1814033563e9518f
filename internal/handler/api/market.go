package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"SimEcon/internal/domain/models"
	"SimEcon/pkg/cache"
	xhttp "SimEcon/pkg/http"
	"SimEcon/pkg/logger"
)

const headerCache = "X-Cache"

type cycleResponse struct {
	models.CycleState
	Day              int64   `json:"day"`
	Multiplier       float64 `json:"multiplier"`
	SalaryMultiplier float64 `json:"salary_multiplier"`
}

// Price quotes a product. Quotes are cached briefly so a burst of identical
// lookups costs one engine evaluation.
func (h *EconomyHandler) Price(c echo.Context) error {
	req := &models.PriceRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	key := cache.Key("quote", req.Side, req.Product, req.Quality, req.Qty)
	q, hit, err := cache.Remember(c.Request().Context(), h.Quotes, key, h.QuoteTTL, func() (models.Quote, error) {
		return h.Trades.Quote(req.Side, req.Product, req.Quality, req.Qty), nil
	})
	if err != nil {
		return h.fail(c, "price", err)
	}
	if hit {
		c.Response().Header().Set(headerCache, "HIT")
	} else {
		c.Response().Header().Set(headerCache, "MISS")
	}
	return xhttp.SuccessResponse(c, q)
}

func (h *EconomyHandler) Sell(c echo.Context) error {
	req := &models.TradeRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	q, err := h.Trades.Sell(actorID(req.Actor), req.Product, req.Quality, req.Qty)
	if err != nil {
		return h.fail(c, "sell", err)
	}
	return xhttp.CreatedResponse(c, q)
}

func (h *EconomyHandler) Buy(c echo.Context) error {
	req := &models.TradeRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	q, err := h.Trades.Buy(actorID(req.Actor), req.Product, req.Qty)
	if err != nil {
		return h.fail(c, "buy", err)
	}
	return xhttp.CreatedResponse(c, q)
}

func (h *EconomyHandler) CycleState(c echo.Context) error {
	return xhttp.SuccessResponse(c, h.cycleView())
}

func (h *EconomyHandler) cycleView() cycleResponse {
	cy := h.Economy.Cycle
	return cycleResponse{
		CycleState:       cy.State(),
		Day:              h.Simulation.Day(),
		Multiplier:       cy.Multiplier(),
		SalaryMultiplier: cy.SalaryMultiplier(),
	}
}

// ForcePhase jumps the cycle into a phase. The multiplier keeps
// interpolating from its current value.
func (h *EconomyHandler) ForcePhase(c echo.Context) error {
	req := &models.ForcePhaseRequest{}
	if errs := xhttp.ReadAndValidateRequest(c, req); errs != nil {
		return badRequest(c, errs)
	}
	phase, ok := models.ParsePhase(req.Phase)
	if !ok {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestErrorf("unknown phase %q", req.Phase))
	}
	h.Economy.Cycle.ForcePhase(phase, req.Days)
	h.Log.Warn("api.cycle_forced", logger.String("phase", string(phase)), logger.Int("days", req.Days))
	return xhttp.SuccessResponse(c, h.cycleView())
}

// AdvanceDay runs one simulated day immediately.
func (h *EconomyHandler) AdvanceDay(c echo.Context) error {
	day := h.Simulation.AdvanceDay()
	h.Log.Warn("api.day_advanced", logger.Int64("day", day))
	return xhttp.DataResponse(c, http.StatusOK, map[string]int64{"day": day})
}

