package api

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/repository"
	"SimEcon/internal/service/feed"
	"SimEcon/internal/usecase"
	"SimEcon/pkg/cache"
	xhttp "SimEcon/pkg/http"
	"SimEcon/pkg/logger"
)

// Deps are the collaborators the operator API reads from and drives.
// Archive, Quotes and Feed are optional.
type Deps struct {
	Simulation *usecase.Simulation
	Economy    *usecase.Economy
	Trades     *usecase.TradeDesk
	Batches    *usecase.BatchJob
	Archive    repository.TransactionArchive
	Quotes     cache.Service
	QuoteTTL   time.Duration
	Feed       *feed.Hub
	Log        *logger.Logger
}

// EconomyHandler serves the operator API.
type EconomyHandler struct {
	Deps
	now func() time.Time
}

func NewEconomyHandler(d Deps) *EconomyHandler {
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.QuoteTTL <= 0 {
		d.QuoteTTL = 5 * time.Second
	}
	return &EconomyHandler{Deps: d, now: time.Now}
}

func (h *EconomyHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/health", h.Health)
	if h.Feed != nil {
		e.GET("/ws/feed", echo.WrapHandler(h.Feed))
	}

	g := e.Group("/api")
	g.GET("/accounts/:actor/balance", h.Balance)
	g.GET("/accounts/:actor/transactions", h.Transactions)
	g.GET("/accounts/:actor/archive", h.Archived)
	g.POST("/transfers", h.Transfer)

	g.GET("/prices/:product", h.Price)
	g.POST("/trades/sell", h.Sell)
	g.POST("/trades/buy", h.Buy)

	g.GET("/cycle", h.CycleState)
	g.GET("/credit/:actor", h.Credit)
	g.POST("/loans", h.ApplyLoan)
	g.POST("/loans/:actor/repay", h.RepayLoan)

	admin := g.Group("/admin")
	admin.POST("/cycle/force", h.ForcePhase)
	admin.POST("/day/advance", h.AdvanceDay)
	admin.POST("/batch", h.ApplyBatch)
}

// fail logs server-side failures and renders err.
func (h *EconomyHandler) fail(c echo.Context, op string, err error) error {
	ae := appError(err)
	if ae.Status >= http.StatusInternalServerError {
		h.Log.Error("api."+op+" failed", logger.String("route", c.Path()), logger.Error(err))
	}
	return xhttp.AppErrorResponse(c, ae)
}

func badRequest(c echo.Context, errs []xhttp.ValidationError) error {
	return xhttp.BadRequestResponse(c, errs)
}

// actorID parses a string that already passed the uuid validator.
func actorID(s string) models.ActorID {
	return uuid.MustParse(s)
}
