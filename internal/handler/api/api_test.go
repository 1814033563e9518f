package api

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"SimEcon/internal/domain/models"
	"SimEcon/internal/domain/service"
	"SimEcon/internal/services/cycle"
	"SimEcon/internal/services/pricing"
	"SimEcon/internal/usecase"
	"SimEcon/pkg/cache"
	xhttp "SimEcon/pkg/http"
)

type archiveStub struct {
	rows   []*models.Transaction
	err    error
	health error
	limit  int
}

func (a *archiveStub) Init(context.Context) error                              { return nil }
func (a *archiveStub) StoreBatch(context.Context, []*models.Transaction) error { return nil }
func (a *archiveStub) Health(context.Context) error                            { return a.health }
func (a *archiveStub) Close() error                                            { return nil }
func (a *archiveStub) Query(_ context.Context, _ models.ActorID, _, _ time.Time, limit int) ([]*models.Transaction, error) {
	a.limit = limit
	return a.rows, a.err
}

type fixture struct {
	srv     *xhttp.Server
	economy *usecase.Economy
	sim     *usecase.Simulation
	archive *archiveStub
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	journal := usecase.NewJournal(1000, 90*24*time.Hour, 4, nil, nil, nil)
	ledger := usecase.NewLedger(usecase.LedgerConfig{Shards: 4}, journal, nil, nil, nil, nil)
	credit := usecase.NewCreditTracker(ledger, nil, nil, nil)
	engine := pricing.NewEngine(pricing.DefaultBounds, pricing.NewMarketBoard(), pricing.NewRiskPremium(nil), pricing.NewEventBoard())
	engine.RegisterProduct("bread", 10, models.CategoryFood)
	tracker := usecase.NewEconomyTracker(0.05, -0.02, nil, nil, nil)

	e := &usecase.Economy{
		Ledger:    ledger,
		Journal:   journal,
		Cycle:     cycle.New(rand.New(rand.NewSource(1)), nil, nil, nil),
		Pricing:   engine,
		Credit:    credit,
		Loans:     usecase.NewLoanDesk(ledger, credit, decimal.NewFromInt(1000), nil, nil, nil),
		Tax:       usecase.NewTaxOffice(usecase.TaxConfig{PeriodDays: 7}, ledger, service.NoProperty{}, nil, nil, nil),
		Overdraft: usecase.NewOverdraftDesk(usecase.OverdraftConfig{}, ledger, nil, nil, nil),
		Savings:   usecase.NewSavingsBank(usecase.SavingsConfig{}, ledger, nil, nil, nil),
		Tracker:   tracker,
	}
	sim := usecase.NewSimulation(usecase.SimulationConfig{DayLength: time.Hour}, nil, nil, nil)
	arch := &archiveStub{}

	h := NewEconomyHandler(Deps{
		Simulation: sim,
		Economy:    e,
		Trades:     usecase.NewTradeDesk(engine, ledger, tracker, nil, nil),
		Batches:    usecase.NewBatchJob(ledger, nil),
		Archive:    arch,
		Quotes:     cache.NewLayeredCache(nil),
	})
	reg := prometheus.NewRegistry()
	srv := xhttp.NewServer([]xhttp.Handler{h}, xhttp.WithMetrics("", reg, reg))
	return &fixture{srv: srv, economy: e, sim: sim, archive: arch}
}

func (f *fixture) do(t *testing.T, method, path string, body interface{}) (*httptest.ResponseRecorder, xhttp.APIResponse) {
	t.Helper()
	var r *strings.Reader
	if body == nil {
		r = strings.NewReader("")
	} else {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		r = strings.NewReader(string(b))
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	f.srv.Echo().ServeHTTP(rec, req)
	var resp xhttp.APIResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp), rec.Body.String())
	return rec, resp
}

func (f *fixture) fund(t *testing.T, actor models.ActorID, amount int64) {
	t.Helper()
	require.NoError(t, f.economy.Ledger.Deposit(actor, decimal.NewFromInt(amount), models.TxDeposit, "seed"))
}

func dataMap(t *testing.T, resp xhttp.APIResponse) map[string]interface{} {
	t.Helper()
	m, ok := resp.Data.(map[string]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	return m
}

func errorCode(t *testing.T, resp xhttp.APIResponse) string {
	t.Helper()
	list, ok := resp.Data.([]interface{})
	require.True(t, ok, "data is %T", resp.Data)
	require.NotEmpty(t, list)
	return list[0].(map[string]interface{})["code"].(string)
}

func TestBalance(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New()
	f.fund(t, actor, 250)

	rec, resp := f.do(t, http.MethodGet, "/api/accounts/"+actor.String()+"/balance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data := dataMap(t, resp)
	assert.Equal(t, "250", data["balance"])
	assert.Equal(t, true, data["exists"])

	rec, resp = f.do(t, http.MethodGet, "/api/accounts/not-a-uuid/balance", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_UUID", errorCode(t, resp))
}

func TestTransferAndTransactions(t *testing.T) {
	f := newFixture(t)
	from, to := uuid.New(), uuid.New()
	f.fund(t, from, 100)

	rec, resp := f.do(t, http.MethodPost, "/api/transfers", models.TransferRequest{
		From: from.String(), To: to.String(), Amount: 40,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := dataMap(t, resp)
	assert.Equal(t, "60", data["from_balance"])
	assert.Equal(t, "40", data["to_balance"])

	rec, resp = f.do(t, http.MethodPost, "/api/transfers", models.TransferRequest{
		From: from.String(), To: to.String(), Amount: 1000,
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ERR_INSUFFICIENT_FUNDS", errorCode(t, resp))

	rec, resp = f.do(t, http.MethodPost, "/api/transfers", models.TransferRequest{
		From: from.String(), To: from.String(), Amount: 1,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_NEFIELD", errorCode(t, resp))

	rec, resp = f.do(t, http.MethodPost, "/api/transfers", models.TransferRequest{
		From: from.String(), To: to.String(), Amount: 1.005,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_MONEY", errorCode(t, resp))

	rec, resp = f.do(t, http.MethodGet, "/api/accounts/"+from.String()+"/transactions?limit=1", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	data = dataMap(t, resp)
	assert.EqualValues(t, 1, data["count"])
	assert.Equal(t, "100", data["total_income"])
	assert.Equal(t, "40", data["total_expense"])
	txs := data["transactions"].([]interface{})
	assert.Equal(t, string(models.TxTransfer), txs[0].(map[string]interface{})["type"])

	rec, resp = f.do(t, http.MethodGet, "/api/accounts/"+from.String()+"/transactions?type=DEPOSIT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, dataMap(t, resp)["count"])

	rec, _ = f.do(t, http.MethodGet, "/api/accounts/"+from.String()+"/transactions?type=BRIBE", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestArchive(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New()
	f.archive.rows = []*models.Transaction{{ID: uuid.New(), Actor: actor, Type: models.TxSalary, Amount: decimal.NewFromInt(5)}}

	rec, resp := f.do(t, http.MethodGet, "/api/accounts/"+actor.String()+"/archive", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, dataMap(t, resp)["total"])
	assert.Equal(t, 200, f.archive.limit)

	rec, _ = f.do(t, http.MethodGet, "/api/accounts/"+actor.String()+"/archive?from=2026-02-01T00:00:00Z&to=2026-01-01T00:00:00Z", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.archive.err = errors.New("clickhouse down")
	rec, resp = f.do(t, http.MethodGet, "/api/accounts/"+actor.String()+"/archive", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "ERR_INTERNAL", errorCode(t, resp))
}

func TestPriceIsCached(t *testing.T) {
	f := newFixture(t)
	rec, resp := f.do(t, http.MethodGet, "/api/prices/bread?side=sell&qty=10", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "MISS", rec.Header().Get(headerCache))
	data := dataMap(t, resp)
	assert.InDelta(t, 100, data["total"], 1e-9)
	assert.InDelta(t, 19, data["tax"], 1e-9)

	rec, _ = f.do(t, http.MethodGet, "/api/prices/bread?side=sell&qty=10", nil)
	assert.Equal(t, "HIT", rec.Header().Get(headerCache))

	rec, resp = f.do(t, http.MethodGet, "/api/prices/bread?side=hold", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_ONEOF", errorCode(t, resp))
}

func TestTrades(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New()

	rec, resp := f.do(t, http.MethodPost, "/api/trades/buy", models.TradeRequest{Actor: actor.String(), Product: "bread", Qty: 2})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ERR_INSUFFICIENT_FUNDS", errorCode(t, resp))

	rec, resp = f.do(t, http.MethodPost, "/api/trades/sell", models.TradeRequest{Actor: actor.String(), Product: "bread", Qty: 10})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.InDelta(t, 81, dataMap(t, resp)["net"], 1e-9)

	rec, _ = f.do(t, http.MethodPost, "/api/trades/buy", models.TradeRequest{Actor: actor.String(), Product: "bread", Qty: 2})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.True(t, f.economy.Ledger.GetBalance(actor).Equal(decimal.NewFromInt(61)))
}

func TestCycleAndForcePhase(t *testing.T) {
	f := newFixture(t)
	rec, resp := f.do(t, http.MethodGet, "/api/cycle", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, string(models.PhaseNormal), dataMap(t, resp)["phase"])

	rec, resp = f.do(t, http.MethodPost, "/api/admin/cycle/force", models.ForcePhaseRequest{Phase: "BOOM", Days: 5})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := dataMap(t, resp)
	assert.Equal(t, string(models.PhaseBoom), data["phase"])
	assert.EqualValues(t, 5, data["remaining_days"])

	rec, _ = f.do(t, http.MethodPost, "/api/admin/cycle/force", models.ForcePhaseRequest{Phase: "PANIC"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAdvanceDay(t *testing.T) {
	f := newFixture(t)
	var seen []int64
	f.sim.OnDay("seen_days", func(d int64) { seen = append(seen, d) })

	rec, resp := f.do(t, http.MethodPost, "/api/admin/day/advance", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.EqualValues(t, 1, dataMap(t, resp)["day"])
	assert.Equal(t, []int64{1}, seen)
}

func TestApplyBatch(t *testing.T) {
	f := newFixture(t)
	x, y := uuid.New(), uuid.New()

	rec, resp := f.do(t, http.MethodPost, "/api/admin/batch", map[string]interface{}{
		"operations": []map[string]interface{}{
			{"op": "deposit", "actor": x.String(), "amount": "100"},
			{"op": "transfer", "actor": x.String(), "to": y.String(), "amount": "30"},
			{"op": "withdraw", "actor": y.String(), "amount": "500"},
		},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := dataMap(t, resp)
	assert.EqualValues(t, 3, data["total"])
	assert.EqualValues(t, 2, data["succeeded"])
	assert.EqualValues(t, 1, data["failed"])
	assert.Equal(t, "70", f.economy.Ledger.GetBalance(x).String())

	rec, resp = f.do(t, http.MethodPost, "/api/admin/batch", map[string]interface{}{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "ERR_REQUIRED", errorCode(t, resp))

	rec, _ = f.do(t, http.MethodPost, "/api/admin/batch", map[string]interface{}{
		"operations": []map[string]interface{}{{"op": "deposit", "actor": x.String(), "amount": "1", "type": "BRIBE"}},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "70", f.economy.Ledger.GetBalance(x).String())

	rec, resp = f.do(t, http.MethodPost, "/api/admin/batch", map[string]interface{}{
		"operations": []map[string]interface{}{
			{"op": "deposit", "actor": x.String(), "amount": "5"},
			{"op": "deposit", "actor": uuid.Nil.String(), "amount": "0.001"},
		},
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	fields := map[string]string{}
	for _, e := range resp.Data.([]interface{}) {
		m := e.(map[string]interface{})
		fields[m["field"].(string)] = m["code"].(string)
	}
	assert.Equal(t, map[string]string{
		"operations[1].actor":  "ERR_ACTOR",
		"operations[1].amount": "ERR_MONEY",
	}, fields)
	assert.Equal(t, "70", f.economy.Ledger.GetBalance(x).String())
}

func TestLoanLifecycle(t *testing.T) {
	f := newFixture(t)
	actor := uuid.New()

	rec, resp := f.do(t, http.MethodPost, "/api/loans", models.LoanRequest{Actor: actor.String(), Type: "STARTER"})
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, "ERR_BALANCE_TOO_LOW", errorCode(t, resp))

	f.fund(t, actor, 1000)
	rec, resp = f.do(t, http.MethodPost, "/api/loans", models.LoanRequest{Actor: actor.String(), Type: "STARTER"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, "5000", dataMap(t, resp)["principal"])

	rec, resp = f.do(t, http.MethodGet, "/api/credit/"+actor.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotNil(t, dataMap(t, resp)["active_loan"])

	f.fund(t, actor, 1000)
	rec, resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/loans/%s/repay", actor), nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "5560", dataMap(t, resp)["repaid"])
	assert.Equal(t, "1440", dataMap(t, resp)["balance"])

	rec, resp = f.do(t, http.MethodPost, fmt.Sprintf("/api/loans/%s/repay", actor), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "ERR_NO_ACTIVE_LOAN", errorCode(t, resp))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec, resp := f.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	subs := dataMap(t, resp)["subsystems"].(map[string]interface{})
	assert.Contains(t, subs, "simulation")
	assert.Contains(t, subs, "archive")

	f.archive.health = errors.New("unreachable")
	rec, resp = f.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", dataMap(t, resp)["status"])
}

func TestAppErrorMapping(t *testing.T) {
	wrapped := fmt.Errorf("%w: %w", models.ErrTransferIncomplete, models.ErrBalanceCeiling)
	assert.Equal(t, "ERR_TRANSFER_INCOMPLETE", appError(wrapped).Code)
	assert.Equal(t, http.StatusTooManyRequests, appError(fmt.Errorf("x: %w", models.ErrRateLimited)).Status)
	assert.Equal(t, http.StatusInternalServerError, appError(errors.New("boom")).Status)
}
