package api

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	xhttp "SimEcon/pkg/http"
	"SimEcon/pkg/logger"
	"SimEcon/pkg/persistence"
)

type healthResponse struct {
	Status       string                        `json:"status"`
	Day          int64                         `json:"day"`
	Subsystems   map[string]persistence.Health `json:"subsystems"`
	RecentErrors []logger.AggregatedLogEntry   `json:"recent_errors,omitempty"`
	FeedClients  int                           `json:"feed_clients"`
}

// Health reports every persisted subsystem plus the archive. Any unhealthy
// entry turns the response into a 503.
func (h *EconomyHandler) Health(c echo.Context) error {
	subs := h.Simulation.Health()
	if h.Archive != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		err := h.Archive.Health(ctx)
		cancel()
		ah := persistence.Health{Healthy: err == nil}
		if err != nil {
			ah.LastError = err.Error()
		}
		subs["archive"] = ah
	}

	resp := healthResponse{Status: "ok", Day: h.Simulation.Day(), Subsystems: subs}
	for _, s := range subs {
		if !s.Healthy {
			resp.Status = "degraded"
		}
	}
	if col := h.Log.Collector(); col != nil {
		resp.RecentErrors = col.Recent()
	}
	if h.Feed != nil {
		resp.FeedClients = h.Feed.Clients()
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	return xhttp.DataResponse(c, status, resp)
}
