package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"SimEcon/internal/usecase"
	"SimEcon/pkg/config"
	xhttp "SimEcon/pkg/http"
	pkgkafka "SimEcon/pkg/kafka"
	applogger "SimEcon/pkg/logger"
	"SimEcon/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	sim        *usecase.Simulation
	relay      *usecase.TransactionRelay
	consumer   *pkgkafka.Consumer
	intake     *queue.RedisQueue
	httpServer *xhttp.Server
	log        *applogger.Logger

	simDone chan error
}

// New creates a new App instance with all dependencies. consumer and intake
// may be nil.
func New(
	cfg *config.Config,
	sim *usecase.Simulation,
	relay *usecase.TransactionRelay,
	consumer *pkgkafka.Consumer,
	intake *queue.RedisQueue,
	httpServer *xhttp.Server,
	log *applogger.Logger,
) *App {
	if log == nil {
		log = applogger.Nop()
	}
	return &App{
		cfg:        cfg,
		sim:        sim,
		relay:      relay,
		consumer:   consumer,
		intake:     intake,
		httpServer: httpServer,
		log:        log,
	}
}

// Run loads persisted state, starts every component and blocks until ctx
// is done, a signal arrives or the HTTP listener fails.
func (a *App) Run(ctx context.Context) error {
	if err := a.sim.LoadAll(); err != nil {
		// subsystems that failed keep running on empty data and report unhealthy
		a.log.Error("app.load degraded", applogger.Error(err))
	}
	for name, h := range a.sim.Health() {
		a.log.Info("app.subsystem", applogger.String("name", name), applogger.String("health", h.String()))
	}

	a.relay.Start(ctx)

	if a.consumer != nil {
		if err := a.consumer.Start(); err != nil {
			a.relay.Stop()
			return err
		}
	}

	if a.intake != nil {
		if err := a.intake.Start(); err != nil {
			if a.consumer != nil {
				_ = a.consumer.Stop(context.Background())
			}
			a.relay.Stop()
			return err
		}
	}

	simCtx, stopSim := context.WithCancel(context.Background())
	defer stopSim()
	a.simDone = make(chan error, 1)
	go func() { a.simDone <- a.sim.Run(simCtx) }()

	httpErr := a.httpServer.Start()
	a.log.Info("app.started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("relay", a.relay.Backend()),
		applogger.Bool("kafka", a.consumer != nil),
		applogger.Bool("batch_queue", a.intake != nil),
	)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	var runErr error
	select {
	case <-ctx.Done():
		a.log.Info("app.context cancelled")
	case sig := <-sigCh:
		a.log.Info("app.signal received", applogger.String("signal", sig.String()))
	case err := <-httpErr:
		runErr = err
	}
	return errors.Join(runErr, a.shutdown(stopSim))
}

// shutdown stops intake first, then the simulation, and drains the relay
// last so the final day's postings are forwarded.
func (a *App) shutdown(stopSim context.CancelFunc) error {
	a.log.Info("app.shutting down")
	var errs []error

	if err := a.httpServer.Stop(context.Background()); err != nil {
		a.log.Error("app.http shutdown failed", applogger.Error(err))
		errs = append(errs, err)
	}

	if a.consumer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("app.consumer stop failed", applogger.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}
	if a.intake != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
		if err := a.intake.Stop(ctx); err != nil {
			a.log.Warn("app.batch queue stop failed", applogger.Error(err))
			errs = append(errs, err)
		}
		cancel()
	}

	stopSim()
	if err := <-a.simDone; err != nil {
		a.log.Error("app.final flush failed", applogger.Error(err))
		errs = append(errs, err)
	}

	a.relay.Close()
	if c := a.log.Collector(); c != nil {
		c.Flush()
	}
	a.log.Info("app.stopped")
	return errors.Join(errs...)
}
