package app

import (
	"context"
	"errors"
	"time"

	"github.com/raysh454/compliscan/internal/logging"
)

// Service is a background loop owned by the Application, such as the
// scheduler.
type Service interface {
	Start()
	Stop()
}

// Application is the global runtime state container. It holds the facade
// and the background services that share its lifetime.
type Application struct {
	Config   *Config
	Logger   logging.Logger
	Orch     *Orchestrator
	services []Service

	closers []func() error
}

// NewApplication constructs an Application from already built parts so it is
// easy to test and does not import heavy dependencies.
func NewApplication(cfg *Config, logger logging.Logger, orch *Orchestrator, services ...Service) *Application {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Application{
		Config:   cfg.withDefaults(),
		Logger:   logger.With(logging.Component("application")),
		Orch:     orch,
		services: services,
	}
}

// OnClose registers fn to run at the end of Shutdown, in reverse order.
func (a *Application) OnClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Start fails scans interrupted by a previous process, then starts the
// background services.
func (a *Application) Start(ctx context.Context) error {
	if a == nil || a.Orch == nil {
		return errors.New("application is not wired")
	}
	if _, err := a.Orch.Executor().RecoverInterrupted(ctx); err != nil {
		a.Logger.Warn("recovering interrupted scans", logging.Err(err))
	}
	for _, s := range a.services {
		s.Start()
	}
	a.Logger.Info("application started", logging.Field{Key: "services", Value: len(a.services)})
	return nil
}

// Shutdown stops the services, cancels running scans and closes resources.
func (a *Application) Shutdown(ctx context.Context) error {
	if a == nil {
		return errors.New("application is nil")
	}
	a.Logger.Info("application shutdown initiated")

	for i := len(a.services) - 1; i >= 0; i-- {
		a.services[i].Stop()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	var errs []error
	if a.Orch != nil && a.Orch.Executor() != nil {
		if err := a.Orch.Executor().Shutdown(shutdownCtx); err != nil {
			a.Logger.Warn("executor shutdown returned error", logging.Err(err))
			errs = append(errs, err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
