package engine

import (
	"context"
	"time"

	"streamhub/internal/config"
	"streamhub/internal/httpapi"
	"streamhub/internal/logging"
	"streamhub/internal/manager"
)

type Engine struct {
	cfg        config.Config
	mgr        *manager.Manager
	api        *httpapi.Server
	storeClose func() error
}

func (e *Engine) Run(ctx context.Context) error {
	go e.syncLoop(ctx)

	go func() {
		<-ctx.Done()
		shCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = e.api.Shutdown(shCtx)
		e.shutdown(shCtx)
	}()

	logging.L().Info("serving", "http_port", e.cfg.HTTPPort, "metrics_port", e.cfg.MetricsPort)
	return e.api.Serve(e.cfg.HTTPPort)
}

// syncLoop drains the operation journal on a fixed cadence.
func (e *Engine) syncLoop(ctx context.Context) {
	t := time.NewTicker(e.cfg.SyncInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if err := e.mgr.SyncJournal(ctx); err != nil {
				logging.L().Error("journal sync failed", "err", err)
			}
		}
	}
}

// shutdown stops every live consumer and flushes the journal once more.
func (e *Engine) shutdown(ctx context.Context) {
	for _, v := range e.mgr.List() {
		if v.Status == manager.StatusActive {
			if _, err := e.mgr.Stop(ctx, v.ID); err != nil {
				logging.L().Warn("shutdown: stop failed", "consumer_id", v.ID, "err", err)
			}
		}
	}
	if err := e.mgr.SyncJournal(ctx); err != nil {
		logging.L().Error("final journal sync failed", "err", err)
	}
	if e.storeClose != nil {
		_ = e.storeClose()
	}
}
