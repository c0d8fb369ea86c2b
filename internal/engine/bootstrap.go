package engine

import (
	"context"
	"fmt"

	"streamhub/internal/broker"
	"streamhub/internal/config"
	"streamhub/internal/httpapi"
	"streamhub/internal/logging"
	"streamhub/internal/manager"
	"streamhub/internal/reporter"
	"streamhub/internal/store"
	"streamhub/internal/telemetry"
)

func Bootstrap(ctx context.Context, cfg config.Config) (*Engine, error) {
	// 1. durable store
	var st manager.Store = store.Discard{}
	var closer func() error
	if cfg.DatabaseDSN != "" {
		g, err := store.Open(cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("store: %w", err)
		}
		st = g
		closer = g.Close
	}

	// 2. manager + reporter
	mgr := manager.New(&broker.SaramaDialer{Version: cfg.KafkaVersion}, st)
	rep := reporter.New(mgr, &broker.SaramaAdminDialer{Version: cfg.KafkaVersion}, cfg.AdminAddr)

	// 3. declared consumers
	if cfg.BootstrapFile != "" {
		boot, err := config.LoadBootstrap(cfg.BootstrapFile)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: %w", err)
		}
		for _, spec := range boot.Consumers {
			if _, err := mgr.Create(ctx, spec); err != nil {
				logging.L().Error("bootstrap consumer rejected", "topic", spec.Topic, "group", spec.Group, "err", err)
			}
		}
	}

	// 4. metrics
	telemetry.Expose(cfg.MetricsPort)

	return &Engine{
		cfg:        cfg,
		mgr:        mgr,
		api:        httpapi.New(mgr, rep),
		storeClose: closer,
	}, nil
}
