package commands

import (
	"context"
	"fmt"

	"github.com/dyluth/sagastore/internal/config"
	"github.com/dyluth/sagastore/internal/logger"
	"github.com/dyluth/sagastore/internal/printer"
	"github.com/dyluth/sagastore/internal/sample"
	"github.com/dyluth/sagastore/pkg/saga"
	"github.com/dyluth/sagastore/pkg/saga/boltstore"
	"github.com/dyluth/sagastore/pkg/saga/redisstore"
	"github.com/spf13/cobra"
)

// store is the part of a backend the commands use beyond saga.Connector.
type store interface {
	saga.Connector[*sample.SimpleSaga]
	Ping(ctx context.Context) error
	Close() error
}

// sagaRuntime is a configured repository for the sample saga.
type sagaRuntime struct {
	cfg   *config.SagastoreConfig
	log   *logger.Logger
	store store
	repo  *saga.Repository[*sample.SimpleSaga]

	// redis is set for the redis backend only.
	redis *redisstore.Store[*sample.SimpleSaga]
}

// openRuntime loads configuration and opens the configured backend.
// Errors are already printed when returned.
func openRuntime(cmd *cobra.Command, opts *rootOptions) (*sagaRuntime, error) {
	cfg, err := config.LoadOrDefault(opts.configPath)
	if err != nil {
		return nil, printer.ErrorWithContext(
			"configuration error",
			err.Error(),
			map[string]string{"Config": opts.configPath},
			[]string{"Fix sagastore.yml or the SAGASTORE_* environment variables"},
		)
	}

	logCfg := logger.DefaultConfig()
	logCfg.Level = logger.Level(cfg.Logging.Level)
	logCfg.JSON = cfg.Logging.JSON
	logCfg.Output = cmd.ErrOrStderr()
	log := logger.New(logCfg).With("namespace", cfg.Namespace)

	rt := &sagaRuntime{cfg: cfg, log: log}

	switch cfg.Backend {
	case config.BackendBolt:
		s, err := boltstore.Open[*sample.SimpleSaga](cfg.Bolt.Path, cfg.Namespace)
		if err != nil {
			return nil, printer.ErrorWithContext(
				"failed to open saga store",
				err.Error(),
				map[string]string{"Path": cfg.Bolt.Path},
				[]string{"Check that no other sagastore process holds the database open"},
			)
		}
		rt.store = s
	default:
		storeOpts := []redisstore.Option{redisstore.WithLogger(log)}
		if cfg.Redis.Events {
			storeOpts = append(storeOpts, redisstore.WithEvents())
		}
		s, err := redisstore.NewFromURL[*sample.SimpleSaga](cfg.Redis.URL, cfg.Namespace, storeOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create redis store: %w", err)
		}
		rt.store = s
		rt.redis = s
	}

	repoOpts := []saga.Option{saga.WithLogger(log)}
	if cfg.Versioning.Atomic {
		repoOpts = append(repoOpts, saga.WithAtomicVersionCheck())
	} else if cfg.Versioning.Enabled {
		repoOpts = append(repoOpts, saga.WithVersioning())
	}

	rt.repo, err = saga.NewRepository[*sample.SimpleSaga](rt.store, repoOpts...)
	if err != nil {
		rt.store.Close()
		return nil, fmt.Errorf("failed to create saga repository: %w", err)
	}

	return rt, nil
}

// ping verifies the backend is reachable, printing a formatted error if not.
func (rt *sagaRuntime) ping(ctx context.Context) error {
	if err := rt.store.Ping(ctx); err != nil {
		target := rt.cfg.Backend
		if rt.redis != nil {
			target = rt.cfg.Redis.URL
		}
		return printer.ErrorWithContext(
			"store connection failed",
			fmt.Sprintf("Could not reach the %s backend: %v", rt.cfg.Backend, err),
			map[string]string{"Target": target},
			[]string{"Check that the store is running and the URL is correct"},
		)
	}
	return nil
}

func (rt *sagaRuntime) Close() error {
	return rt.store.Close()
}
