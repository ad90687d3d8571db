package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/gridfed/hginventory/internal/config"
	"github.com/gridfed/hginventory/internal/connector"
	"github.com/gridfed/hginventory/internal/diagnostics"
	"github.com/gridfed/hginventory/internal/identity"
	"github.com/gridfed/hginventory/internal/metrics"
	"github.com/gridfed/hginventory/internal/router"
	"github.com/gridfed/hginventory/internal/server"
	"github.com/gridfed/hginventory/internal/session"
	"github.com/gridfed/hginventory/internal/store/sqlite"
	"github.com/gridfed/hginventory/pkg/errors"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the local inventory and route visitor inventories",
	RunE:  runServe,
}

// node is a fully wired inventory process
type node struct {
	store     *sqlite.Store
	router    *router.Router
	host      *session.Host
	monitor   *diagnostics.Monitor
	collector *metrics.Collector
	server    *server.Server
}

func (n *node) Close() error {
	return n.store.Close()
}

// openLocal opens the configured local inventory service
func openLocal(cfg config.LocalConfig, logger *zap.Logger) (*sqlite.Store, error) {
	switch cfg.Driver {
	case sqlite.DriverName:
		return sqlite.Open(cfg.DSN, logger)
	case "":
		return nil, errors.NewError(errors.ErrCodeMissingLocalService, "no local inventory service configured").
			WithComponent("serve")
	default:
		return nil, errors.NewError(errors.ErrCodeInvalidConfig, "unsupported local driver").
			WithComponent("serve").
			WithContext("driver", cfg.Driver)
	}
}

// buildNode wires every component from cfg
func buildNode(cfg *config.Configuration, logger *zap.Logger) (*node, error) {
	collector, err := metrics.NewCollector(&metrics.Config{
		Enabled:   cfg.Metrics.Enabled,
		Port:      cfg.Metrics.Port,
		Path:      cfg.Metrics.Path,
		Namespace: cfg.Metrics.Namespace,
	}, logger)
	if err != nil {
		return nil, err
	}

	monitor := diagnostics.New(diagnostics.Config{
		Enabled:           cfg.Diagnostics.Enabled,
		Verbose:           cfg.Diagnostics.Verbose,
		RaceWindow:        cfg.Diagnostics.RaceWindow,
		SlowThreshold:     cfg.Diagnostics.SlowThreshold,
		DeadlockThreshold: cfg.Diagnostics.DeadlockThreshold,
		StaleTimeout:      cfg.Diagnostics.StaleTimeout,
		Logger:            logger,
		Recorder:          collector,
	})

	dir, err := identity.FromConfig(cfg.Identity)
	if err != nil {
		return nil, err
	}

	store, err := openLocal(cfg.Local, logger)
	if err != nil {
		return nil, err
	}

	host := session.NewHost(logger)
	r, err := router.New(router.Dependencies{
		Local:    store,
		Identity: dir,
		Sessions: host,
		ConnectorFactory: connector.Factory(connector.Config{
			Timeout:    cfg.Connector.Timeout,
			PathPrefix: cfg.Connector.PathPrefix,
			UserAgent:  cfg.Connector.UserAgent,
			Logger:     logger,
		}),
		Options: router.Options{
			ConnectorTTL:           cfg.Router.ConnectorTTL,
			SerializeLocalReads:    cfg.Router.SerializeLocalReads,
			MultiFolderConcurrency: cfg.Router.MultiFolderConcurrency,
			TrackRemoteCalls:       cfg.Router.TrackRemoteCalls,
		},
		Logger:  logger,
		Metrics: collector,
		Monitor: monitor,
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	host.OnClientClosed(r.HandleClientClosed)

	var srv *server.Server
	if cfg.Server.Enabled {
		srv = server.New(store, server.Config{
			Address:      cfg.Server.Address,
			PathPrefix:   cfg.Connector.PathPrefix,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			IdleTimeout:  cfg.Server.IdleTimeout,
		}, logger)
		if cfg.Server.RouterPathPrefix != "" {
			srv.Mount(cfg.Server.RouterPathPrefix, r)
		}
		if cfg.Server.Sessions {
			srv.MountSessions(host)
		}
	}

	return &node{
		store:     store,
		router:    r,
		host:      host,
		monitor:   monitor,
		collector: collector,
		server:    srv,
	}, nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := initLogger(cfg); err != nil {
		return err
	}

	n, err := buildNode(cfg, logger)
	if err != nil {
		logger.Error("Failed to start", zap.Error(err))
		return err
	}
	defer n.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := n.collector.Start(ctx); err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	if n.monitor.Enabled() {
		g.Go(func() error {
			n.monitor.Run(ctx, cfg.Diagnostics.ScanInterval)
			return nil
		})
	}
	g.Go(func() error {
		n.router.Run(ctx, cfg.Router.ConnectorTTL)
		return nil
	})
	if n.server != nil {
		g.Go(n.server.Start)
	}
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		logger.Info("Shutting down", zap.Stringer("diagnostics", n.monitor.Stats()))
		if n.server != nil {
			if err := n.server.Shutdown(shutdownCtx); err != nil {
				logger.Warn("Inventory server shutdown failed", zap.Error(err))
			}
		}
		return n.collector.Stop(shutdownCtx)
	})

	logger.Info("Inventory router started",
		zap.String("local_driver", cfg.Local.Driver),
		zap.Int("foreign_users", len(cfg.Identity.ForeignUsers)),
		zap.Bool("server", n.server != nil),
		zap.Bool("metrics", cfg.Metrics.Enabled))

	return g.Wait()
}
