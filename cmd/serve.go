// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package cmd

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"golang.org/x/sync/errgroup"

	"grimm.is/macwall/internal/api"
	"grimm.is/macwall/internal/audit"
	"grimm.is/macwall/internal/blocklist"
	"grimm.is/macwall/internal/brand"
	"grimm.is/macwall/internal/config"
	"grimm.is/macwall/internal/enforcement"
	"grimm.is/macwall/internal/install"
	"grimm.is/macwall/internal/logging"
	"grimm.is/macwall/internal/metrics"
	"grimm.is/macwall/internal/server"
	"grimm.is/macwall/internal/session"
)

// ServeOptions are command-line overrides applied on top of the config file.
type ServeOptions struct {
	ConfigFile string
	// Explicit is set when the config path came from the command line; a missing file is then an error.
	Explicit  bool
	Host      string
	Port      int
	Blocklist string
	Backend   string
}

// RunServe parses serve flags and runs the daemon until SIGINT or SIGTERM.
func RunServe(args []string) error {
	flags := flag.NewFlagSet("serve", flag.ContinueOnError)
	opts := ServeOptions{}
	flags.StringVar(&opts.ConfigFile, "config", install.GetConfigFile(), "Configuration file (HCL, JSON or YAML)")
	flags.StringVar(&opts.Host, "host", "", "Override listen host")
	flags.IntVar(&opts.Port, "port", 0, "Override listen port")
	flags.StringVar(&opts.Blocklist, "blocklist", "", "Override blocklist file path")
	flags.StringVar(&opts.Backend, "backend", "", "Override enforcement backend (exec, nftables, none)")
	if err := flags.Parse(args); err != nil {
		return err
	}
	flags.Visit(func(f *flag.Flag) {
		if f.Name == "config" {
			opts.Explicit = true
		}
	})

	cfg, err := loadServeConfig(opts)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return Serve(ctx, cfg)
}

func loadServeConfig(opts ServeOptions) (*config.Config, error) {
	var (
		cfg *config.Config
		err error
	)
	if opts.Explicit {
		cfg, err = config.LoadFile(opts.ConfigFile)
	} else {
		cfg, err = config.LoadOrDefault(opts.ConfigFile)
	}
	if err != nil {
		return nil, err
	}

	if opts.Host != "" {
		cfg.Listen.Host = opts.Host
	}
	if opts.Port != 0 {
		cfg.Listen.Port = opts.Port
	}
	if opts.Blocklist != "" {
		cfg.Blocklist.Path = opts.Blocklist
	}
	if opts.Backend != "" {
		cfg.Enforcement.Backend = opts.Backend
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Serve wires every component from cfg and blocks until ctx is done or a listener fails.
func Serve(ctx context.Context, cfg *config.Config) error {
	logger, logCloser, err := setupLogging(cfg.Logging)
	if err != nil {
		return err
	}
	defer logCloser.Close()

	m := metrics.New()

	var (
		auditStore  *audit.Store
		auditLogger *audit.Logger
	)
	if cfg.Audit.Enabled {
		auditStore, err = audit.Open(cfg.Audit.Path)
		if err != nil {
			return err
		}
		defer auditStore.Close()
		auditLogger = audit.NewLogger(auditStore, logger.WithComponent("audit"))
	}

	gateway := buildGateway(cfg.Enforcement, logger.WithComponent("enforcement"), m)
	if c, ok := gateway.(enforcement.Closer); ok {
		defer c.Close()
	}

	regOpts := blocklist.Options{
		Store:   blocklist.NewFileStore(cfg.Blocklist.Path, nil),
		Gateway: gateway,
		Logger:  logger.WithComponent("blocklist"),
		Metrics: m,
	}
	if auditLogger != nil {
		regOpts.Auditor = auditLogger
	}
	registry := blocklist.NewRegistry(regOpts)

	handler := session.NewHandler(session.Options{
		Registry:     registry,
		Logger:       logger.WithComponent("session"),
		Metrics:      m,
		MaxLineBytes: cfg.Session.MaxLineBytes,
	})

	addr := net.JoinHostPort(cfg.Listen.Host, strconv.Itoa(cfg.Listen.Port))
	srv := server.New(server.Options{
		Addr:         addr,
		Registry:     registry,
		Handler:      handler,
		Logger:       logger.WithComponent("server"),
		DrainTimeout: cfg.Session.DrainDuration(),
	})

	if err := writePIDFile(cfg.PIDFile); err != nil {
		logger.WithError(err).Warn("Failed to write PID file", "path", cfg.PIDFile)
	} else {
		defer os.Remove(cfg.PIDFile)
	}

	printBanner(logger, cfg, addr, gateway.Name())
	auditLogger.LogSystem(ctx, audit.EventSystemStart, fmt.Sprintf("listen=%s enforcement=%s", addr, gateway.Name()))
	defer auditLogger.LogSystem(context.WithoutCancel(ctx), audit.EventSystemStop, "")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Run(gctx)
	})
	if cfg.Metrics.Enabled {
		status := api.NewServer(api.Options{
			Addr:        cfg.Metrics.Listen,
			Registry:    registry,
			Metrics:     m,
			Audit:       auditReader(auditStore),
			Enforcement: gateway.Name(),
			Logger:      logger.WithComponent("api"),
		})
		g.Go(func() error {
			return status.Run(gctx)
		})
	}

	err = g.Wait()
	logger.Info("Server stopped")
	return err
}

// buildGateway never fails: an enforcement backend that cannot start degrades to Unavailable.
func buildGateway(cfg *config.EnforcementConfig, logger *logging.Logger, m *metrics.Metrics) enforcement.Gateway {
	gateway, err := enforcement.New(cfg, logger)
	if err != nil {
		logger.WithError(err).Warn("Enforcement backend unavailable, blocks will be recorded only", "backend", cfg.Backend)
		return enforcement.Unavailable{Backend: cfg.Backend}
	}

	type counterSource interface {
		Counters() ([]metrics.RuleCounters, error)
	}
	if cs, ok := gateway.(counterSource); ok {
		if err := m.Register(metrics.NewRuleCollector(cs.Counters)); err != nil {
			logger.WithError(err).Warn("Failed to register nftables rule collector")
		}
	}
	return gateway
}

func auditReader(s *audit.Store) api.AuditReader {
	if s == nil {
		return nil
	}
	return s
}

func printBanner(logger *logging.Logger, cfg *config.Config, addr, backend string) {
	logger.Info(brand.VersionString())
	logger.Info("Listening", "addr", addr)
	logger.Info("Command: <MAC>          - Block MAC address")
	logger.Info("Command: UNBLOCK <MAC>  - Unblock MAC address")
	logger.Info("Command: LIST           - Show all blocked MACs")
	logger.Info("Command: CHECK <MAC>    - Check if MAC is blocked")
	logger.Info("Persistent blocklist", "path", cfg.Blocklist.Path)
	logger.Info("Enforcement", "backend", backend)
	if cfg.Metrics.Enabled {
		logger.Info("Status API", "addr", cfg.Metrics.Listen)
	}
	if cfg.Audit.Enabled {
		logger.Info("Audit trail", "path", cfg.Audit.Path)
	}
}
