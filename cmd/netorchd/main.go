// Command netorchd runs the route/next-hop reconciliation daemon.
//
// Logging:
//   - Base logger is created here with output format and level
//   - Logger is passed to all components via dependency injection
//   - No global slog configuration (no slog.SetDefault)
//   - Components scope loggers with their own attributes
package main

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"netorch/internal/bulker"
	"netorch/internal/config"
	configfile "netorch/internal/config/file"
	"netorch/internal/core"
	"netorch/internal/housekeeping"
	"netorch/internal/hwapi"
	"netorch/internal/hwapi/grpcclient"
	"netorch/internal/logging"
	"netorch/internal/lpmobserve"
	"netorch/internal/neighbor"
	"netorch/internal/nhgroup"
	"netorch/internal/routeorch"
	"netorch/internal/statedb"
	"netorch/internal/statedb/rdb"
)

var version = "dev"

func main() {
	baseHandler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelDebug, // filtering is done by ComponentFilterHandler
	})
	filterHandler := logging.NewComponentFilterHandler(baseHandler, slog.LevelInfo)
	logger := slog.New(filterHandler)

	rootCmd := &cobra.Command{
		Use:   "netorchd",
		Short: "Route and next-hop-group reconciliation daemon",
	}
	rootCmd.PersistentFlags().String("config", "/etc/netorchd/config.json", "path to the daemon config file")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Start the reconciliation daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			return run(ctx, logger, configPath)
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(runCmd, versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, configPath string) error {
	store := configfile.NewStore(configPath)
	watcher, err := configfile.NewWatcher(ctx, store, logger)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	defer watcher.Close()
	cfg := watcher.Current()

	logger.Info("loaded config", "redis", cfg.Redis.Addr, "hwapi", cfg.HardwareAPI.Addr, "tables", len(cfg.Tables))

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("connect to redis %s: %w", cfg.Redis.Addr, err)
	}

	hw, err := grpcclient.Dial(cfg.HardwareAPI.Addr)
	if err != nil {
		return fmt.Errorf("connect to hardware shim %s: %w", cfg.HardwareAPI.Addr, err)
	}
	defer hw.Close()

	tables, closeTables, err := openTables(ctx, redisClient, cfg, logger)
	if err != nil {
		return err
	}
	defer closeTables()

	neighTable := neighbor.NewInMemoryTable()
	neighSrc, ok := tables[statedb.NeighTable]
	if !ok {
		return fmt.Errorf("config: table list has no %s entry; neighbor resolution requires it", statedb.NeighTable)
	}
	neighOrch := neighbor.NewOrchestrator(neighTable, neighSrc, logger)

	platform := cfg.Platform
	if platform == "" {
		platform = os.Getenv("platform")
	}
	nhgroupCfg := nhgroup.Config{
		Platform:                  platform,
		GroupSizeDivisorPlatforms: cfg.GroupSizeDivisorPlatforms,
	}
	pool := nhgroup.New(ctx, hw, neighTable, nhgroupCfg, logger)

	blk := bulker.New(hw, logger)
	observers := lpmobserve.New()

	routeSrc, ok := tables[statedb.RouteTable]
	if !ok {
		return fmt.Errorf("config: table list has no %s entry; route reconciliation requires it", statedb.RouteTable)
	}
	routeCfg := routeorch.Config{ManagementInterfaces: cfg.ManagementInterfaces}
	reconciler, err := routeorch.New(ctx, hw, pool, blk, observers, neighTable, routeSrc, routeCfg, rand.New(rand.NewSource(time.Now().UnixNano())), logger)
	if err != nil {
		return fmt.Errorf("install default routes: %w", err)
	}

	housekeep, err := housekeeping.New(logger)
	if err != nil {
		return fmt.Errorf("start housekeeping scheduler: %w", err)
	}
	defer housekeep.Stop()
	if err := housekeep.RegisterCapacityRecheck(hw, nhgroupCfg, pool, 5*time.Minute); err != nil {
		return fmt.Errorf("register capacity recheck: %w", err)
	}
	if err := housekeep.RegisterCounterPoll(hw, []string{hwapi.AttrNumberOfECMPGroups}, time.Minute, func(samples []housekeeping.CounterSample) {
		for _, s := range samples {
			if s.Err != nil {
				logger.Warn("counter poll failed", "name", s.Name, "error", s.Err)
				continue
			}
			logger.Debug("counter sample", "name", s.Name, "value", s.Value)
		}
	}); err != nil {
		return fmt.Errorf("register counter poll: %w", err)
	}

	pollTimeout := time.Duration(cfg.PollTimeoutMillis) * time.Millisecond
	if pollTimeout <= 0 {
		pollTimeout = time.Second
	}
	loop := core.NewEventLoop(pollTimeout, hw, logger)
	loop.Register(statedb.NeighTable, neighSrc, core.ExecutorFunc(func(ctx context.Context) error {
		return neighOrch.Consumer().Execute(ctx, neighOrch.Process)
	}))
	loop.Register(statedb.RouteTable, routeSrc, core.ExecutorFunc(func(ctx context.Context) error {
		return reconciler.Consumer().Execute(ctx, reconciler.Process)
	}))
	loop.Register("housekeeping", housekeep, housekeep)
	loop.RegisterOrchestrator(neighOrch)
	loop.RegisterOrchestrator(reconciler)

	logger.Info("starting event loop")
	if err := loop.Run(ctx); err != nil {
		return fmt.Errorf("event loop: %w", err)
	}
	logger.Info("shutdown complete")
	return nil
}

// openTables builds an rdb.Table for every entry in cfg.Tables, keyed
// by table name. The returned closer stops every table's subscription
// goroutine.
func openTables(ctx context.Context, client *redis.Client, cfg *config.Config, logger *slog.Logger) (map[string]statedb.Table, func(), error) {
	tables := make(map[string]statedb.Table, len(cfg.Tables))
	var opened []*rdb.Table

	closeAll := func() {
		for _, t := range opened {
			_ = t.Close()
		}
	}

	for _, tc := range cfg.Tables {
		t, err := rdb.New(ctx, client, cfg.Redis.DB, tc.Name, tc.Priority, logger)
		if err != nil {
			closeAll()
			return nil, nil, fmt.Errorf("subscribe to %s: %w", tc.Name, err)
		}
		opened = append(opened, t)
		tables[tc.Name] = t
	}

	return tables, closeAll, nil
}
