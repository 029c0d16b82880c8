package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/netip"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"netorch/internal/config"
	configfile "netorch/internal/config/file"
	"netorch/internal/netmodel"
	"netorch/internal/routeorch"
	"netorch/internal/statedb"
)

func newRouteCommand(logger *slog.Logger) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "route",
		Short: "Debug ROUTE_TABLE contents via a direct Redis read",
	}
	cmd.AddCommand(newRouteListCommand(logger), newRouteLPMCommand(logger))
	return cmd
}

func newRouteListCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List every ROUTE_TABLE prefix currently in the datastore",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			synced, err := loadSyncedRoutes(ctx, configPathFromCmd(cmd), logger)
			if err != nil {
				return err
			}
			synced.All(func(p netmodel.IpPrefix, ips netmodel.IpAddresses) bool {
				fmt.Printf("%-20s -> %s\n", p, ips)
				return true
			})
			return nil
		},
	}
}

func newRouteLPMCommand(logger *slog.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "lpm <ip>",
		Short: "Print the longest-prefix-match route for an IP address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := netip.ParseAddr(args[0])
			if err != nil {
				return fmt.Errorf("parse address %q: %w", args[0], err)
			}

			ctx := context.Background()
			synced, err := loadSyncedRoutes(ctx, configPathFromCmd(cmd), logger)
			if err != nil {
				return err
			}

			ips, ok := synced.Lookup(addr)
			if !ok {
				fmt.Println("no matching route")
				return nil
			}
			fmt.Printf("%s\n", ips)
			return nil
		},
	}
}

// loadSyncedRoutes reads the daemon's ROUTE_TABLE directly from Redis
// (bypassing the subscription path) and replays it into a fresh
// routeorch.SyncedRoutes for one-shot debug queries. It does not
// observe the live daemon's in-memory state — only what the datastore
// holds at the moment of the read.
func loadSyncedRoutes(ctx context.Context, configPath string, logger *slog.Logger) (*routeorch.SyncedRoutes, error) {
	store := configfile.NewStore(configPath)
	cfg, err := store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if cfg == nil {
		cfg = config.DefaultConfig()
	}

	client := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, DB: cfg.Redis.DB})
	defer client.Close()

	prefix := statedb.RouteTable + statedb.AppDBSeparator
	var synced routeorch.SyncedRoutes

	var cursor uint64
	for {
		keys, next, err := client.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", statedb.RouteTable, err)
		}
		for _, key := range keys {
			rowKey := key[len(prefix):]
			if rowKey == statedb.ResyncKey {
				continue
			}
			fields, err := client.HGetAll(ctx, key).Result()
			if err != nil {
				logger.Warn("read route row failed", "key", key, "error", err)
				continue
			}
			p, err := netmodel.ParsePrefix(rowKey)
			if err != nil {
				continue
			}
			ips, err := netmodel.ParseIpAddresses(fields[statedb.FieldNextHop])
			if err != nil {
				continue
			}
			synced.Set(p, ips)
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}

	return &synced, nil
}
