package main

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"netorch/internal/config"
	configfile "netorch/internal/config/file"
)

func newConfigCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or edit the daemon's on-disk configuration",
	}
	cmd.AddCommand(newConfigShowCommand(), newConfigSetPlatformCommand())
	return cmd
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the current configuration as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := configfile.NewStore(configPathFromCmd(cmd))
			cfg, err := store.Load(context.Background())
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg == nil {
				cfg = config.DefaultConfig()
			}
			out, err := json.MarshalIndent(cfg, "", "  ")
			if err != nil {
				return fmt.Errorf("marshal config: %w", err)
			}
			fmt.Println(string(out))
			return nil
		},
	}
}

func newConfigSetPlatformCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "set-platform <platform>",
		Short: "Set the platform identifier used for ECMP capacity divisor matching",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store := configfile.NewStore(configPathFromCmd(cmd))
			cfg, err := store.Load(ctx)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cfg == nil {
				cfg = config.DefaultConfig()
			}
			cfg.Platform = args[0]
			if err := store.Save(ctx, cfg); err != nil {
				return fmt.Errorf("save config: %w", err)
			}
			fmt.Printf("platform set to %q\n", args[0])
			return nil
		},
	}
}
