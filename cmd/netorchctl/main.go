// Command netorchctl is the operator CLI for netorchd: it inspects and
// edits the on-disk daemon config, and offers a direct read-only debug
// view of ROUTE_TABLE through its own connection to the Redis datastore
// the daemon subscribes to.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"netorch/internal/logging"
)

var version = "dev"

func main() {
	logger := logging.Discard()

	rootCmd := &cobra.Command{
		Use:   "netorchctl",
		Short: "Operator CLI for the netorchd reconciliation daemon",
	}
	rootCmd.PersistentFlags().String("config", "/etc/netorchd/config.json", "path to the daemon config file")

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version)
		},
	}

	rootCmd.AddCommand(newConfigCommand(), newRouteCommand(logger), versionCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func configPathFromCmd(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	return path
}
