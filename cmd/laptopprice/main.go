/*
Command laptopprice runs the Laptop Price Predictor service and talks to a
running instance.

Usage:

	laptopprice serve
	laptopprice predict --company Dell --type Notebook --ram 8 --weight 2.2 --ppi 141.2 \
		--cpu "Intel Core i5" --ssd 256 --gpu Intel --os Windows
	laptopprice history --limit 10
	laptopprice get <prediction-id>
	laptopprice stats
	laptopprice cache clear
	laptopprice cleanup --days 30
	laptopprice health
	laptopprice export --format csv -o predictions.csv
*/
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"laptop-price-predictor/internal/common"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &clientOptions{}

	rootCmd := &cobra.Command{
		Use:           "laptopprice",
		Short:         "Laptop price prediction service",
		Version:       common.ServiceVersion,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	opts.bind(rootCmd)

	cacheCmd := &cobra.Command{Use: "cache", Short: "Manage the server's result cache"}
	cacheCmd.AddCommand(newCacheClearCmd(opts))

	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newPredictCmd(opts))
	rootCmd.AddCommand(newHistoryCmd(opts))
	rootCmd.AddCommand(newGetCmd(opts))
	rootCmd.AddCommand(newStatsCmd(opts))
	rootCmd.AddCommand(newCleanupCmd(opts))
	rootCmd.AddCommand(newHealthCmd(opts))
	rootCmd.AddCommand(newExportCmd())
	rootCmd.AddCommand(cacheCmd)
	return rootCmd
}
