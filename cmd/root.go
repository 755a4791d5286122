package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/FabianBoni/Flashloab-arbitrage/utils"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "arbbot",
	Short: "A CLI bot that scans DEX routers and CEX APIs for arbitrage",
	Long: `A CLI arbitrage bot that polls on-chain router contracts and exchange
REST APIs for price discrepancies, computes fee-adjusted round-trip profit
and executes qualifying opportunities via flash loans or exchange orders.`,
}

// ExecuteContext runs the CLI with ctx as the root context for every
// subcommand.
func ExecuteContext(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.json)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
}

func initConfig() {
	utils.InitLogger(debug)
}
