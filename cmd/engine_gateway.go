/*
Copyright © 2026 SupremeDrip
*/
package cmd

import (
	"github.com/SupremeDrip/cohort-01-faraz-fin-lit/internal/bootstrap"
	"github.com/spf13/cobra"
)

// engineGatewayCmd represents the engineGateway command
var engineGatewayCmd = &cobra.Command{
	Use:   "engine-gateway",
	Short: "Start the Price Feed + Trade Settlement gateway",
	Long: `The engine gateway serves quote lookups for the instrument universe and
executes buy/sell orders. It owns the quote cache, the rate-limited provider
fetch lane, the background price refresher, and the settlement transaction
path against the trading database.`,
	Run: bootstrap.StartEngineGateway,
}

func init() {
	rootCmd.AddCommand(engineGatewayCmd)
}
