// main.go
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

var (
	configPath string

	rootCmd = &cobra.Command{
		Use:           "flightdeals",
		Short:         "Scans strategic flight routes for price drops and alerts interested users",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run the scan scheduler and the admin HTTP server",
		RunE:  runServe,
	}

	scanTier      int
	scanMaxRoutes int
	scanCmd       = &cobra.Command{
		Use:   "scan",
		Short: "Force one scan of a tier (or every tier) and print the reports",
		RunE:  runScan,
	}

	budgetCmd = &cobra.Command{
		Use:   "budget",
		Short: "Print the call budget usage for the current month and day",
		RunE:  runBudget,
	}

	userEmail    string
	userSegment  string
	userAirports string
	userCmd      = &cobra.Command{
		Use:   "add-user",
		Short: "Add or update a user in the directory",
		RunE:  runAddUser,
	}
)

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml (default: config/config.yaml)")

	scanCmd.Flags().IntVar(&scanTier, "tier", 0, "tier to scan (0 scans every tier)")
	scanCmd.Flags().IntVar(&scanMaxRoutes, "max-routes", 0, "scan at most this many routes per tier")

	userCmd.Flags().StringVar(&userEmail, "email", "", "user email")
	userCmd.Flags().StringVar(&userSegment, "segment", "free", "free, premium or enterprise")
	userCmd.Flags().StringVar(&userAirports, "airports", "", "comma separated preferred departure airports")
	_ = userCmd.MarkFlagRequired("email")

	rootCmd.AddCommand(serveCmd, scanCmd, budgetCmd, userCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
