package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configFile string
	logLevel   string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "contentcache",
		Short:        "Content cache tier tools",
		Long:         "Inspect, clear and reconcile the Redis cache tier in front of the content store",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to config file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.AddCommand(
		reconcileCmd(),
		articleCmd(),
		commentsCmd(),
		userCmd(),
		followingsCmd(),
		clearCmd(),
		serveMetricsCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
