package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"packwatch/internal/components/telemetry"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool

	cfg Config
	tel telemetry.API
)

var rootCmd = &cobra.Command{
	Use:          "packwatch",
	Short:        "packwatch watches the Gaijin store for new and repriced War Thunder packs.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		telemetry.InitSlog(verbose)
		tel = telemetry.NewMeteredAPI(telemetry.SlogAPI{})

		var err error
		cfg, err = LoadConfig(configPath)
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.json5", "Path to the json5 config file.")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging/instrumentation.")
}

func Execute() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		cancel()
		os.Exit(1)
	}
}
