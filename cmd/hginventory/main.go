package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/gridfed/hginventory/internal/config"
	"github.com/gridfed/hginventory/internal/logging"
)

var (
	// Global flags
	configPath string
	logLevel   string

	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "hginventory",
	Short: "Federated inventory router",
	Long: `hginventory serves user inventories for a grid.

Users that live on this grid are served from the local store. Visitors from
other grids are routed to their home inventory service, with endpoint
resolution, connectors and remote reads cached per user.`,
	SilenceUsage: true,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Override log level (DEBUG, INFO, WARN, ERROR)")

	diagCmd.Flags().IntVar(&probeOps, "probe", 0, "Run N synthetic operations through the monitor before printing")
	diagCmd.Flags().IntVar(&probeWorkers, "workers", 4, "Concurrent workers for --probe")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(checkConfigCmd)
	rootCmd.AddCommand(diagCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig assembles defaults, the optional config file and HGINV_*
// variables, then validates the result
func loadConfig() (*config.Configuration, error) {
	cfg := config.NewDefault()
	if configPath != "" {
		if err := cfg.LoadFromFile(configPath); err != nil {
			return nil, err
		}
	}
	if err := cfg.LoadFromEnv(); err != nil {
		return nil, err
	}
	if logLevel != "" {
		cfg.Global.LogLevel = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func initLogger(cfg *config.Configuration) error {
	l, err := logging.New(cfg.Global.LogLevel, cfg.Global.LogFormat)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger = l
	return nil
}
