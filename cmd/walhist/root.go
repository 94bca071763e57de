package walhist

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/vasylcode/walhist/internal/config"
	"github.com/vasylcode/walhist/internal/logging"
	"github.com/vasylcode/walhist/internal/storage"
	"github.com/vasylcode/walhist/internal/version"
	"go.uber.org/zap"
)

var (
	configPath string
	dataDir    string

	cfg    *config.Config
	logger = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "walhist",
	Short: "Walhist - wallet transaction history viewer",
	Long: `Walhist keeps the transaction history of a wallet in local JSON files
and shows it as a dated, paginated list, in the terminal or an interactive dashboard.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute executes the root command
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.Version = version.Version

	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default ~/.walhist/config.toml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "Data directory (overrides data_dir from the config)")
}

func initConfig() {
	path := configPath
	if path == "" {
		var err error
		if path, err = config.DefaultPath(); err != nil {
			er(err)
		}
	}

	loaded, err := config.Load(path)
	if err != nil {
		er(fmt.Sprintf("Failed to load config: %v", err))
	}
	if dataDir != "" {
		loaded.DataDir = dataDir
	}
	cfg = loaded

	l, err := logging.New(cfg.Log)
	if err != nil {
		er(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	logger = l
}

// openStorage opens the ledger store of the configured data directory
func openStorage() *storage.Storage {
	s, err := storage.New(cfg.DataDir)
	if err != nil {
		er(fmt.Sprintf("Failed to initialize storage: %v", err))
	}
	return s
}

// logFile returns the log file of the dashboard, which owns the terminal
func logFile() string {
	if cfg.Log.File != "" {
		return cfg.Log.File
	}
	return filepath.Join(cfg.DataDir, "walhist.log")
}

func er(msg interface{}) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", msg)
	os.Exit(1)
}
