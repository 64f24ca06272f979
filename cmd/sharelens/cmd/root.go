package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/abramin/sharelens/internal/config"
	"github.com/abramin/sharelens/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile    string
	envFile    string
	logLevel   string
	projectDir string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "sharelens",
	Short: "sharelens - Decide which server types a client mirror must generate",
	Long: `sharelens loads a server and a client program image and classifies every
exported server type, property, method and constructor as:

  not_shared           the client needs a generated counterpart
  shared_by_source     compiled into the client from a shared source file
  shared_by_reference  already reachable from the client image

Passes, shared files and symbol providers are read from sharelens.yaml.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(projectDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if envFile == "" {
			envFile = filepath.Join(projectDir, ".env")
		}
		if err := cfg.ApplyEnv(envFile); err != nil {
			return fmt.Errorf("failed to load environment: %w", err)
		}
		if logLevel != "" {
			cfg.LogLevel = logLevel
		}

		logger, err = logging.New(cfg.LogLevel)
		if err != nil {
			return fmt.Errorf("failed to build logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <project>/sharelens.yaml)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file with SHARELENS_* overrides (default is <project>/.env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVarP(&projectDir, "project", "C", ".", "project directory relative paths are resolved against")
}

func GetConfig() *config.Config {
	return cfg
}

func GetLogger() *zap.Logger {
	return logger
}
