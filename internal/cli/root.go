package cli

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"facequant/config"
	"facequant/internal/logging"
)

var (
	cfgFile  string
	cfg      *config.Config
	dataDir  string
	logLevel string
	logger   *logrus.Logger
)

var rootCmd = &cobra.Command{
	Use:   "facequant",
	Short: "Face embedding quantization and comparison service",
	Long: `facequant turns face images into compact, noise-tolerant integer
embeddings and decides whether two stored embeddings belong to the same person.

Example usage:
  facequant serve                          # Run the HTTP API
  facequant embed face.jpg                 # Embed one image
  facequant embed --dir ./faces            # Embed a directory as JSON lines
  facequant quantize raw.json              # Quantize a float vector
  facequant compare login.json reg.json    # Compare two stored embeddings`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error

		if dataDir == "" {
			dataDir, err = os.Getwd()
			if err != nil {
				return fmt.Errorf("failed to get working directory: %w", err)
			}
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(dataDir)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		logger, err = logging.New(cfg.Logging)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}

		return nil
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./facequant.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "directory holding config and cache (default is current directory)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")
}

func GetConfig() *config.Config {
	return cfg
}

func GetDataDir() string {
	return dataDir
}
