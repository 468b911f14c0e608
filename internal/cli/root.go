package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"ragchat/config"
)

var (
	cfgFile  string
	cfg      *config.Config
	dataDir  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "ragchat",
	Short: "Knowledge base for retrieval-augmented chat",
	Long: `ragchat indexes txt and docx documents into a local knowledge base using
embeddings from an Ollama server, and retrieves the chunks most similar to a
query for use as chat context.

Example usage:
  ragchat index ./docs                    # Index a directory
  ragchat search -q "refund policy"       # Search the knowledge base
  ragchat serve --port 5000               # Serve the HTTP API`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to get working directory: %w", err)
		}

		if cfgFile != "" {
			cfg, err = config.Load(cfgFile)
		} else {
			cfg, err = config.LoadFromDir(wd)
		}
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		cfg.ApplyEnv()
		if logLevel != "" {
			cfg.Logging.Level = logLevel
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}

		if dataDir == "" {
			dataDir = config.DataDir(wd)
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./ragchat.yaml)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "knowledge base directory (default is ./.ragchat)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")
}

func GetConfig() *config.Config {
	return cfg
}

func GetDataDir() string {
	return dataDir
}
