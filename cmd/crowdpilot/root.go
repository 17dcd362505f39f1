package main

import (
	"fmt"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"crowdpilot/internal/agent"
	"crowdpilot/internal/audience"
	"crowdpilot/internal/config"
	"crowdpilot/internal/metrics"
	"crowdpilot/internal/perception"
)

var (
	configPath string
	verbose    bool

	cfg    *config.Config
	logger *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:   "crowdpilot",
	Short: "Conversational audience targeting for marketing campaigns",
	Long: `crowdpilot turns free-form marketing requests into filtered customer
audiences and projected campaign metrics through a multi-turn dialogue.

Run "crowdpilot serve" to expose the HTTP API, or "crowdpilot chat" for
an interactive session in the terminal.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// .env is optional; real env vars win either way.
		_ = godotenv.Load()

		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if verbose {
			cfg.Logging.Level = "debug"
		}

		logger, err = config.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "crowdpilot.yaml", "path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
}

// buildEngine assembles the engine from the loaded configuration.
func buildEngine() (*agent.Engine, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("no API key configured: set GEMINI_API_KEY or llm.api_key")
	}

	client := perception.NewGeminiClientWithConfig(perception.GeminiConfig{
		APIKey:          cfg.LLM.APIKey,
		BaseURL:         cfg.LLM.BaseURL,
		Model:           cfg.LLM.Model,
		Timeout:         cfg.LLM.Timeout,
		MaxOutputTokens: cfg.LLM.MaxOutputTokens,
		Temperature:     cfg.LLM.Temperature,
	}, logger)

	population := audience.SamplePopulation()
	if cfg.Campaign.PopulationPath != "" {
		loaded, err := audience.LoadPopulation(cfg.Campaign.PopulationPath)
		if err != nil {
			return nil, fmt.Errorf("load population: %w", err)
		}
		population = loaded
		logger.Info("population loaded",
			zap.String("path", cfg.Campaign.PopulationPath),
			zap.Int("records", len(population)))
	}

	return agent.NewEngine(agent.Config{
		Client:     client,
		Population: population,
		Calculator: metrics.NewCalculator(cfg.Campaign.Cost, cfg.Campaign.TotalSize),
		Logger:     logger,
	}), nil
}
