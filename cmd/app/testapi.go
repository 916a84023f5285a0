package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"StockPulse/internal/di"
	"StockPulse/internal/domain/models"
)

var (
	apiURL     string
	apiKey     string
	apiModel   string
	apiTimeout int
)

var testAPICmd = &cobra.Command{
	Use:   "test-api",
	Short: "Check an OpenAI-compatible narrative endpoint",
	Args:  cobra.NoArgs,
	RunE:  runTestAPI,
}

func init() {
	testAPICmd.Flags().StringVar(&apiURL, "url", "", "API base URL (defaults to narrative.api_url)")
	testAPICmd.Flags().StringVar(&apiKey, "key", "", "API key (defaults to narrative.api_key)")
	testAPICmd.Flags().StringVar(&apiModel, "model", "deepseek/deepseek-chat", "model name")
	testAPICmd.Flags().IntVar(&apiTimeout, "timeout", 10, "timeout in seconds")
}

func runTestAPI(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(true)
	if err != nil {
		return err
	}
	if apiURL == "" {
		apiURL = cfg.Narrative.APIURL
	}
	if apiKey == "" {
		apiKey = cfg.Narrative.APIKey
	}
	if apiURL == "" || apiKey == "" {
		return fmt.Errorf("api url and key are required")
	}

	tk, err := di.InitializeToolkit(cfg)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}
	res := tk.Prober.Probe(cmd.Context(), models.TestAPIRequest{
		APIURL:     apiURL,
		APIKey:     apiKey,
		APIModel:   apiModel,
		APITimeout: apiTimeout,
	})
	if err := json.NewEncoder(cmd.OutOrStdout()).Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("api connection test failed")
	}
	return nil
}
