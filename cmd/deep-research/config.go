// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.yaml.in/yaml/v3"

	"github.com/Finance-LLMs/deep-research/pkg/types"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect and scaffold configuration",
	Long: `Config works with the deep-research.yaml configuration file. Use
"config init" to write a starter file with the default settings, and
"config show" to print the settings a run would use after merging the
config file, environment, and flags.`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter deep-research.yaml with default settings",
	RunE:  runConfigInit,
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path, _ := cmd.Flags().GetString("file")
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}

	data, err := yaml.Marshal(defaultConfig())
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	fmt.Fprintln(os.Stderr, "Wrote", path)
	return nil
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	RunE:  runConfigShow,
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg := buildConfig(cmd)
	// Keys never belong in output.
	cfg.AI.APIKey = redact(cfg.AI.APIKey)
	cfg.Embedding.APIKey = redact(cfg.Embedding.APIKey)
	cfg.Search.APIKey = redact(cfg.Search.APIKey)

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	fmt.Print(string(data))
	return nil
}

func redact(key string) string {
	if key == "" {
		return ""
	}
	return "(set)"
}

// defaultConfig returns the settings a run uses when nothing is configured.
func defaultConfig() types.Config {
	return types.Config{
		AI: types.AIConfig{
			Model:      "gpt-4o-mini",
			MaxRetries: 3,
		},
		Embedding: types.EmbeddingConfig{
			Model: "text-embedding-3-small",
		},
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   60 * time.Second,
				UserAgent: "deep-research/" + version,
			},
			MaxRetries: 5,
		},
		Pipeline: types.PipelineConfig{
			DedupThreshold: 0.9,
			MinYear:        2020,
		},
		Research: types.ResearchConfig{
			Concurrency:  2,
			SearchLimit:  5,
			ScrapeDelay:  time.Second,
			MaxLearnings: 3,
			ContentLimit: 25000,
		},
		Store: types.StoreConfig{
			Path: "research/runs.db",
		},
	}
}

func init() {
	configInitCmd.Flags().String("file", "deep-research.yaml", "path of the config file to write")
	configCmd.AddCommand(configInitCmd, configShowCmd)
	rootCmd.AddCommand(configCmd)
}
