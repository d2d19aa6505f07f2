// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Finance-LLMs/deep-research/internal/ai"
	"github.com/Finance-LLMs/deep-research/internal/embed"
	"github.com/Finance-LLMs/deep-research/internal/logger"
	"github.com/Finance-LLMs/deep-research/internal/pipeline"
	"github.com/Finance-LLMs/deep-research/internal/provenance"
	"github.com/Finance-LLMs/deep-research/internal/research"
	"github.com/Finance-LLMs/deep-research/internal/search"
	"github.com/Finance-LLMs/deep-research/internal/store"
	"github.com/Finance-LLMs/deep-research/pkg/types"
)

var researchCmd = &cobra.Command{
	Use:   "research [query]",
	Short: "Run a recursive research session",
	Long: `Research expands the query into sub-queries, searches and scrapes the
web for each, filters the retrieved pages (semantic ranking, near-duplicate
removal, freshness), distills them into learnings, and recurses on follow-up
directions with halved breadth until the requested depth is exhausted.

In report mode (the default) the learnings become a detailed Markdown report
with provenance and source listings. In answer mode the output is a short,
exact answer to the query.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().String("query", "", "research question (alternative to the positional argument)")
	researchCmd.Flags().Int("breadth", 4, "number of sub-queries at the root level")
	researchCmd.Flags().Int("depth", 2, "number of recursion levels")
	researchCmd.Flags().String("mode", "report", "output mode: report or answer")
	researchCmd.Flags().String("output", "", "write the result to a file instead of stdout")
	researchCmd.Flags().String("provenance-json", "", "also export provenance records as JSON to this file")
	researchCmd.Flags().Bool("save", false, "persist the run in the local run store")

	researchCmd.Flags().Int("concurrency", 0, "concurrent sub-queries per tree level")
	researchCmd.Flags().Int("search-limit", 0, "search results requested per sub-query")
	researchCmd.Flags().Duration("scrape-delay", 0, "pause before each page scrape")
	researchCmd.Flags().Int("max-learnings", 0, "learnings extracted per sub-query")

	researchCmd.Flags().Float64("dedup-threshold", 0, "cosine similarity above which documents are duplicates")
	researchCmd.Flags().Int("min-year", 0, "oldest acceptable publication year")
	researchCmd.Flags().Bool("skip-ranking", false, "disable the semantic ranking stage")
	researchCmd.Flags().Bool("skip-dedup", false, "disable near-duplicate removal")
	researchCmd.Flags().Bool("skip-freshness", false, "disable freshness filtering")

	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	query, _ := cmd.Flags().GetString("query")
	if query == "" && len(args) > 0 {
		query = args[0]
	}
	if strings.TrimSpace(query) == "" {
		return fmt.Errorf("research question required: pass it as an argument or with --query")
	}

	mode, _ := cmd.Flags().GetString("mode")
	if mode != "report" && mode != "answer" {
		return fmt.Errorf("invalid mode %q: use report or answer", mode)
	}

	breadth, _ := cmd.Flags().GetInt("breadth")
	depth, _ := cmd.Flags().GetInt("depth")

	verbose, _ := cmd.Flags().GetBool("verbose")
	logLevel, _ := cmd.Flags().GetString("log-level")
	log, err := logger.New(verbose, logLevel)
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg := buildConfig(cmd)
	if cfg.AI.APIKey == "" {
		return fmt.Errorf("OpenAI API key required: set DEEP_RESEARCH_OPENAI_API_KEY or .secrets/openai-api-key")
	}
	if cfg.Search.APIKey == "" {
		return fmt.Errorf("Firecrawl API key required: set DEEP_RESEARCH_FIRECRAWL_API_KEY or .secrets/firecrawl-api-key")
	}

	firecrawl := search.NewFirecrawl(cfg.Search)
	engine := &research.Engine{
		AI:        ai.NewOpenAI(cfg.AI),
		Search:    firecrawl,
		Scraper:   firecrawl,
		Processor: pipeline.NewProcessor(embed.NewOpenAI(cfg.Embedding), cfg.Pipeline, log),
		Config:    cfg.Research,
		Logger:    log,
	}

	fmt.Fprintf(os.Stderr, "Researching %q (breadth %d, depth %d)...\n", query, breadth, depth)

	ctx := cmd.Context()
	result, err := engine.Research(ctx, research.Request{
		Query:   query,
		Breadth: breadth,
		Depth:   depth,
		OnProgress: func(p types.ResearchProgress) {
			fmt.Fprintf(os.Stderr, "  depth %d/%d  breadth %d/%d  queries %d/%d  %s\n",
				p.TotalDepth-p.CurrentDepth, p.TotalDepth,
				p.CurrentBreadth, p.TotalBreadth,
				p.CompletedQueries, p.TotalQueries,
				truncateQuery(p.CurrentQuery))
		},
	})
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "Collected %d learnings from %d sources.\n",
		len(result.Learnings), len(result.VisitedURLs))

	var output, report, answer string
	switch mode {
	case "report":
		report, err = engine.WriteReport(ctx, query, result)
		output = report
	case "answer":
		answer, err = engine.WriteAnswer(ctx, query, result)
		output = answer
	}
	if err != nil {
		return err
	}

	if path, _ := cmd.Flags().GetString("provenance-json"); path != "" {
		if err := provenance.ExportJSON(result.Provenance, path); err != nil {
			return err
		}
		fmt.Fprintln(os.Stderr, "Provenance written to", path)
	}

	if save, _ := cmd.Flags().GetBool("save"); save {
		s, err := store.NewStore(cfg.Store)
		if err != nil {
			return err
		}
		defer s.Close()
		id, err := s.SaveRun(store.Run{
			Query:       query,
			Breadth:     breadth,
			Depth:       depth,
			Mode:        mode,
			Report:      report,
			Answer:      answer,
			Learnings:   result.Learnings,
			VisitedURLs: result.VisitedURLs,
			Provenance:  result.Provenance,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Saved as run %d.\n", id)
	}

	if outPath, _ := cmd.Flags().GetString("output"); outPath != "" {
		if err := os.WriteFile(outPath, []byte(output), 0o644); err != nil {
			return fmt.Errorf("writing output file: %w", err)
		}
		fmt.Fprintln(os.Stderr, "Output written to", outPath)
		return nil
	}
	fmt.Println(output)
	return nil
}

// buildConfig assembles the stage configurations from the config file,
// environment, flags, and loaded secrets. Flags win over the config file.
func buildConfig(cmd *cobra.Command) types.Config {
	cfg := types.Config{
		AI: types.AIConfig{
			Model:      stringSetting("ai.model", "gpt-4o-mini"),
			APIKey:     secretDefault("openai-api-key", viper.GetString("openai_api_key")),
			BaseURL:    viper.GetString("ai.base_url"),
			MaxRetries: viper.GetInt("ai.max_retries"),
		},
		Embedding: types.EmbeddingConfig{
			Model:   stringSetting("embedding.model", "text-embedding-3-small"),
			APIKey:  secretDefault("openai-api-key", viper.GetString("openai_api_key")),
			BaseURL: viper.GetString("embedding.base_url"),
		},
		Search: types.SearchConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   durationSetting("search.timeout", 60*time.Second),
				UserAgent: stringSetting("search.user_agent", "deep-research/"+version),
			},
			APIKey:     secretDefault("firecrawl-api-key", viper.GetString("firecrawl_api_key")),
			BaseURL:    viper.GetString("search.base_url"),
			MaxRetries: viper.GetInt("search.max_retries"),
		},
		Pipeline: types.PipelineConfig{
			DedupThreshold: floatFlag(cmd, "dedup-threshold", viper.GetFloat64("pipeline.dedup_threshold")),
			MinYear:        intFlag(cmd, "min-year", viper.GetInt("pipeline.min_year")),
		},
		Research: types.ResearchConfig{
			Concurrency:  intFlag(cmd, "concurrency", viper.GetInt("research.concurrency")),
			SearchLimit:  intFlag(cmd, "search-limit", viper.GetInt("research.search_limit")),
			ScrapeDelay:  durationFlag(cmd, "scrape-delay", viper.GetDuration("research.scrape_delay")),
			MaxLearnings: intFlag(cmd, "max-learnings", viper.GetInt("research.max_learnings")),
			ContentLimit: viper.GetInt("research.content_limit"),
		},
		Store: types.StoreConfig{
			Path: viper.GetString("store.path"),
		},
	}

	cfg.Pipeline.SkipRanking, _ = cmd.Flags().GetBool("skip-ranking")
	cfg.Pipeline.SkipDedup, _ = cmd.Flags().GetBool("skip-dedup")
	cfg.Pipeline.SkipFreshness, _ = cmd.Flags().GetBool("skip-freshness")
	return cfg
}

func stringSetting(key, fallback string) string {
	if v := viper.GetString(key); v != "" {
		return v
	}
	return fallback
}

func durationSetting(key string, fallback time.Duration) time.Duration {
	if v := viper.GetDuration(key); v > 0 {
		return v
	}
	return fallback
}

func intFlag(cmd *cobra.Command, name string, fallback int) int {
	if v, _ := cmd.Flags().GetInt(name); v > 0 {
		return v
	}
	return fallback
}

func floatFlag(cmd *cobra.Command, name string, fallback float64) float64 {
	if v, _ := cmd.Flags().GetFloat64(name); v > 0 {
		return v
	}
	return fallback
}

func durationFlag(cmd *cobra.Command, name string, fallback time.Duration) time.Duration {
	if v, _ := cmd.Flags().GetDuration(name); v > 0 {
		return v
	}
	return fallback
}

func truncateQuery(q string) string {
	if len(q) <= 60 {
		return q
	}
	cut := 57
	for cut > 0 && !utf8.RuneStart(q[cut]) {
		cut--
	}
	return q[:cut] + "..."
}
