// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Finance-LLMs/deep-research/internal/store"
	"github.com/Finance-LLMs/deep-research/pkg/types"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect saved research runs",
	Long: `Runs lists and inspects research sessions saved with --save. The run
store is a local SQLite database holding each run's report, learnings,
visited sources, and provenance records.`,
}

// --- list subcommand ---

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List saved runs, newest first",
	RunE:  runRunsList,
}

func runRunsList(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	summaries, err := s.ListRuns()
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(summaries)
	}

	if len(summaries) == 0 {
		fmt.Println("No saved runs.")
		return nil
	}

	fmt.Fprintf(os.Stdout, "%-4s  %-19s  %-7s  %-50s  %s\n",
		"ID", "Created", "Mode", "Query", "Learnings")
	fmt.Fprintln(os.Stdout, strings.Repeat("-", 95))
	for _, rs := range summaries {
		query := rs.Query
		if len(query) > 50 {
			cut := 47
			for cut > 0 && !utf8.RuneStart(query[cut]) {
				cut--
			}
			query = query[:cut] + "..."
		}
		fmt.Fprintf(os.Stdout, "%-4d  %-19s  %-7s  %-50s  %d\n",
			rs.ID, rs.CreatedAt.Format("2006-01-02 15:04:05"), rs.Mode, query, rs.Learnings)
	}
	return nil
}

// --- show subcommand ---

var runsShowCmd = &cobra.Command{
	Use:   "show [id]",
	Short: "Show one saved run in full",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return fmt.Errorf("invalid run id %q", args[0])
	}

	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	run, err := s.GetRun(id)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(run)
	}

	fmt.Printf("Run %d: %s\n", run.ID, run.Query)
	fmt.Printf("Created: %s  Mode: %s  Breadth: %d  Depth: %d\n\n",
		run.CreatedAt.Format("2006-01-02 15:04:05"), run.Mode, run.Breadth, run.Depth)

	switch run.Mode {
	case "answer":
		fmt.Println("Answer:", run.Answer)
	default:
		fmt.Println(run.Report)
	}

	if len(run.Learnings) > 0 {
		fmt.Println("\nLearnings:")
		for i, l := range run.Learnings {
			fmt.Printf("  %d. %s\n", i+1, l)
		}
	}
	return nil
}

// --- search subcommand ---

var runsSearchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Full-text search across all saved learnings",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsSearch,
}

func runRunsSearch(cmd *cobra.Command, args []string) error {
	s, err := openStore()
	if err != nil {
		return err
	}
	defer s.Close()

	limit, _ := cmd.Flags().GetInt("max-results")
	hits, err := s.SearchLearnings(args[0], limit)
	if err != nil {
		return err
	}
	if jsonOutput, _ := cmd.Flags().GetBool("json"); jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}

	if len(hits) == 0 {
		fmt.Println("No matching learnings.")
		return nil
	}
	for _, h := range hits {
		fmt.Printf("run %d (%s)\n  %s\n", h.RunID, h.RunQuery, h.Learning)
	}
	return nil
}

func openStore() (*store.Store, error) {
	return store.NewStore(types.StoreConfig{Path: viper.GetString("store.path")})
}

func init() {
	runsListCmd.Flags().Bool("json", false, "output as JSON")
	runsShowCmd.Flags().Bool("json", false, "output as JSON")
	runsSearchCmd.Flags().Bool("json", false, "output as JSON")
	runsSearchCmd.Flags().Int("max-results", 20, "maximum number of matches to return")

	runsCmd.AddCommand(runsListCmd, runsShowCmd, runsSearchCmd)
	rootCmd.AddCommand(runsCmd)
}
