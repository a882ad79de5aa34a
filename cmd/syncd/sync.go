package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/grumblehq/syncd/internal/ai"
	"github.com/grumblehq/syncd/internal/config"
	"github.com/grumblehq/syncd/internal/sources"
	syncpkg "github.com/grumblehq/syncd/internal/sync"
	"github.com/grumblehq/syncd/internal/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run one sync cycle",
	Long: `Fetch new feedback from every enabled source, classify and translate it,
recluster the full analyzed set, and persist updated watermarks.

Source and AI batch failures degrade the cycle but do not abort it;
store failures and missing credentials do.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		orchestrator, err := buildOrchestrator()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		gray := color.New(color.FgHiBlack).SprintFunc()
		orchestrator.OnProgress(func(stage string, processed, total int) {
			fmt.Printf("  %s\n", gray(fmt.Sprintf("%s: %d/%d", stage, processed, total)))
		})

		result, err := orchestrator.Sync(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
			os.Exit(1)
		}

		printResult(result)
		if result.Degraded() {
			os.Exit(2)
		}
	},
}

func buildOrchestrator() (*syncpkg.Orchestrator, error) {
	aiClient, err := ai.NewClient(&ai.Config{Model: cfg.Analysis.Model})
	if err != nil {
		return nil, err
	}

	collectors, err := buildCollectors(cfg)
	if err != nil {
		return nil, err
	}
	if len(collectors) == 0 {
		return nil, fmt.Errorf("no sources enabled (check the config file)")
	}

	return syncpkg.New(store, aiClient, collectors, cfg), nil
}

func buildCollectors(cfg *config.Config) ([]sources.Collector, error) {
	var collectors []sources.Collector

	if cfg.Sources.GitHub.Enabled {
		token := os.Getenv(config.EnvGitHubToken)
		for _, repo := range cfg.Sources.GitHub.Repos {
			c, err := sources.NewGitHubCollector(repo, token)
			if err != nil {
				return nil, err
			}
			collectors = append(collectors, c)
		}
	}
	if cfg.Sources.Discourse.Enabled {
		for _, forum := range cfg.Sources.Discourse.Forums {
			c, err := sources.NewDiscourseCollector(forum)
			if err != nil {
				return nil, err
			}
			collectors = append(collectors, c)
		}
	}
	if cfg.Sources.Twitter.Enabled {
		c, err := sources.NewTwitterCollector(cfg.Sources.Twitter.Keywords, os.Getenv(config.EnvTwitterBearer))
		if err != nil {
			return nil, err
		}
		collectors = append(collectors, c)
	}
	return collectors, nil
}

func printResult(result *types.SyncResult) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()

	mark := green("✓")
	if result.Degraded() {
		mark = yellow("⚠")
	}
	fmt.Printf("\n%s Sync %s finished in %s\n\n", mark, cyan(result.RunID), result.Duration.Round(time.Millisecond))
	fmt.Printf("  Fetched:    %d (%d new, %d total)\n", result.ItemsFetched, result.NewItems, result.TotalItems)
	fmt.Printf("  Analyzed:   %d\n", result.ItemsAnalyzed)
	fmt.Printf("  Translated: %d\n", result.ItemsTranslated)
	fmt.Printf("  Groups:     %d\n", result.Groups)

	if len(result.FailedSources) > 0 {
		fmt.Printf("  %s\n", yellow(fmt.Sprintf("Failed sources: %s", strings.Join(result.FailedSources, ", "))))
	}
	if result.ClassificationBatchFailures > 0 || result.GroupingBatchFailures > 0 || result.TranslationBatchFailures > 0 {
		fmt.Printf("  %s\n", yellow(fmt.Sprintf("Batch failures: %d classify, %d group, %d translate",
			result.ClassificationBatchFailures, result.GroupingBatchFailures, result.TranslationBatchFailures)))
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
