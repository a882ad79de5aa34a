package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store contents and sync state",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== Sync Status ==="))

		items, err := store.LoadItems(ctx, 0)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load items: %v\n", err)
			os.Exit(1)
		}
		groups, err := store.LoadGroups(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load groups: %v\n", err)
			os.Exit(1)
		}

		analyzed, translated := 0, 0
		for _, item := range items {
			if item.Analyzed {
				analyzed++
			}
			if item.Translated() {
				translated++
			}
		}

		fmt.Printf("%s\n", yellow("Store:"))
		fmt.Printf("  Items:      %d (%d analyzed, %d translated)\n", len(items), analyzed, translated)
		fmt.Printf("  Groups:     %d\n", len(groups))
		fmt.Println()

		state, err := store.LoadSyncState(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load sync state: %v\n", err)
			os.Exit(1)
		}

		fmt.Printf("%s\n", yellow("Sync state:"))
		if state == nil {
			fmt.Printf("  %s\n", gray("Never synced (next run fetches everything)"))
			fmt.Println()
			return
		}

		fmt.Printf("  Last sync:  %s (%s ago)\n",
			state.LastSync.Format(time.RFC3339), time.Since(state.LastSync).Round(time.Second))
		if state.LastRunID != "" {
			fmt.Printf("  Last run:   %s\n", gray(state.LastRunID))
		}

		if len(state.Watermarks) > 0 {
			names := make([]string, 0, len(state.Watermarks))
			for name := range state.Watermarks {
				names = append(names, name)
			}
			sort.Strings(names)

			fmt.Printf("  Watermarks:\n")
			for _, name := range names {
				fmt.Printf("    %-30s %s\n", name, gray(state.Watermarks[name].Format(time.RFC3339)))
			}
		}
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
