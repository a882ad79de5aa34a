package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var purgeForce bool

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete all items, groups, and sync state",
	Long: `Wipe the store completely. The next sync refetches every source from
the beginning and reanalyzes everything, so this is also the way to
recover from a corrupted analysis state.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		if !purgeForce {
			fmt.Printf("This deletes all stored feedback and sync state. Type 'yes' to continue: ")
			reader := bufio.NewReader(os.Stdin)
			answer, _ := reader.ReadString('\n')
			if strings.TrimSpace(answer) != "yes" {
				fmt.Println("Aborted.")
				return
			}
		}

		if err := store.ClearAll(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: purge failed: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		fmt.Printf("%s Store purged\n", green("✓"))
	},
}

func init() {
	purgeCmd.Flags().BoolVarP(&purgeForce, "force", "f", false, "skip the confirmation prompt")
	rootCmd.AddCommand(purgeCmd)
}
