package main

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"roster-service/internal/app"
	"roster-service/internal/config"
)

var (
	rosterTeam string
	rosterDate string
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Print a team's roster for a day",
	RunE: func(cmd *cobra.Command, args []string) error {
		date := app.DateOf(time.Now())
		if rosterDate != "" {
			d, err := app.ParseDate(rosterDate)
			if err != nil {
				return err
			}
			date = d
		}

		ctx := context.Background()
		return withApp(ctx, func(a *app.App, _ *config.Config) error {
			ro, err := a.RosterFor(ctx, rosterTeam, date)
			if err != nil {
				return err
			}

			cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
			fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("=== %s on %s ===", ro.Team, ro.Date)))
			printBucket(color.New(color.FgGreen), "Working from office", "No one is working from office", ro.Onsite)
			printBucket(color.New(color.FgYellow), "Working from home", "No one is working from home", ro.Remote)
			printBucket(color.New(color.FgRed), "On leave or floating", "No one is on leave or floating", ro.Unavailable)
			return nil
		})
	},
}

func printBucket(c *color.Color, title, empty string, ids []app.Identity) {
	c.Printf("%s:\n", title)
	if len(ids) == 0 {
		gray := color.New(color.FgHiBlack).SprintFunc()
		fmt.Printf("  %s\n\n", gray(empty))
		return
	}
	for _, id := range ids {
		fmt.Printf("  %s\n", id.Username)
	}
	fmt.Println()
}

func init() {
	rosterCmd.Flags().StringVar(&rosterTeam, "team", "", "team name")
	rosterCmd.Flags().StringVar(&rosterDate, "date", "", "day as YYYY-MM-DD (default today)")
	_ = rosterCmd.MarkFlagRequired("team")
	rootCmd.AddCommand(rosterCmd)
}
