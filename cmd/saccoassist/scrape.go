package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/saccoassist/pkg/scraper"
)

var scrapePrint bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape [url]",
	Short: "Fetch the website once and show the snapshot",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newScraper(cfg, interactiveLogger(logger))
		if err != nil {
			return err
		}
		cache := scraper.NewCache(s, interactiveLogger(logger))

		var url string
		if len(args) == 1 {
			url = args[0]
		}

		var res scraper.RefreshResult
		withSpinner(" Fetching website...", func() {
			res = cache.Refresh(cmd.Context(), url)
		})
		if !res.Success {
			return fmt.Errorf("%s", res.Message)
		}

		color.Green("✓ %s", res.Message)
		status := cache.Status()
		color.Blue("%d characters of content", status.ContentLength)

		if scrapePrint {
			fmt.Println()
			fmt.Println(cache.Snapshot(scraper.DefaultSnapshotLength))
		}
		return nil
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapePrint, "print", false, "print the bounded snapshot used as chat context")
}
