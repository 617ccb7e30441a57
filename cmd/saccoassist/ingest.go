package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/xhad/saccoassist/pkg/ingest"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest <files...>",
	Short: "Extract, store and index documents",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		a, err := newApp(ctx, cfg, interactiveLogger(logger))
		if err != nil {
			return err
		}
		defer a.Close()

		color.Blue("\nIngesting %d file(s)\n", len(args))
		bar := getProgressBar(len(args), "Processing documents...")

		var results []*ingest.UploadResult
		var failed int
		for _, path := range args {
			bar.Describe(color.BlueString("Processing %s", filepath.Base(path)))

			data, err := os.ReadFile(path)
			if err != nil {
				failed++
				color.Red("\n✗ %s: %v", path, err)
				_ = bar.Add(1)
				continue
			}

			res, err := a.ingest.Upload(ctx, ingest.Upload{
				FileName: filepath.Base(path),
				MimeType: mime.TypeByExtension(filepath.Ext(path)),
				Data:     data,
			})
			if err != nil {
				failed++
				color.Red("\n✗ %s: %v", path, err)
			} else {
				results = append(results, res)
			}
			_ = bar.Add(1)
		}
		_ = bar.Finish()
		fmt.Println()

		for _, res := range results {
			if res.Processed {
				color.Green("✓ %s (%s): %d chunks", res.FileName, res.FileID, res.Chunks)
			} else {
				color.Yellow("! %s (%s): stored without readable text", res.FileName, res.FileID)
			}
		}
		if failed > 0 {
			return fmt.Errorf("%d of %d files failed", failed, len(args))
		}
		return nil
	},
}
