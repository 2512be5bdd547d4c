package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nishanttri/code-graph/internal/mcplog"
)

func newLogsCmd() *cobra.Command {
	var date string
	var tailN int
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "logs <list|summary|tail|clear|path>",
		Short: "Inspect the tool-server request logs",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			logger := mcplog.FromEnv()
			switch args[0] {
			case "list":
				dates, err := logger.ListDates()
				if err != nil {
					return err
				}
				if asJSON {
					return json.NewEncoder(os.Stdout).Encode(dates)
				}
				for _, d := range dates {
					fmt.Println(d)
				}
				return nil

			case "summary":
				summary, err := logger.Summarise(date)
				if err != nil {
					return err
				}
				if asJSON {
					enc := json.NewEncoder(os.Stdout)
					enc.SetIndent("", "  ")
					return enc.Encode(summary)
				}
				fmt.Printf("%s: %d request(s), %d error(s)\n", summary.Date, summary.Requests, summary.Errors)
				for tool, count := range summary.ByTool {
					fmt.Printf("  %-24s %4d calls  avg %dms\n", tool, count, summary.AvgMs[tool])
				}
				return nil

			case "tail":
				records, err := logger.Read(date)
				if err != nil {
					return err
				}
				if tailN > 0 && len(records) > tailN {
					records = records[len(records)-tailN:]
				}
				enc := json.NewEncoder(os.Stdout)
				if asJSON {
					enc.SetIndent("", "  ")
					return enc.Encode(records)
				}
				for _, rec := range records {
					if err := enc.Encode(rec); err != nil {
						return err
					}
				}
				return nil

			case "clear":
				if err := logger.Clear(); err != nil {
					return err
				}
				fmt.Println("logs cleared")
				return nil

			case "path":
				fmt.Println(logger.Dir())
				return nil

			default:
				return fmt.Errorf("unknown logs subcommand: %s", args[0])
			}
		},
	}
	cmd.Flags().StringVar(&date, "date", "", "log date (YYYY-MM-DD, default today)")
	cmd.Flags().IntVar(&tailN, "tail", 20, "number of records for tail")
	cmd.Flags().BoolVar(&asJSON, "json", false, "emit raw JSON")
	return cmd
}
