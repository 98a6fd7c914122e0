package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/forest6511/cryptlog/internal/cli"
	"github.com/forest6511/cryptlog/pkg/audit"
	"github.com/forest6511/cryptlog/pkg/catalog"
	"github.com/forest6511/cryptlog/pkg/journal"
	"github.com/forest6511/cryptlog/pkg/logstore"

	"github.com/spf13/cobra"
)

// List flags
var (
	listMatch    string
	catalogLimit int
)

var listCmd = &cobra.Command{
	Use:   "list [year [month [day]]]",
	Short: "Lists years, months, days or entries",
	Long: `Lists what exists below the given level:

  cryptlog list                 years with entries
  cryptlog list 2024            months of 2024
  cryptlog list 2024 01         days of January 2024
  cryptlog list 2024 01 15      entries of 15_01_2024
  cryptlog list --match '*_01_2024'   dates matching a glob pattern`,
	Args: cobra.MaximumNArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := login()
		if err != nil {
			return err
		}

		if listMatch != "" {
			dates, err := acct.Dates()
			if err != nil {
				return err
			}
			names := make([]string, len(dates))
			for i, d := range dates {
				names[i] = d.String()
			}
			matches, err := cli.MatchPattern(listMatch, names)
			if err != nil {
				return err
			}
			for _, m := range matches {
				fmt.Println(m)
			}
			return nil
		}

		var names []string
		switch len(args) {
		case 0:
			if !acct.HasLogs() {
				return journal.ErrNoLogs
			}
			names, err = acct.Years()
		case 1:
			names, err = acct.Months(args[0])
		case 2:
			names, err = acct.Days(args[0], args[1])
		case 3:
			names, err = acct.DayLogs(logstore.Date{Day: args[2], Month: args[1], Year: args[0]})
		}
		if err != nil {
			return err
		}

		if len(names) == 0 {
			fmt.Println("Nothing found")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history <day_month_year>",
	Short: "Prints every entry of a day",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, err := logstore.ParseDate(args[0])
		if err != nil {
			return err
		}

		acct, err := login()
		if err != nil {
			return err
		}

		logs, err := acct.History(date)
		if err != nil {
			return err
		}
		if len(logs) == 0 {
			fmt.Printf("No entries for %s\n", date)
			return nil
		}
		for _, l := range logs {
			fmt.Printf("--- %s ---\n", audit.EntryRef(date.String(), l.Index))
			os.Stdout.Write(l.Plaintext)
		}
		return nil
	},
}

// catalogCmd is the parent command for catalog operations.
var catalogCmd = &cobra.Command{
	Use:   "catalog",
	Short: "Entry catalog operations",
}

var catalogRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Lists the most recently saved entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		acct, err := login()
		if err != nil {
			return err
		}

		entries, err := acct.Recent(catalogLimit)
		if err != nil {
			return err
		}
		if len(entries) == 0 {
			fmt.Println("No entries in the catalog")
			return nil
		}
		printEntries(entries)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(catalogCmd)
	catalogCmd.AddCommand(catalogRecentCmd)

	listCmd.Flags().StringVar(&listMatch, "match", "", "Glob pattern over day_month_year dates")
	catalogRecentCmd.Flags().IntVar(&catalogLimit, "limit", catalog.DefaultLimit, "Maximum number of entries to show")
}

func printEntries(entries []*catalog.Entry) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ENTRY\tSIZE\tSAVES\tCREATED\tUPDATED")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\t%s\n",
			audit.EntryRef(e.Date.String(), e.Index),
			e.Size,
			e.Saves,
			e.CreatedAt.Local().Format(time.DateTime),
			e.UpdatedAt.Local().Format(time.DateTime),
		)
	}
	w.Flush()
}
