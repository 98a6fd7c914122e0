package main

import (
	"fmt"
	"os"
	"time"

	"github.com/forest6511/cryptlog/internal/terminal"
	"github.com/forest6511/cryptlog/pkg/audit"
	"github.com/forest6511/cryptlog/pkg/document"
	"github.com/forest6511/cryptlog/pkg/editor"
	"github.com/forest6511/cryptlog/pkg/journal"
	"github.com/forest6511/cryptlog/pkg/logstore"

	"github.com/spf13/cobra"
)

// Entry flags
var (
	writeDate string
	readPrint bool
)

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Writes a new entry (today unless --date is given)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		date := logstore.Today(time.Now())
		if writeDate != "" {
			var err error
			if date, err = logstore.ParseDate(writeDate); err != nil {
				return err
			}
		}

		acct, err := login()
		if err != nil {
			return err
		}
		return writeEntry(acct, date)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <day_month_year> <index>",
	Short: "Edits an existing entry",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, index, err := parseAddress(args[0], args[1])
		if err != nil {
			return err
		}

		acct, err := login()
		if err != nil {
			return err
		}
		return editEntry(acct, date, index)
	},
}

var readCmd = &cobra.Command{
	Use:   "read <day_month_year> <index>",
	Short: "Shows an entry without modifying it",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		date, index, err := parseAddress(args[0], args[1])
		if err != nil {
			return err
		}

		acct, err := login()
		if err != nil {
			return err
		}
		return readEntry(acct, date, index, readPrint || !prompter.IsTerminal())
	},
}

func init() {
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(readCmd)

	writeCmd.Flags().StringVar(&writeDate, "date", "", "Entry date as day_month_year")
	readCmd.Flags().BoolVar(&readPrint, "print", false, "Print the entry instead of opening the viewer")
}

func writeEntry(acct *journal.Account, date logstore.Date) error {
	s := acct.NewEntry(date)
	doc := document.New(date.String())
	Logger.Debugf("new entry session for %s", date)
	return runSession(s, editor.New(doc, s))
}

func editEntry(acct *journal.Account, date logstore.Date, index int) error {
	s, text, err := acct.EditEntry(date, index)
	if err != nil {
		return err
	}
	doc, err := document.FromBytes(text, audit.EntryRef(date.String(), index))
	if err != nil {
		res, ferr := s.Finish()
		Logger.Debugf("edit session for %s index %d closed unused: %+v, %v", date, index, res, ferr)
		return err
	}
	Logger.Debugf("edit session for %s index %d", date, index)
	return runSession(s, editor.New(doc, s))
}

func readEntry(acct *journal.Account, date logstore.Date, index int, plain bool) error {
	text, err := acct.ReadEntry(date, index)
	if err != nil {
		return err
	}
	if plain {
		os.Stdout.Write(text)
		return nil
	}

	doc, err := document.FromBytes(text, audit.EntryRef(date.String(), index))
	if err != nil {
		return err
	}
	return runEditor(editor.NewReadOnly(doc))
}

// runSession runs ed until it quits, then waits for the worker to finish
// every queued save and reports the outcome.
func runSession(s *journal.Session, ed *editor.Editor) error {
	runErr := runEditor(ed)

	res, metaErr := s.Finish()
	if metaErr != nil {
		Logger.Warnf("%v", metaErr)
	}
	if res.Err != nil {
		if res.Dropped > 0 {
			Logger.Warnf("%d later saves were discarded", res.Dropped)
		}
		return fmt.Errorf("entry not saved: %w", res.Err)
	}
	if runErr != nil {
		return runErr
	}

	switch {
	case !res.Persisted():
		fmt.Println("Nothing saved")
	case res.Created:
		fmt.Printf("Saved new entry %s (%d saves)\n", audit.EntryRef(s.Date().String(), res.Index), res.Saves)
	default:
		fmt.Printf("Saved entry %s (%d saves)\n", audit.EntryRef(s.Date().String(), res.Index), res.Saves)
	}
	return nil
}

func runEditor(ed *editor.Editor) error {
	term, err := terminal.New()
	if err != nil {
		return fmt.Errorf("failed to open terminal: %w", err)
	}
	defer term.Close()

	return ed.Run(term, term)
}
