package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/forest6511/cryptlog/internal/cli"
	"github.com/forest6511/cryptlog/pkg/audit"
	"github.com/forest6511/cryptlog/pkg/journal"
	"github.com/forest6511/cryptlog/pkg/logstore"

	"github.com/spf13/cobra"
)

var browseCmd = &cobra.Command{
	Use:   "browse",
	Short: "Interactive menus for writing and browsing entries",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return mainMenu()
	},
}

func init() {
	rootCmd.AddCommand(browseCmd)
}

// mainMenu loops until Quit or end of input.
func mainMenu() error {
	for {
		fmt.Fprintln(prompter.Out())
		choice, err := prompter.Choose("cryptlog", []string{"Access logs", "Create user", "Quit"})
		if err != nil {
			if err == io.EOF {
				return nil
			}
			if errors.Is(err, cli.ErrInvalidOption) {
				Logger.Warnf("Please choose one of the listed options")
				continue
			}
			return err
		}

		switch choice {
		case 0:
			err = accessLogs()
		case 1:
			err = createUser()
		case 2:
			return nil
		}
		if err != nil {
			if err == io.EOF {
				return nil
			}
			Logger.Errorf("%s", userMessage(err))
		}
	}
}

func accessLogs() error {
	acct, err := login()
	if err != nil {
		return err
	}

	today := logstore.Today(time.Now())
	choice, err := prompter.Choose("", []string{
		fmt.Sprintf("Write new log (For %s)", today),
		"Browse all logs",
	})
	if err != nil {
		return err
	}
	if choice == 0 {
		return writeEntry(acct, today)
	}

	date, index, err := selectEntry(acct)
	if err != nil {
		return err
	}

	action, err := prompter.Choose(audit.EntryRef(date.String(), index), []string{"Edit", "Read"})
	if err != nil {
		return err
	}
	if action == 0 {
		return editEntry(acct, date, index)
	}
	return readEntry(acct, date, index, !prompter.IsTerminal())
}

// selectEntry walks year, month, day and entry menus.
func selectEntry(acct *journal.Account) (logstore.Date, int, error) {
	if !acct.HasLogs() {
		return logstore.Date{}, 0, journal.ErrNoLogs
	}

	years, err := acct.Years()
	if err != nil {
		return logstore.Date{}, 0, err
	}
	year, err := choose("Year", years)
	if err != nil {
		return logstore.Date{}, 0, err
	}

	months, err := acct.Months(year)
	if err != nil {
		return logstore.Date{}, 0, err
	}
	month, err := choose("Month", months)
	if err != nil {
		return logstore.Date{}, 0, err
	}

	days, err := acct.Days(year, month)
	if err != nil {
		return logstore.Date{}, 0, err
	}
	day, err := choose("Day", days)
	if err != nil {
		return logstore.Date{}, 0, err
	}

	date := logstore.Date{Day: day, Month: month, Year: year}
	indices, err := acct.Indices(date)
	if err != nil {
		return logstore.Date{}, 0, err
	}
	if len(indices) == 0 {
		return logstore.Date{}, 0, journal.ErrNoLogs
	}
	names, err := acct.DayLogs(date)
	if err != nil {
		return logstore.Date{}, 0, err
	}
	i, err := prompter.Choose("Log", names)
	if err != nil {
		return logstore.Date{}, 0, err
	}
	return date, indices[i], nil
}

func choose(title string, options []string) (string, error) {
	if len(options) == 0 {
		return "", journal.ErrNoLogs
	}
	i, err := prompter.Choose(title, options)
	if err != nil {
		return "", err
	}
	return options[i], nil
}
