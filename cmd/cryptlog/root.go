package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/forest6511/cryptlog/internal/cli"
	"github.com/forest6511/cryptlog/internal/config"
	"github.com/forest6511/cryptlog/internal/logging"
	"github.com/forest6511/cryptlog/pkg/backup"
	"github.com/forest6511/cryptlog/pkg/journal"
	"github.com/forest6511/cryptlog/pkg/keychain"
	"github.com/forest6511/cryptlog/pkg/logstore"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	debug      bool
	userFlag   string

	jrnl     *journal.Journal
	prompter = cli.NewPrompter()

	// Logger is replaced once flags are parsed.
	Logger = logging.New(false, false)
)

// errIncorrectPassword is returned for any failed login.
var errIncorrectPassword = errors.New("incorrect password")

const incorrectPasswordMessage = "Incorrect password!"

// loginAttempts is how often interactive commands ask for the password.
const loginAttempts = 3

var rootCmd = &cobra.Command{
	Use:   "cryptlog",
	Short: "cryptlog is an encrypted personal journal",
	Long: `An encrypted personal journal for the terminal.

Entries are sealed with AES-256-GCM under a key derived from your password
with Argon2id. Set CRYPTLOG_LOGS_DIR and CRYPTLOG_KEYS_DIR, or name both
directories in the config file.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	// PersistentPreRunE loads the configuration and opens the journal
	// before every subcommand.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		Logger = logging.New(verbose, debug)
		if skipJournal(cmd) {
			return nil
		}

		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		Logger.Debugf("logs: %s, keys: %s, config file: %q", cfg.LogsDir, cfg.KeysDir, cfg.Path())

		jrnl, err = journal.Open(cfg)
		if err != nil {
			return err
		}
		return nil
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		if jrnl == nil {
			return nil
		}
		err := jrnl.Close()
		jrnl = nil
		return err
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default $CRYPTLOG_CONFIG or <user config dir>/cryptlog/config.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Print progress information")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Print debug information")
	rootCmd.PersistentFlags().StringVarP(&userFlag, "user", "u", "", "User name (prompted when omitted)")
	_ = rootCmd.RegisterFlagCompletionFunc("user", completeUsers)
}

func skipJournal(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "completion", "help", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	return false
}

// readUser returns --user or asks for it.
func readUser() (string, error) {
	if userFlag != "" {
		return userFlag, nil
	}
	user, err := prompter.ReadLine("User: ")
	if err != nil {
		return "", fmt.Errorf("failed to read user: %w", err)
	}
	return user, nil
}

// login asks for the password and authenticates. On a terminal it retries
// up to loginAttempts times.
func login() (*journal.Account, error) {
	user, err := readUser()
	if err != nil {
		return nil, err
	}

	attempts := 1
	if prompter.IsTerminal() {
		attempts = loginAttempts
	}

	for i := 0; i < attempts; i++ {
		password, err := prompter.ReadPassword("Password: ")
		if err != nil {
			return nil, err
		}

		stop := cli.StartSpinner(os.Stderr, "Deriving key...", prompter.IsTerminal() && !verbose)
		acct, err := jrnl.Login(user, password)
		stop()

		if err == nil {
			Logger.Infof("Logged in as %s", acct.User())
			return acct, nil
		}
		if !errors.Is(err, keychain.ErrNotAuthorized) {
			return nil, err
		}
		if i < attempts-1 {
			fmt.Fprintln(os.Stderr, incorrectPasswordMessage)
		}
	}
	return nil, errIncorrectPassword
}

// parseAddress parses a date argument and an index argument.
func parseAddress(dateArg, indexArg string) (logstore.Date, int, error) {
	date, err := logstore.ParseDate(dateArg)
	if err != nil {
		return logstore.Date{}, 0, err
	}
	index, err := strconv.Atoi(indexArg)
	if err != nil || index < 0 {
		return logstore.Date{}, 0, fmt.Errorf("%w: %q", logstore.ErrInvalidIndex, indexArg)
	}
	return date, index, nil
}

// parseDuration parses a duration string like "30d", "1y", "24h"
func parseDuration(s string) (time.Duration, error) {
	if len(s) < 2 {
		return 0, fmt.Errorf("duration too short: %s", s)
	}

	unit := s[len(s)-1]
	valueStr := s[:len(s)-1]

	var value int
	if _, err := fmt.Sscanf(valueStr, "%d", &value); err != nil {
		return 0, fmt.Errorf("invalid duration value: %s", valueStr)
	}

	switch unit {
	case 'h':
		return time.Duration(value) * time.Hour, nil
	case 'd':
		return time.Duration(value) * 24 * time.Hour, nil
	case 'w':
		return time.Duration(value) * 7 * 24 * time.Hour, nil
	case 'm':
		return time.Duration(value) * 30 * 24 * time.Hour, nil
	case 'y':
		return time.Duration(value) * 365 * 24 * time.Hour, nil
	default:
		return time.ParseDuration(s)
	}
}

// userMessage maps errors to the text shown on failure.
func userMessage(err error) string {
	switch {
	case errors.Is(err, config.ErrMissingLogsDir), errors.Is(err, config.ErrMissingKeysDir):
		return err.Error()
	case errors.Is(err, keychain.ErrNotAuthorized), errors.Is(err, errIncorrectPassword):
		return incorrectPasswordMessage
	case errors.Is(err, keychain.ErrUserExists):
		return "user already exists"
	case errors.Is(err, keychain.ErrInvalidUserID):
		return "invalid user name: " + err.Error()
	case errors.Is(err, journal.ErrNoLogs):
		return "User does not have any logs!"
	case errors.Is(err, logstore.ErrLogNotFound):
		return "log not found"
	case errors.Is(err, logstore.ErrInvalidDate):
		return "invalid date, expected day_month_year: " + err.Error()
	case errors.Is(err, logstore.ErrInsufficientDisk):
		return "not enough disk space to save the entry"
	case errors.Is(err, backup.ErrIntegrityFailed), errors.Is(err, backup.ErrDecryptionFailed):
		return "backup password is incorrect or the backup is corrupted"
	default:
		return err.Error()
	}
}
