package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/forest6511/cryptlog/internal/cli"
	"github.com/forest6511/cryptlog/pkg/backup"
	"github.com/forest6511/cryptlog/pkg/journal"

	"github.com/spf13/cobra"
)

var (
	backupOutput    string
	backupStdout    bool
	backupWithAudit bool
	backupForce     bool
)

var (
	restoreDryRun     bool
	restoreVerifyOnly bool
	restoreOverwrite  bool
	restoreWithAudit  bool
	restoreForce      bool
)

func init() {
	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(restoreCmd)

	backupCmd.Flags().StringVarP(&backupOutput, "output", "o", "", "Output file path")
	backupCmd.Flags().BoolVar(&backupStdout, "stdout", false, "Output to stdout (for piping)")
	backupCmd.Flags().BoolVar(&backupWithAudit, "with-audit", false, "Include the audit trail in the backup")
	backupCmd.Flags().BoolVarP(&backupForce, "force", "f", false, "Overwrite existing file")

	restoreCmd.Flags().BoolVar(&restoreDryRun, "dry-run", false, "Show what would be restored without making changes")
	restoreCmd.Flags().BoolVar(&restoreVerifyOnly, "verify-only", false, "Only verify backup integrity")
	restoreCmd.Flags().BoolVar(&restoreOverwrite, "overwrite", false, "Replace the user if it already exists")
	restoreCmd.Flags().BoolVar(&restoreWithAudit, "with-audit", false, "Restore the archived audit trail (replaces the current one)")
	restoreCmd.Flags().BoolVarP(&restoreForce, "force", "f", false, "Skip confirmation prompt")
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Create an encrypted backup of one user",
	Long: `Create an encrypted backup of a user's key material and entries.

The archive is protected by the user's password.

Examples:
  # Backup to a file
  cryptlog backup -u alice -o alice.clog

  # Backup with audit trail
  cryptlog backup -u alice -o alice.clog --with-audit

  # Backup to stdout (for piping)
  cryptlog backup -u alice --stdout | gpg --encrypt > alice.clog.gpg`,
	Args: cobra.NoArgs,
	RunE: executeBackup,
}

func executeBackup(cmd *cobra.Command, args []string) error {
	if err := validateBackupFlags(); err != nil {
		return err
	}
	if !backupStdout && !backupForce {
		if _, err := os.Stat(backupOutput); err == nil {
			return fmt.Errorf("output file already exists: %s (use --force to overwrite)", backupOutput)
		}
	}

	acct, err := login()
	if err != nil {
		return err
	}

	var output io.Writer = os.Stdout
	if !backupStdout {
		f, err := os.OpenFile(backupOutput, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, backup.FileMode)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()
		output = f
	}

	stop := cli.StartSpinner(os.Stderr, "Encrypting backup...", prompter.IsTerminal() && !verbose)
	header, err := acct.Backup(output, backupWithAudit)
	stop()
	if err != nil {
		if !backupStdout {
			os.Remove(backupOutput)
		}
		return fmt.Errorf("backup failed: %w", err)
	}

	if !backupStdout {
		fmt.Printf("Backup created successfully: %s (%d entries)\n", backupOutput, header.EntryCount)
	}
	return nil
}

func validateBackupFlags() error {
	if !backupStdout && backupOutput == "" {
		return fmt.Errorf("either --output or --stdout is required")
	}
	if backupStdout && backupOutput != "" {
		return fmt.Errorf("--output and --stdout are mutually exclusive")
	}
	return nil
}

var restoreCmd = &cobra.Command{
	Use:   "restore <backup-file>",
	Short: "Restore a user from an encrypted backup",
	Long: `Restore a user from an encrypted backup file.

Examples:
  # Verify backup integrity without restoring
  cryptlog restore alice.clog --verify-only

  # Dry run (preview only)
  cryptlog restore alice.clog --dry-run

  # Replace an existing user, including the audit trail
  cryptlog restore alice.clog --overwrite --with-audit`,
	Args: cobra.ExactArgs(1),
	RunE: executeRestore,
}

func executeRestore(cmd *cobra.Command, args []string) error {
	backupPath := args[0]
	if restoreDryRun && restoreVerifyOnly {
		return fmt.Errorf("--dry-run and --verify-only are mutually exclusive")
	}
	if _, err := os.Stat(backupPath); os.IsNotExist(err) {
		return fmt.Errorf("backup file not found: %s", backupPath)
	}

	password, err := prompter.ReadPassword("Backup password: ")
	if err != nil {
		return err
	}

	if restoreVerifyOnly {
		stop := cli.StartSpinner(os.Stderr, "Verifying backup...", prompter.IsTerminal() && !verbose)
		result, err := backup.Verify(backupPath, []byte(password))
		stop()
		if err != nil {
			return fmt.Errorf("verification failed: %w", err)
		}
		if !result.Valid {
			return fmt.Errorf("verification failed: %s", result.Error)
		}
		fmt.Printf("Backup verification successful!\n")
		fmt.Printf("  Version: %d\n", result.Version)
		fmt.Printf("  Created: %s\n", result.CreatedAt.Format("2006-01-02 15:04:05"))
		fmt.Printf("  User: %s\n", result.User)
		fmt.Printf("  Entries: %d\n", result.EntryCount)
		fmt.Printf("  Includes Audit: %v\n", result.IncludesAudit)
		return nil
	}

	if !restoreForce && !restoreDryRun {
		ok, err := prompter.Confirm("This will restore a user from backup. Continue?")
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Restore cancelled.")
			return nil
		}
	}

	stop := cli.StartSpinner(os.Stderr, "Restoring backup...", prompter.IsTerminal() && !verbose)
	result, err := jrnl.Restore(backupPath, password, journal.RestoreOptions{
		Overwrite: restoreOverwrite,
		WithAudit: restoreWithAudit,
		DryRun:    restoreDryRun,
	})
	stop()
	if err != nil && result == nil {
		if errors.Is(err, backup.ErrUserExists) {
			return fmt.Errorf("restore failed: %w (use --overwrite to replace)", err)
		}
		return fmt.Errorf("restore failed: %w", err)
	}

	if result.DryRun {
		fmt.Printf("Dry run complete. Would restore:\n")
	} else {
		fmt.Printf("Restore complete!\n")
	}
	fmt.Printf("  User: %s\n", result.User)
	fmt.Printf("  Entries restored: %d\n", result.EntriesRestored)
	if result.AuditRestored {
		fmt.Printf("  Audit trail: restored\n")
	}
	if err != nil {
		Logger.Warnf("%v", err)
	}
	return nil
}
