package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/forest6511/cryptlog/pkg/audit"

	"github.com/spf13/cobra"
)

// Audit flags
var (
	auditLimit int
	auditSince string
)

// Audit export flags
var (
	auditExportFormat string
	auditExportSince  string
	auditExportUntil  string
	auditExportOutput string
)

// Audit prune flags
var (
	auditPruneOlderThan string
	auditPruneDryRun    bool
	auditPruneForce     bool
)

// auditCmd is the parent command for audit operations
var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Audit trail operations",
}

// auditLogger logs in and returns the user's audit logger.
func auditLogger() (*audit.Logger, error) {
	acct, err := login()
	if err != nil {
		return nil, err
	}
	return acct.Audit()
}

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		var since time.Time
		if auditSince != "" {
			duration, err := parseDuration(auditSince)
			if err != nil {
				return fmt.Errorf("invalid since format: %w", err)
			}
			since = time.Now().Add(-duration)
		}

		lg, err := auditLogger()
		if err != nil {
			return err
		}

		events, err := lg.ListEvents(auditLimit, since)
		if err != nil {
			return fmt.Errorf("failed to list audit events: %w", err)
		}
		if len(events) == 0 {
			fmt.Println("No audit events found")
			return nil
		}

		for _, event := range events {
			fmt.Println(formatEvent(event))
		}
		fmt.Printf("\nTotal: %d events\n", len(events))
		return nil
	},
}

// formatEvent renders TIMESTAMP OPERATION RESULT [ENTRY] [error:CODE].
func formatEvent(event audit.Event) string {
	line := fmt.Sprintf("%s %s %s", event.Timestamp, event.Operation, event.Result)
	if event.Entry != "" {
		line += " " + event.Entry
	}
	if n, ok := event.Context["attempts"]; ok {
		line += fmt.Sprintf(" attempts:%v", n)
	}
	if event.Error != nil {
		line += fmt.Sprintf(" error:%s", event.Error.Code)
	}
	return line
}

var auditVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify audit trail HMAC chain integrity",
	RunE: func(cmd *cobra.Command, args []string) error {
		lg, err := auditLogger()
		if err != nil {
			return err
		}

		Logger.Infof("Verifying audit trail in %s", lg.Path())
		result, err := lg.Verify()
		if err != nil {
			return fmt.Errorf("failed to verify audit trail: %w", err)
		}

		if !result.Valid {
			fmt.Printf("✗ Audit trail verification FAILED\n")
			fmt.Printf("  Records total: %d\n", result.RecordsTotal)
			fmt.Printf("  Records verified: %d\n", result.RecordsVerified)
			fmt.Println("  Errors:")
			for _, e := range result.Errors {
				fmt.Printf("    - %s\n", e)
			}
			return fmt.Errorf("audit trail integrity check failed")
		}
		fmt.Printf("✓ Audit trail verified: %d records, chain intact\n", result.RecordsTotal)

		if verbose {
			jsonResult, _ := json.Marshal(result)
			fmt.Printf("\nJSON: %s\n", string(jsonResult))
		}
		return nil
	},
}

var auditExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export audit events as JSON or CSV",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditExportFormat != audit.FormatJSON && auditExportFormat != audit.FormatCSV {
			return fmt.Errorf("invalid format: %s (use 'json' or 'csv')", auditExportFormat)
		}

		var since, until time.Time
		if auditExportSince != "" {
			duration, err := parseDuration(auditExportSince)
			if err != nil {
				return fmt.Errorf("invalid since format: %w", err)
			}
			since = time.Now().Add(-duration)
		}
		if auditExportUntil != "" {
			var err error
			until, err = time.Parse(time.RFC3339, auditExportUntil)
			if err != nil {
				return fmt.Errorf("invalid until format (use RFC 3339): %w", err)
			}
		}

		lg, err := auditLogger()
		if err != nil {
			return err
		}

		data, err := lg.Export(auditExportFormat, since, until)
		if err != nil {
			return fmt.Errorf("failed to export audit events: %w", err)
		}

		if auditExportOutput == "" {
			os.Stdout.Write(data)
			return nil
		}

		absPath, err := filepath.Abs(auditExportOutput)
		if err != nil {
			return fmt.Errorf("invalid output path: %w", err)
		}
		if err := os.WriteFile(absPath, data, 0600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		fmt.Fprintf(os.Stderr, "Audit events exported to %s\n", absPath)
		return nil
	},
}

var auditPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete old audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		if auditPruneOlderThan == "" {
			return fmt.Errorf("--older-than flag is required")
		}
		duration, err := parseDuration(auditPruneOlderThan)
		if err != nil {
			return fmt.Errorf("invalid older-than format: %w", err)
		}

		lg, err := auditLogger()
		if err != nil {
			return err
		}

		count, err := lg.PrunePreview(duration)
		if err != nil {
			return fmt.Errorf("failed to preview prune: %w", err)
		}
		if auditPruneDryRun {
			fmt.Printf("Would delete %d audit events older than %s\n", count, auditPruneOlderThan)
			return nil
		}
		if count == 0 {
			fmt.Println("No audit events to delete")
			return nil
		}

		if !auditPruneForce {
			fmt.Printf("This will delete %d audit events older than %s.\n", count, auditPruneOlderThan)
			ok, err := prompter.Confirm("Are you sure?")
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("Aborted")
				return nil
			}
		}

		deleted, err := lg.Prune(duration)
		if err != nil {
			return fmt.Errorf("failed to prune audit events: %w", err)
		}
		fmt.Printf("Deleted %d audit events\n", deleted)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(auditCmd)
	auditCmd.AddCommand(auditListCmd)
	auditCmd.AddCommand(auditVerifyCmd)
	auditCmd.AddCommand(auditExportCmd)
	auditCmd.AddCommand(auditPruneCmd)

	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum number of events to show")
	auditListCmd.Flags().StringVar(&auditSince, "since", "", "Show events since duration (e.g., 24h)")

	auditExportCmd.Flags().StringVar(&auditExportFormat, "format", audit.FormatJSON, "Output format: json, csv")
	auditExportCmd.Flags().StringVar(&auditExportSince, "since", "", "Export events since duration (e.g., 30d)")
	auditExportCmd.Flags().StringVar(&auditExportUntil, "until", "", "Export events until date (RFC 3339)")
	auditExportCmd.Flags().StringVarP(&auditExportOutput, "output", "o", "", "Output file path (default: stdout)")

	auditPruneCmd.Flags().StringVar(&auditPruneOlderThan, "older-than", "", "Delete events older than duration (e.g., 12m for 12 months)")
	auditPruneCmd.Flags().BoolVar(&auditPruneDryRun, "dry-run", false, "Show what would be deleted without deleting")
	auditPruneCmd.Flags().BoolVarP(&auditPruneForce, "force", "f", false, "Skip confirmation prompt")
}
