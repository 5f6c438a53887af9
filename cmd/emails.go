package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var emailsCmd = &cobra.Command{
	Use:   "emails",
	Short: "Manage the email ingestion pipeline",
}

var emailsProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Match, filter, and inject every pending email in the inbox",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}

		summary, err := env.Processor.ProcessDir(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Processed %d files: %d injected, %d no match, %d rejected, %d duplicate, %d skipped\n",
			summary.Files, summary.Injected, summary.NoMatch, summary.Rejected, summary.Duplicate, summary.Skipped)
		return nil
	},
}

var emailsAssignCmd = &cobra.Command{
	Use:   "assign <from_address> <company>",
	Short: "Map a sender address to a competitor, bypassing the AI matcher",
	Long: "Map a sender address to a competitor. Future emails from the address " +
		"inject under the given company without consulting the matcher; pending " +
		"unmatched emails pick it up on the next process run. Pass an empty " +
		"company (\"\") to clear the assignment.",
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}

		if err := env.Senders.SetAssigned(args[0], args[1]); err != nil {
			return err
		}
		if args[1] == "" {
			fmt.Printf("Cleared assignment for %s\n", args[0])
		} else {
			fmt.Printf("Assigned %s -> %s\n", args[0], args[1])
		}
		return nil
	},
}

var emailsDeleteCmd = &cobra.Command{
	Use:   "delete <json_file>",
	Short: "Soft-delete a stored email and reverse its ledger contributions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}

		if err := env.Processor.DeleteEmail(args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted %s\n", args[0])
		return nil
	},
}

var emailsRebuildSendersCmd = &cobra.Command{
	Use:   "rebuild-senders",
	Short: "Recompute sender counters from the email ledger",
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := initPipeline()
		if err != nil {
			return err
		}

		rows, err := env.Emails.Load()
		if err != nil {
			return err
		}
		if err := env.Senders.Rebuild(rows); err != nil {
			return err
		}
		fmt.Println("Sender ledger rebuilt")
		return nil
	},
}

func init() {
	emailsCmd.AddCommand(emailsProcessCmd)
	emailsCmd.AddCommand(emailsAssignCmd)
	emailsCmd.AddCommand(emailsDeleteCmd)
	emailsCmd.AddCommand(emailsRebuildSendersCmd)
	rootCmd.AddCommand(emailsCmd)
}
