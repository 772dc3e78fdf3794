package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/aura-seminar/certificates/internal/certificates"
	"github.com/aura-seminar/certificates/internal/models"
)

func processMissingCmd(open opener) *cobra.Command {
	var (
		sendEmail bool
		sync      bool
		eventID   int64
	)
	cmd := &cobra.Command{
		Use:   "process-missing",
		Short: "Generate certificates for present attendees whose image or document is missing",
		Long: `Scan present attendees and check the object store for both artifacts.
Attendees with a complete certificate are counted as already present; the rest are
queued for the worker, or processed in this process with --sync.
Per-attendee failures are counted and reported; the command still exits 0.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			opts := certificates.MissingOptions{SendEmail: sendEmail, Sync: sync}
			if cmd.Flags().Changed("event") {
				opts.EventID = &eventID
			}
			out := cmd.OutOrStdout()
			sum, err := e.scanner.ProcessMissing(cmd.Context(), opts)
			if err != nil {
				fmt.Fprintf(out, "Scan stopped: %v\n", err)
			}
			writeMissingSummary(out, sum, sync)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sendEmail, "send-email", false, "Email the certificate to attendees who have not received it")
	cmd.Flags().BoolVar(&sync, "sync", false, "Generate in this process instead of queueing")
	cmd.Flags().Int64Var(&eventID, "event", 0, "Only scan attendees of this event id")
	return cmd
}

func processPendingCmd(open opener) *cobra.Command {
	var (
		sync    bool
		noEmail bool
	)
	cmd := &cobra.Command{
		Use:   "process-pending",
		Short: "Dispatch certificates for present attendees without a code or not yet emailed",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer e.close()

			out := cmd.OutOrStdout()
			sum, err := e.scanner.ProcessPending(cmd.Context(), certificates.PendingOptions{
				SendEmail: !noEmail,
				Sync:      sync,
				Progress: func(reg models.Registration) {
					fmt.Fprintf(out, "Processing certificate for %s (%s)\n", reg.User.Email, reg.Event.Name)
				},
			})
			if err != nil {
				fmt.Fprintf(out, "Scan stopped: %v\n", err)
			}
			verb := "Queued"
			if sync {
				verb = "Processed"
			}
			fmt.Fprintf(out, "%s %d certificate(s)", verb, sum.Dispatched)
			if sum.Errors > 0 {
				fmt.Fprintf(out, ", %d error(s)", sum.Errors)
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().BoolVar(&sync, "sync", false, "Generate in this process instead of queueing")
	cmd.Flags().BoolVar(&noEmail, "no-email", false, "Generate without emailing attendees")
	return cmd
}

func writeMissingSummary(w io.Writer, sum certificates.MissingSummary, sync bool) {
	processed := "Queued"
	if sync {
		processed = "Processed"
	}
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Status", "Count"})
	table.Append([]string{"Total", strconv.Itoa(sum.Total)})
	table.Append([]string{processed, strconv.Itoa(sum.Processed)})
	table.Append([]string{"Already present", strconv.Itoa(sum.AlreadyPresent)})
	table.Append([]string{"Skipped", strconv.Itoa(sum.Skipped)})
	table.Append([]string{"Orphaned", strconv.Itoa(sum.Orphaned)})
	table.Append([]string{"Errors", strconv.Itoa(sum.Errors)})
	table.Render()
}
