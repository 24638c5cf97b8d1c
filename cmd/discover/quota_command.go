package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func newQuotaCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show today's AI request quota",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withQuota(cmd, func(q quotaReader) error {
				status, err := q.QuotaStatus(cmd.Context())
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd, status)
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Used:      %d / %d\n", status.Used, status.Limit)
				fmt.Fprintf(out, "Remaining: %d\n", status.Remaining)
				fmt.Fprintf(out, "Resets:    %s\n", status.ResetTime.Format(time.RFC1123))
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the status as JSON")
	return cmd
}
