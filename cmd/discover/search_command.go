package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screenscape/discoveryservice/internal/domain"
	"screenscape/discoveryservice/internal/quota"
)

func newSearchCommand(ctx *commandContext) *cobra.Command {
	var (
		asJSON bool
		page   int
	)
	cmd := &cobra.Command{
		Use:   "search <query...>",
		Short: "Describe what you want to watch and list matching titles",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(strings.Join(args, " "))
			if page < 1 {
				return fmt.Errorf("page must be positive, got %d", page)
			}
			return ctx.withRunner(cmd, func(r runner) error {
				response, err := r.Discover(cmd.Context(), query, domain.DiscoverOptions{Page: page})
				if err != nil {
					return describeDiscoverError(err)
				}
				if asJSON {
					return writeJSON(cmd, response)
				}
				printDiscovery(cmd.OutOrStdout(), response)
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full response as JSON")
	cmd.Flags().IntVar(&page, "page", 1, "Catalog result page")
	return cmd
}

func describeDiscoverError(err error) error {
	var exceeded *quota.ExceededError
	if errors.As(err, &exceeded) {
		return fmt.Errorf("daily AI limit of %d reached, resets at %s", exceeded.Limit, exceeded.ResetTime.Format(time.Kitchen))
	}
	return err
}

func printDiscovery(out io.Writer, response domain.DiscoveryResponse) {
	fmt.Fprintln(out, response.Title)
	if len(response.Items) == 0 {
		fmt.Fprintln(out, "No titles matched.")
	} else {
		rows := make([][]string, 0, len(response.Items))
		for i, item := range response.Items {
			rows = append(rows, []string{
				strconv.Itoa(i + 1),
				string(item.Type),
				item.Title,
				item.ReleaseYear,
				formatRating(item.VoteAverage),
			})
		}
		fmt.Fprintln(out, renderTable(
			[]string{"#", "Type", "Title", "Year", "Rating"},
			rows,
			[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignRight},
		))
	}
	for _, source := range response.Sources {
		if !source.OK {
			fmt.Fprintf(out, "warning: %s results unavailable: %s\n", source.MediaType, source.Error)
		}
	}
}

func formatRating(value float64) string {
	if value <= 0 {
		return "-"
	}
	return strconv.FormatFloat(value, 'f', 1, 64)
}
