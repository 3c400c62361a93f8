package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dukerupert/focusblock/internal/recurrence"
)

func newExpandCommand() *cobra.Command {
	var (
		start    string
		duration time.Duration
		until    string
		count    int
	)

	cmd := &cobra.Command{
		Use:   "expand RULE",
		Short: "Print the occurrences a recurrence rule generates",
		Example: `  focusblock expand WEEKLY:MO,WE,FR --start 2024-01-01T09:00:00Z --count 6
  focusblock expand MONTHLY:1,15 --start 2024-01-01T12:00:00Z --until 2024-03-01`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := recurrence.Validate(args[0]); err != nil {
				return err
			}
			rule, _ := recurrence.Parse(args[0])

			if start == "" {
				return errors.New("--start is required")
			}
			anchor, err := parseTime(start)
			if err != nil {
				return fmt.Errorf("--start: %w", err)
			}
			if until != "" {
				end, err := parseTime(until)
				if err != nil {
					return fmt.Errorf("--until: %w", err)
				}
				rule.EndDate = &end
			}

			out := cmd.OutOrStdout()
			fmt.Fprintln(out, rule.Describe())
			for _, occ := range recurrence.Generate(anchor, anchor.Add(duration), rule, count) {
				fmt.Fprintf(out, "%s  %s -> %s\n", occ.Start.Weekday().String()[:3],
					occ.Start.Format(time.RFC3339), occ.End.Format(time.RFC3339))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "anchor start (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().DurationVar(&duration, "duration", time.Hour, "length of each occurrence")
	cmd.Flags().StringVar(&until, "until", "", "last allowed start (RFC3339 or YYYY-MM-DD)")
	cmd.Flags().IntVar(&count, "count", 10, "maximum occurrences to print")
	return cmd
}

func parseTime(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	return time.Parse("2006-01-02", s)
}
