package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsageCommand(ctx *commandContext) *cobra.Command {
	var days int

	cmd := &cobra.Command{
		Use:   "usage",
		Short: "Show shared endpoint usage history",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			led, err := ctx.openLedger(cfg)
			if err != nil {
				return err
			}
			defer led.Close()

			usage, err := led.History(cmd.Context(), days)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(usage) == 0 {
				fmt.Fprintln(out, "No usage recorded")
				return nil
			}

			limit := led.Limit()
			rows := make([][]string, 0, len(usage))
			for _, u := range usage {
				rows = append(rows, []string{
					u.Day,
					u.Service,
					fmt.Sprintf("%d", u.Count),
					fmt.Sprintf("%d", limit),
				})
			}
			fmt.Fprintln(out, renderTable(
				[]column{
					{title: "DAY"},
					{title: "SERVICE"},
					{title: "USED", right: true},
					{title: "LIMIT", right: true},
				},
				rows,
			))
			return nil
		},
	}

	cmd.Flags().IntVarP(&days, "days", "d", 7, "Number of days to show")
	return cmd
}
