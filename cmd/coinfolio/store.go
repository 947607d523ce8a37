package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdibella/coinfolio/internal/journal"
)

func (c *cli) journalCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent client activity from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.app.JournalPath()
			if path == "" {
				return errors.New("journal disabled: set COINFOLIO_JOURNAL_PATH")
			}
			events, err := journal.Read(path)
			if err != nil {
				return err
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "TIME\tTYPE\tACTION\tSUBJECT")
			for _, e := range journal.Tail(events, n) {
				switch {
				case e.Session != nil:
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Session.Time, e.Type, e.Session.Action, e.Session.Email)
				case e.Simulation != nil:
					fmt.Fprintf(w, "%s\t%s\t%s\t%s %s\n", e.Simulation.Time, e.Type, e.Simulation.Action, e.Simulation.SimulationID, e.Simulation.Name)
				case e.Position != nil:
					fmt.Fprintf(w, "%s\t%s\t%s\t%s %s %s\n", e.Position.Time, e.Type, e.Position.Action, e.Position.Side, e.Position.Quantity, e.Position.CoinID)
				case e.Watchlist != nil:
					fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", e.Watchlist.Time, e.Type, e.Watchlist.Action, e.Watchlist.CoinID)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&n, "lines", "n", 20, "number of events (0 for all)")
	return cmd
}

func (c *cli) cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the market-data cache",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "prune",
		Short: "Delete expired cache entries",
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := c.app.PruneCache()
			if err != nil {
				return err
			}
			var total int64
			for _, n := range removed {
				total += n
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired entries\n", total)
			return nil
		},
	})
	return cmd
}
