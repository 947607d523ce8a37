package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/sdibella/coinfolio/internal/currency"
	"github.com/sdibella/coinfolio/internal/journal"
	"github.com/sdibella/coinfolio/internal/watchlist"
)

func (c *cli) watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the watchlist",
	}

	var view watchlist.View
	var sortKey, sortDir string
	list := &cobra.Command{
		Use:   "list",
		Short: "Show watched coins with live market data",
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			view.Key = watchlist.ParseSortKey(sortKey)
			view.Dir = watchlist.ParseSortDir(sortDir)

			tracker := c.app.Tracker()
			tracker.Load(cmd.Context())
			st := tracker.Snapshot()
			if st.Err != "" {
				return fmt.Errorf("%s", st.Err)
			}

			page := watchlist.Apply(st.Rows, view)
			ccy := c.app.Config.Currency
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "COIN\tSYMBOL\tPRICE\tMCAP\t1H\t24H\t7D")
			for _, m := range page.Rows {
				price := "—"
				if m.CurrentPrice != nil {
					price = currency.FormatMoney(*m.CurrentPrice, ccy)
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", m.ID, strings.ToUpper(m.Symbol), price,
					currency.FormatAbbrev(m.MarketCap, ccy),
					watchlist.FormatChange(m.Ch1h), watchlist.FormatChange(m.Ch24h), watchlist.FormatChange(m.Ch7d))
			}
			if err := w.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "page %d/%d (%d coins)\n", page.Page, page.TotalPages, page.Total)
			return nil
		}),
	}
	list.Flags().StringVarP(&view.Query, "filter", "f", "", "filter by name or symbol")
	list.Flags().StringVar(&sortKey, "sort", string(watchlist.SortMarketCap), "market_cap, price or change")
	list.Flags().StringVar(&sortDir, "dir", string(watchlist.Desc), "asc or desc")
	list.Flags().IntVar(&view.Page, "page", 1, "page number")

	add := &cobra.Command{
		Use:   "add <coin-id>",
		Short: "Watch a coin",
		Args:  cobra.ExactArgs(1),
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			if _, err := c.app.Watchlist.Add(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.app.Record(journal.NewWatchlist("added", args[0], "cli"))
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s\n", args[0])
			return nil
		}),
	}

	remove := &cobra.Command{
		Use:   "remove <coin-id>",
		Short: "Stop watching a coin",
		Args:  cobra.ExactArgs(1),
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			tracker := c.app.Tracker()
			tracker.RefreshEntries(cmd.Context())
			if !contains(watchlist.WatchedIDs(tracker.Snapshot().Entries), args[0]) {
				return fmt.Errorf("%s is not on the watchlist", args[0])
			}
			if err := tracker.Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.app.Record(journal.NewWatchlist("removed", args[0], "cli"))
			fmt.Fprintf(cmd.OutOrStdout(), "Removed %s\n", args[0])
			return nil
		}),
	}

	cmd.AddCommand(list, add, remove)
	return cmd
}

func contains(ids []string, id string) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
