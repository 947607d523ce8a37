package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/sdibella/coinfolio/internal/coins"
	"github.com/sdibella/coinfolio/internal/currency"
)

func (c *cli) coinsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "coins",
		Short: "Look up coins and market data",
	}

	search := &cobra.Command{
		Use:   "search [query]",
		Short: "Suggest coins matching query (top coins when empty)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := ""
			if len(args) == 1 {
				query = args[0]
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tSYMBOL\tNAME")
			for _, coin := range c.app.Coins.Suggestions(cmd.Context(), query) {
				fmt.Fprintf(w, "%s\t%s\t%s\n", coin.ID, strings.ToUpper(coin.Symbol), coin.Name)
			}
			return w.Flush()
		},
	}

	var days int
	var vs string
	chart := &cobra.Command{
		Use:   "chart <coin-id>",
		Short: "Summarise a coin's price history",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if vs == "" {
				vs = c.app.Config.Currency
			}
			mc := c.app.Coins.MarketChart(cmd.Context(), args[0], strings.ToLower(vs), days)
			if mc == nil || len(mc.Prices) == 0 {
				return fmt.Errorf("no chart data for %s", args[0])
			}
			first, last := mc.Prices[0], mc.Prices[len(mc.Prices)-1]
			low, high := first[1], first[1]
			for _, p := range mc.Prices {
				low = min(low, p[1])
				high = max(high, p[1])
			}

			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "Points\t%d\n", len(mc.Prices))
			fmt.Fprintf(w, "First\t%s\t%s\n", currency.FormatMoney(first[1], vs), humanize.Time(millis(first[0])))
			fmt.Fprintf(w, "Last\t%s\t%s\n", currency.FormatMoney(last[1], vs), humanize.Time(millis(last[0])))
			fmt.Fprintf(w, "Low\t%s\n", currency.FormatMoney(low, vs))
			fmt.Fprintf(w, "High\t%s\n", currency.FormatMoney(high, vs))
			return w.Flush()
		},
	}
	chart.Flags().IntVar(&days, "days", coins.DefaultDays, "history window in days")
	chart.Flags().StringVar(&vs, "vs", "", "quote currency (default from config)")

	cmd.AddCommand(search, chart)
	return cmd
}

func (c *cli) convertCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "convert <amount> <from> <to>",
		Short: "Convert an amount between currencies through USDC",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			amount, err := currency.ParseAmount(args[0])
			if err != nil {
				return err
			}
			to := currency.Normalise(args[2])
			out := c.app.Currency.Convert(cmd.Context(), amount, args[1], to)
			f, _ := out.Float64()
			fmt.Fprintln(cmd.OutOrStdout(), currency.FormatMoney(f, to))
			return nil
		},
	}
}

func millis(ms float64) time.Time {
	return time.UnixMilli(int64(ms))
}
