package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/sdibella/coinfolio/internal/currency"
	"github.com/sdibella/coinfolio/internal/journal"
	"github.com/sdibella/coinfolio/internal/portfolio"
	"github.com/sdibella/coinfolio/internal/simulations"
)

func (c *cli) simsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "sims",
		Aliases: []string{"simulations"},
		Short:   "Manage paper-trading simulations",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List simulations",
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			sims, err := c.app.Simulations.List(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTART\tEND\tINVESTED\tVALUE")
			for _, s := range sims {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Status, s.StartDate, s.EndLabel(),
					currency.FormatDecimal(s.Invested, currency.Default), currency.FormatDecimal(s.CurrentValue, currency.Default))
			}
			return w.Flush()
		}),
	}

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a simulation, its positions and profit/loss",
		Args:  cobra.ExactArgs(1),
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			sim, err := c.app.Simulations.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			invested, current := decimal.Zero, decimal.Zero
			if sim.Invested != nil {
				invested = *sim.Invested
			}
			if sim.CurrentValue != nil {
				current = *sim.CurrentValue
			}
			pl, pct := portfolio.ProfitLoss(invested, current)
			plf, _ := pl.Float64()

			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "Name\t%s\n", sim.Name)
			fmt.Fprintf(w, "Status\t%s\n", sim.Status)
			fmt.Fprintf(w, "Period\t%s .. %s\n", sim.StartDate, sim.EndLabel())
			fmt.Fprintf(w, "Invested\t%s\n", currency.FormatDecimal(sim.Invested, currency.Default))
			fmt.Fprintf(w, "Value\t%s\n", currency.FormatDecimal(sim.CurrentValue, currency.Default))
			fmt.Fprintf(w, "P/L\t%s\t%s\n", currency.FormatMoney(plf, currency.Default), pct)
			fmt.Fprintln(w)
			fmt.Fprintln(w, "TX\tTYPE\tCOIN\tQTY\tPRICE\tTIME")
			for _, p := range sim.Positions {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", p.ID, p.Type, strings.ToUpper(p.Label()),
					p.Quantity.String(), p.Price.StringFixed(2), p.Time)
			}
			return w.Flush()
		}),
	}

	var create simulations.CreateRequest
	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a simulation",
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			if create.StartDate == "" {
				create.StartDate = time.Now().Format("2006-01-02")
			}
			sim, err := c.app.Simulations.Create(cmd.Context(), create)
			if err != nil {
				return err
			}
			c.app.Record(journal.NewSimulation("created", sim.ID, sim.Name, sim.StartDate))
			fmt.Fprintf(cmd.OutOrStdout(), "Simulation created successfully: %s\n", sim.ID)
			return nil
		}),
	}
	createCmd.Flags().StringVar(&create.Name, "name", "", "simulation name")
	createCmd.Flags().StringVar(&create.Description, "description", "", "description")
	createCmd.Flags().StringVar(&create.StartDate, "start", "", "start date YYYY-MM-DD (default today)")
	_ = createCmd.MarkFlagRequired("name")

	del := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a simulation",
		Args:  cobra.ExactArgs(1),
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			if err := c.app.Simulations.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.app.Record(journal.NewSimulation("deleted", args[0], "", ""))
			fmt.Fprintln(cmd.OutOrStdout(), "Simulation deleted")
			return nil
		}),
	}

	cmd.AddCommand(list, show, createCmd, del,
		c.tradeCmd(simulations.Buy), c.tradeCmd(simulations.Sell),
		c.untradeCmd(), c.valueCmd())
	return cmd
}

// tradeCmd records a BUY or SELL position.
func (c *cli) tradeCmd(side simulations.PositionType) *cobra.Command {
	var price string
	cmd := &cobra.Command{
		Use:   strings.ToLower(string(side)) + " <simulation-id> <coin-id> <quantity>",
		Short: "Record a " + string(side) + " position",
		Args:  cobra.ExactArgs(3),
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			qty, err := currency.ParseAmount(args[2])
			if err != nil {
				return err
			}
			req := simulations.PositionRequest{CoinID: args[1], Type: side, Quantity: qty}
			if price != "" {
				p, err := currency.ParseAmount(price)
				if err != nil {
					return err
				}
				req.Price = &p
			}

			pos, err := c.app.Simulations.AddPosition(cmd.Context(), args[0], req)
			if err != nil {
				return err
			}
			c.app.Record(journal.NewPosition("added", args[0], pos.ID, req.CoinID, string(side), qty.String(), price))
			fmt.Fprintf(cmd.OutOrStdout(), "Position added: %s\n", pos.ID)
			return nil
		}),
	}
	cmd.Flags().StringVar(&price, "price", "", "unit price (default: current market)")
	return cmd
}

func (c *cli) untradeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "untrade <transaction-id>",
		Short: "Delete a position",
		Args:  cobra.ExactArgs(1),
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			if err := c.app.Simulations.DeleteTransaction(cmd.Context(), args[0]); err != nil {
				return err
			}
			c.app.Record(journal.NewPosition("deleted", "", args[0], "", "", "", ""))
			fmt.Fprintln(cmd.OutOrStdout(), "Transaction deleted")
			return nil
		}),
	}
}

func (c *cli) valueCmd() *cobra.Command {
	var vs string
	cmd := &cobra.Command{
		Use:   "value <id>",
		Short: "Rebuild the simulation's value over time from market charts",
		Args:  cobra.ExactArgs(1),
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			if vs == "" {
				vs = c.app.Config.Currency
			}
			sim, err := c.app.Simulations.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			for _, h := range portfolio.NetHoldings(sim.Positions) {
				fmt.Fprintf(cmd.ErrOrStderr(), "holding %s %s\n", h.Quantity.String(), h.CoinID)
			}

			points, err := portfolio.Series(cmd.Context(), c.app.Coins, sim, vs, time.Now())
			if err != nil {
				return err
			}
			if len(points) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No holdings to value")
				return nil
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintln(w, "TIME\tVALUE")
			for _, p := range points {
				fmt.Fprintf(w, "%s\t%s\n", millis(p.T).UTC().Format(time.RFC3339), currency.FormatMoney(p.V, vs))
			}
			return w.Flush()
		}),
	}
	cmd.Flags().StringVar(&vs, "vs", "", "quote currency (default from config)")
	return cmd
}
