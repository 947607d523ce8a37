package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sdibella/coinfolio/internal/accounts"
	"github.com/sdibella/coinfolio/internal/signup"
)

func (c *cli) registerCmd() *cobra.Command {
	var form signup.Form
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := signup.Submit(cmd.Context(), c.app.Accounts, form)
			if errors.Is(err, signup.ErrInvalidPassword) {
				for _, check := range res.Checks {
					mark := "ok"
					if !check.OK {
						mark = "missing"
					}
					fmt.Fprintf(cmd.ErrOrStderr(), "  %-8s %s\n", mark, check.Label)
				}
			}
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), res.Message)
			return nil
		},
	}
	cmd.Flags().StringVar(&form.Email, "email", "", "account email")
	cmd.Flags().StringVar(&form.Password, "password", "", "account password")
	cmd.Flags().StringVar(&form.DisplayName, "name", "", "display name")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func (c *cli) loginCmd() *cobra.Command {
	var creds accounts.Credentials
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Check credentials (defaults to COINFOLIO_EMAIL / COINFOLIO_PASSWORD)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if creds.Email == "" {
				creds.Email = c.app.Config.Email
			}
			if creds.Password == "" {
				creds.Password = c.app.Config.Password
			}
			if creds.Email == "" || creds.Password == "" {
				return errors.New("email and password are required")
			}
			resp, err := c.app.Login(cmd.Context(), creds)
			if err != nil {
				return err
			}
			who := creds.Email
			if resp.User != nil && resp.User.DisplayName != "" {
				who = resp.User.DisplayName
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", who)
			return nil
		},
	}
	cmd.Flags().StringVar(&creds.Email, "email", "", "account email")
	cmd.Flags().StringVar(&creds.Password, "password", "", "account password")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "End the server session",
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			if err := c.app.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		}),
	}
}

func (c *cli) whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in profile",
		RunE: c.signedIn(func(cmd *cobra.Command, args []string) error {
			p, err := c.app.Accounts.Profile(cmd.Context())
			if err != nil {
				return err
			}
			w := table(cmd.OutOrStdout())
			fmt.Fprintf(w, "Email\t%s\n", p.Email)
			fmt.Fprintf(w, "Name\t%s\n", p.DisplayName)
			fmt.Fprintf(w, "Currency\t%s\n", p.PreferredCurrency)
			fmt.Fprintf(w, "Timezone\t%s\n", p.Timezone)
			return w.Flush()
		}),
	}
}

func (c *cli) healthCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the API is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.app.Accounts.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s ok\n", c.app.Session.APIRoot())
			return nil
		},
	}
}
