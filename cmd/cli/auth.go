package main

import (
	"fmt"
	"os"
	"time"

	"github.com/dvloznov/finance-dashboard/internal/auth"
	"github.com/spf13/cobra"
)

const passwordEnv = "FINDASH_PASSWORD"

func passwordFrom(flag string) string {
	if flag != "" {
		return flag
	}
	return os.Getenv(passwordEnv)
}

func (c *cli) loginCmd() *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and store the session token",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			user, err := svc.Auth.Login(cmd.Context(), email, passwordFrom(password))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or set "+passwordEnv+")")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) registerCmd() *cobra.Command {
	var name, email, password, confirm string
	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and log in",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			pw := passwordFrom(password)
			if confirm == "" {
				confirm = pw
			}
			user, err := svc.Auth.Register(cmd.Context(), name, email, pw, confirm)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s <%s>\n", user.Name, user.Email)
			return nil
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "Display name")
	cmd.Flags().StringVar(&email, "email", "", "Account email")
	cmd.Flags().StringVar(&password, "password", "", "Account password (or set "+passwordEnv+")")
	cmd.Flags().StringVar(&confirm, "confirm", "", "Password confirmation (defaults to --password)")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) logoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			if err := svc.Auth.Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func (c *cli) profileCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Show the logged in user",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd.Context())
			if err != nil {
				return err
			}
			user, err := svc.Auth.Profile(cmd.Context())
			if err != nil {
				return err
			}

			out := map[string]interface{}{"user": user}
			if token, err := svc.Credentials.Token(cmd.Context()); err == nil {
				if exp, ok := auth.TokenExpiry(token); ok {
					out["tokenExpiresAt"] = exp.Format(time.RFC3339)
				}
			}
			return printJSON(cmd.OutOrStdout(), out)
		},
	}
}
