package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"

	"quill/internal/startup"
)

func newUserCommand(ctx *commandContext) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "User management",
	}
	userCmd.AddCommand(newCreateAdminCommand(ctx))
	userCmd.AddCommand(newSetPasswordCommand(ctx))
	return userCmd
}

func newCreateAdminCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "create-admin",
		Short: "Create the configured admin user if it does not exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			user, created, err := startup.EnsureAdmin(cmd.Context(), st, cfg)
			if err != nil {
				return err
			}
			if created {
				fmt.Fprintf(cmd.OutOrStdout(), "Created admin user %q\n", user.Username)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Admin user %q already exists\n", user.Username)
			}
			return nil
		},
	}
}

func newSetPasswordCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "set-password <username> <password>",
		Short: "Replace a user's password",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return err
			}
			defer st.Close()

			user, err := st.UserByUsername(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			hash, err := bcrypt.GenerateFromPassword([]byte(args[1]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			if err := st.UpdateUserPassword(cmd.Context(), user.ID, string(hash)); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated password for %q\n", user.Username)
			return nil
		},
	}
}
