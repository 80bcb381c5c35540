package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	application "github.com/rocketscienceinc/tictactoe-hub/internal"
	"github.com/rocketscienceinc/tictactoe-hub/internal/repository"
	"github.com/rocketscienceinc/tictactoe-hub/internal/service"
)

func newUserCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage user accounts",
	}

	cmd.AddCommand(newUserAddCmd(opts))
	cmd.AddCommand(newUserImportCmd(opts))

	return cmd
}

func newUserAddCmd(opts *options) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "add <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return errors.New("--password is required")
			}

			return withAuthService(cmd, opts, func(auth *service.AuthService) error {
				if err := auth.Register(cmd.Context(), args[0], password); err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "user %s created\n", args[0])

				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&password, "password", "p", "", "Password of the new account")

	return cmd
}

func newUserImportCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file>",
		Short: "Import a JSON user database with bcrypt hashed passwords",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			users, err := repository.ReadUserDatabase(args[0])
			if err != nil {
				return err
			}

			return withAuthService(cmd, opts, func(auth *service.AuthService) error {
				imported, err := auth.Import(cmd.Context(), users)
				if err != nil {
					return err
				}

				fmt.Fprintf(cmd.OutOrStdout(), "%d of %d users imported\n", imported, len(users))

				return nil
			})
		},
	}
}

func withAuthService(cmd *cobra.Command, opts *options, fn func(auth *service.AuthService) error) error {
	repo, closeStorage, err := application.OpenUserRepository(cmd.Context(), opts.conf)
	if err != nil {
		return err
	}

	defer func() {
		if err := closeStorage(); err != nil {
			opts.logger.Error("could not close user storage", "error", err)
		}
	}()

	return fn(service.NewAuthService(opts.logger, repo))
}
