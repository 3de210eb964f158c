package main

import (
	"fmt"

	"github.com/nomance-app/nomance/internal/client"
	"github.com/nomance-app/nomance/internal/domain"
	"github.com/spf13/cobra"
)

var signupInput client.SignUpInput

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account and sign in",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := current.api.SignUp(cmd.Context(), signupInput)
		if err != nil {
			return err
		}
		fmt.Fprintf(current.out, "Welcome, %s! Your user ID is %s\n", user.DisplayName, user.ID)
		return nil
	},
}

var loginEmail, loginPassword string

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in with email and password",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := current.api.SignIn(cmd.Context(), loginEmail, loginPassword)
		if err != nil {
			return err
		}
		fmt.Fprintf(current.out, "Signed in as %s (@%s)\n", user.DisplayName, user.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the stored session",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.api.SignOut(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(current.out, "Signed out")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the identity conversations run as",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		user, err := current.api.CurrentUser(cmd.Context())
		if err != nil {
			return err
		}
		id := domain.ResolveIdentity(user)
		if id.IsGuest() {
			fmt.Fprintf(current.out, "Not signed in; acting as guest %s\n", id.UserID)
			return nil
		}
		fmt.Fprintf(current.out, "%s (@%s) %s\n", user.DisplayName, user.Username, user.ID)
		return nil
	},
}

func init() {
	f := signupCmd.Flags()
	f.StringVar(&signupInput.Email, "email", "", "Email address")
	f.StringVar(&signupInput.Username, "username", "", "Username")
	f.StringVar(&signupInput.DisplayName, "name", "", "Display name")
	f.StringVar(&signupInput.Password, "password", "", "Password")
	for _, name := range []string{"email", "username", "name", "password"} {
		signupCmd.MarkFlagRequired(name)
	}

	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Email address")
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "Password")
	loginCmd.MarkFlagRequired("email")
	loginCmd.MarkFlagRequired("password")
}
