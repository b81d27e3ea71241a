/*
Copyright © 2025 Oleh Solomko <oleh.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/osolomko/doctran/internal/api"
	"github.com/osolomko/doctran/internal/session"
)

var (
	signupName     string
	signupEmail    string
	signupPassword string
	acceptTerms    bool

	signinEmail    string
	signinPassword string
)

var signupCmd = &cobra.Command{
	Use:   "signup",
	Short: "Create an account",
	Long: `Create an account on the translation service.

Creating an account does not sign you in: run "doctran signin" afterwards.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		err = app.session.SignUp(cmd.Context(), session.SignUpInput{
			Name:        signupName,
			Email:       signupEmail,
			Password:    signupPassword,
			AcceptTerms: acceptTerms,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Account created for %s.\n", signupEmail)
		fmt.Printf("Sign in to continue: doctran signin --email %s\n", signupEmail)
		return nil
	},
}

var signinCmd = &cobra.Command{
	Use:   "signin",
	Short: "Sign in and persist the session",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		user, err := app.session.SignIn(cmd.Context(), session.SignInInput{
			Email:    signinEmail,
			Password: signinPassword,
		})
		if err != nil {
			return err
		}

		fmt.Printf("Signed in as %s (%s tier).\n", user.Name, user.Tier)
		fmt.Printf("Translations remaining this month: %s\n", app.session.RemainingUses())
		return nil
	},
}

var signoutCmd = &cobra.Command{
	Use:   "signout",
	Short: "Sign out and clear local state",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		// Best effort server-side; local state is cleared regardless.
		app.session.SignOut(cmd.Context())
		fmt.Println("Signed out.")
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current session and quota",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if !app.session.IsAuthenticated() {
			fmt.Println("Not signed in.")
			return nil
		}

		// Refresh opportunistically; the cached snapshot still serves if
		// the network is down.
		if err := app.session.RefreshUser(cmd.Context()); err != nil {
			app.log.Warn("user refresh failed", zap.Error(err))
		}

		user := app.session.User()
		if user == nil {
			fmt.Println("Not signed in.")
			return nil
		}

		fmt.Printf("Name:  %s\n", user.Name)
		fmt.Printf("Email: %s\n", user.Email)
		fmt.Printf("Tier:  %s\n", user.Tier)
		limit := fmt.Sprintf("%d", user.TranslationsLimit)
		if user.TranslationsLimit == api.UnlimitedTranslations {
			limit = "∞"
		}
		fmt.Printf("Usage: %d / %s this month (%s remaining)\n",
			user.TranslationsUsed, limit, app.session.RemainingUses())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(signupCmd)
	rootCmd.AddCommand(signinCmd)
	rootCmd.AddCommand(signoutCmd)
	rootCmd.AddCommand(whoamiCmd)

	signupCmd.Flags().StringVar(&signupName, "name", "", "Full name (required)")
	signupCmd.Flags().StringVar(&signupEmail, "email", "", "Email address (required)")
	signupCmd.Flags().StringVar(&signupPassword, "password", "", "Password, minimum 6 characters (required)")
	signupCmd.Flags().BoolVar(&acceptTerms, "accept-terms", false, "Accept the terms of service (required)")
	signupCmd.MarkFlagRequired("name")
	signupCmd.MarkFlagRequired("email")
	signupCmd.MarkFlagRequired("password")

	signinCmd.Flags().StringVar(&signinEmail, "email", "", "Email address (required)")
	signinCmd.Flags().StringVar(&signinPassword, "password", "", "Password (required)")
	signinCmd.MarkFlagRequired("email")
	signinCmd.MarkFlagRequired("password")
}
