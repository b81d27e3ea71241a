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
	"os"
	"sort"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/osolomko/doctran/internal/api"
	"github.com/osolomko/doctran/internal/payment"
)

var plansCmd = &cobra.Command{
	Use:   "plans",
	Short: "Show subscription plans",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIER\tPRICE\tTRANSLATIONS/MONTH")
		for _, p := range payment.Plans {
			limit := fmt.Sprintf("%d", p.MonthlyLimit)
			if p.MonthlyLimit == api.UnlimitedTranslations {
				limit = "unlimited"
			}
			fmt.Fprintf(w, "%s\tR%d\t%s\n", p.Tier, p.PriceZAR, limit)
		}
		if err := w.Flush(); err != nil {
			return err
		}

		for _, p := range payment.Plans {
			fmt.Printf("\n%s:\n", p.Name)
			for _, f := range p.Features {
				fmt.Printf("  - %s\n", f)
			}
		}
		fmt.Println("\nUpgrade with: doctran upgrade <tier>")
		return nil
	},
}

var upgradeCmd = &cobra.Command{
	Use:   "upgrade <tier>",
	Short: "Upgrade your subscription",
	Long: `Start an upgrade to a paid tier.

The payment itself happens on the external provider's page. Once you have
paid there, run "doctran upgrade confirm" to verify the payment and apply
the new tier to your account.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		flow := payment.NewFlow(app.api, app.session, app.store, app.log)
		redirect, err := flow.Begin(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		if redirect == nil || redirect.URL == "" {
			redirect = fallbackRedirect(args[0])
		}

		fmt.Printf("Open the payment page to complete the purchase:\n\n  %s\n\n", redirect.URL)
		if len(redirect.Fields) > 0 {
			fmt.Println("POST the following form fields:")
			keys := make([]string, 0, len(redirect.Fields))
			for k := range redirect.Fields {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Printf("  %s=%s\n", k, redirect.Fields[k])
			}
			fmt.Println()
		}
		fmt.Println("After paying, run: doctran upgrade confirm")
		return nil
	},
}

var upgradeConfirmCmd = &cobra.Command{
	Use:   "confirm",
	Short: "Verify the payment and apply the upgrade",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		flow := payment.NewFlow(app.api, app.session, app.store, app.log)

		// The pending-tier marker carries the attempt across process
		// lifetimes: rehydrate from it, record the user's assertion that
		// the external payment went through, then verify.
		if err := flow.Rehydrate(cmd.Context()); err != nil {
			return err
		}
		if err := flow.ConfirmPaid(); err != nil {
			return err
		}

		resp, err := flow.Verify(cmd.Context())
		if err != nil {
			fmt.Fprintln(os.Stderr, "Verification failed. You can retry with \"doctran upgrade confirm\" or reopen the payment page.")
			return err
		}

		fmt.Printf("Upgrade applied: you are now on the %s tier.\n", resp.Tier)
		fmt.Printf("Translations remaining this month: %s\n", app.session.RemainingUses())
		return nil
	},
}

var upgradeResumeCmd = &cobra.Command{
	Use:   "resume <success|cancel>",
	Short: "Resume an upgrade after the provider redirect",
	Long: `Resume a pending upgrade using the outcome the payment provider
redirected back with. "success" proceeds straight to verification;
"cancel" steps back, keeping the pending attempt for later.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		flow := payment.NewFlow(app.api, app.session, app.store, app.log)
		if err := flow.Resume(cmd.Context(), args[0]); err != nil {
			return err
		}

		if flow.State() != payment.StateAwaitingVerification {
			fmt.Println("Payment cancelled. The pending upgrade is kept; resume later or run \"doctran upgrade abandon\".")
			return nil
		}

		resp, err := flow.Verify(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("Upgrade applied: you are now on the %s tier.\n", resp.Tier)
		return nil
	},
}

var upgradeAbandonCmd = &cobra.Command{
	Use:   "abandon",
	Short: "Drop a pending upgrade attempt",
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		flow := payment.NewFlow(app.api, app.session, app.store, app.log)
		if err := flow.Abandon(cmd.Context()); err != nil {
			return err
		}
		fmt.Println("Pending upgrade abandoned.")
		return nil
	},
}

// fallbackRedirect builds the PayFast process form locally when the
// server's initiate response carries no redirect, using the configured
// merchant details and the plan price.
func fallbackRedirect(tier string) *api.PaymentRedirect {
	plan, _ := payment.PlanFor(tier)
	fields := map[string]string{
		"merchant_id":  viper.GetString("payfast.merchant_id"),
		"merchant_key": viper.GetString("payfast.merchant_key"),
		"return_url":   viper.GetString("payfast.return_url"),
		"cancel_url":   viper.GetString("payfast.cancel_url"),
		"custom_str1":  tier,
	}
	if plan != nil {
		fields["amount"] = fmt.Sprintf("%d.00", plan.PriceZAR)
		fields["item_name"] = plan.Name + " Subscription - Academic Document Translator"
	}
	return &api.PaymentRedirect{
		URL:    viper.GetString("payfast.process_url"),
		Fields: fields,
	}
}

func init() {
	rootCmd.AddCommand(plansCmd)
	rootCmd.AddCommand(upgradeCmd)

	upgradeCmd.AddCommand(upgradeConfirmCmd)
	upgradeCmd.AddCommand(upgradeResumeCmd)
	upgradeCmd.AddCommand(upgradeAbandonCmd)
}
