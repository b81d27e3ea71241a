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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/osolomko/doctran/internal/job"
	"github.com/osolomko/doctran/internal/lang"
)

var (
	translateInput  string
	translateSource string
	translateTarget string
)

var translateCmd = &cobra.Command{
	Use:   "translate",
	Short: "Upload a document and translate it",
	Long: `Upload a .docx document and run it through translation.

Small documents translate within the request; large ones are dispatched
as a server-side task and tracked by polling. Press Ctrl-C to cancel a
background job (direct translations cannot be cancelled once in flight).

Language codes follow the service: the eleven official South African
languages plus en, fr and pt. Use "-s auto" to let the server detect the
source language.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sourceLang, err := lang.Normalize(translateSource)
		if err != nil {
			return err
		}
		targetLang, err := lang.Normalize(translateTarget)
		if err != nil {
			return err
		}
		if targetLang == lang.Auto {
			return fmt.Errorf("target language cannot be %q", lang.Auto)
		}

		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		orch := job.New(app.api, app.session, app.store, app.log, job.Config{})
		app.session.OnSignOut(orch.Abort)
		orch.SetOnUpdate(printProgress)

		if err := orch.Select(translateInput); err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		if err := orch.Start(ctx, sourceLang, targetLang); err != nil {
			if errors.Is(err, job.ErrQuotaExceeded) {
				fmt.Fprintln(os.Stderr, "Translation limit reached. Run \"doctran plans\" to upgrade.")
			}
			return err
		}

		done := orch.Done()
		select {
		case <-done:
		case <-ctx.Done():
			if cancelErr := orch.Cancel(cmd.Context()); cancelErr != nil {
				fmt.Fprintf(os.Stderr, "\nCannot cancel: %v\n", cancelErr)
				<-done
			} else {
				fmt.Fprintln(os.Stderr, "\nTranslation cancelled.")
				return nil
			}
		}

		snap := orch.Snapshot()
		fmt.Fprintln(os.Stderr)
		switch snap.Phase {
		case job.PhaseDone:
			fmt.Printf("Translation completed: %s\n", snap.Filename)
			fmt.Printf("Translations remaining this month: %s\n", app.session.RemainingUses())
			fmt.Println("Download with: doctran documents")
			return nil
		case job.PhaseCancelled:
			fmt.Println("Translation cancelled.")
			return nil
		default:
			return errors.New(snap.Message)
		}
	},
}

// printProgress renders one status line per update, overwriting in place.
func printProgress(snap job.Snapshot) {
	switch snap.Phase {
	case job.PhaseUploading, job.PhaseTranslating:
		marker := ""
		if snap.ProgressKind == job.ProgressEstimated {
			marker = "~"
		}
		fmt.Fprintf(os.Stderr, "\r%-12s %s%3d%%  %s", snap.Phase, marker, snap.Progress, snap.Message)
	}
}

func init() {
	rootCmd.AddCommand(translateCmd)

	translateCmd.Flags().StringVarP(&translateInput, "input", "i", "", "Document to translate, .docx only (required)")
	translateCmd.Flags().StringVarP(&translateSource, "source", "s", lang.Auto, "Source language code")
	translateCmd.Flags().StringVarP(&translateTarget, "target", "t", "", "Target language code (required)")

	translateCmd.MarkFlagRequired("input")
	translateCmd.MarkFlagRequired("target")
}
