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
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/osolomko/doctran/internal/api"
)

var (
	documentsRefresh bool
	downloadOutput   string
)

var documentsCmd = &cobra.Command{
	Use:   "documents",
	Short: "List your documents",
	Long: `List your documents and their translation status.

By default the locally cached list is shown; --refresh fetches the
current list from the service first.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if documentsRefresh {
			docs, err := app.api.Documents(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to fetch documents: %w", err)
			}
			if err := app.store.ReplaceDocuments(cmd.Context(), docs); err != nil {
				return fmt.Errorf("failed to update document cache: %w", err)
			}
		}

		docs, err := app.store.ListDocuments(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to list documents: %w", err)
		}

		if len(docs) == 0 {
			fmt.Println("No documents yet. Upload your first .docx with \"doctran translate\".")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "DOC ID\tFILENAME\tSTATUS\tUPLOADED")
		for _, d := range docs {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
				d.DocID, d.Filename, d.Status, d.UploadTime.Format("2006-01-02 15:04"))
		}
		if err := w.Flush(); err != nil {
			return err
		}

		completed, processing, failed := statusCounts(docs)
		fmt.Printf("\n%d documents: %d completed, %d processing, %d failed\n",
			len(docs), completed, processing, failed)
		return nil
	},
}

var downloadCmd = &cobra.Command{
	Use:   "download <doc-id>",
	Short: "Download a translated document",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		docID := args[0]
		output := downloadOutput
		if output == "" {
			output = downloadName(cmd, app, docID)
		}

		f, err := os.Create(output)
		if err != nil {
			return fmt.Errorf("failed to create output file: %w", err)
		}
		defer f.Close()

		if err := app.api.Download(cmd.Context(), docID, f); err != nil {
			os.Remove(output)
			return fmt.Errorf("download failed: %w", err)
		}

		fmt.Printf("Downloaded %s\n", output)
		return nil
	},
}

// downloadName derives the output filename from the cached document
// record, falling back to the document ID.
func downloadName(cmd *cobra.Command, app *app, docID string) string {
	docs, err := app.store.ListDocuments(cmd.Context())
	if err == nil {
		for _, d := range docs {
			if d.DocID == docID && d.Filename != "" {
				return d.Filename
			}
		}
	}
	return docID + ".docx"
}

// statusCounts is used by the documents summary line.
func statusCounts(docs []api.Document) (completed, processing, failed int) {
	for _, d := range docs {
		switch d.Status {
		case api.DocStatusCompleted:
			completed++
		case api.DocStatusFailed:
			failed++
		default:
			processing++
		}
	}
	return
}

func init() {
	rootCmd.AddCommand(documentsCmd)
	rootCmd.AddCommand(downloadCmd)

	documentsCmd.Flags().BoolVar(&documentsRefresh, "refresh", false, "Fetch the current list from the service")
	downloadCmd.Flags().StringVarP(&downloadOutput, "output", "o", "", "Output path (default: original filename)")
}
