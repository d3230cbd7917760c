package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/medtriage/internal/analyzer"
	"github.com/raysh454/medtriage/internal/logging"
	"github.com/raysh454/medtriage/internal/report"
	"github.com/raysh454/medtriage/internal/scanjob"
)

func newScanCommand(rt *runtime) *cobra.Command {
	var (
		asJSON      bool
		contentType string
	)
	cmd := &cobra.Command{
		Use:     "scan <file>",
		Aliases: []string{"s"},
		Short:   "Upload a scan for analysis and print its report",
		Long: `Upload an image file to the analysis service. On success the result is
saved to history and its report is printed. A failed scan leaves history
untouched and exits non-zero.

Examples:
  medtriage scan chest.dcm
  medtriage scan xray.png --content-type image/png
  medtriage scan chest.dcm --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			if _, err := a.Scans.SelectFile(); err != nil {
				return err
			}
			up, f, err := analyzer.OpenUpload(args[0])
			if err != nil {
				if _, cerr := a.Scans.CancelSelection(); cerr != nil {
					a.Logger.Warn("cancel selection", logging.Err(cerr))
				}
				return err
			}
			defer f.Close()
			if contentType != "" {
				up.ContentType = contentType
			}

			job, err := a.Scans.Submit(cmd.Context(), up)
			if err != nil {
				return err
			}
			return printJob(cmd, job, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the finished job as JSON")
	cmd.Flags().StringVar(&contentType, "content-type", "", "Content type of the upload (default from config)")
	return cmd
}

func printJob(cmd *cobra.Command, job scanjob.Job, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(job); err != nil {
			return err
		}
	}

	if job.Status == scanjob.StatusFailed {
		msg := "Server Error"
		if job.Error != nil {
			msg = job.Error.Message
		}
		if !asJSON {
			fmt.Fprintf(out, "Scan failed: %s\n", msg)
		}
		return fmt.Errorf("scan failed: %s", msg)
	}
	if asJSON {
		return nil
	}

	fmt.Fprint(out, report.Render(*job.Result).Text())
	if job.Entry != nil {
		fmt.Fprintf(out, "\nSaved to history as %s\n", job.Entry.ID)
	} else {
		fmt.Fprintf(out, "\nNot saved to history: %s\n", job.ArchiveError)
	}
	return nil
}
