package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raysh454/medtriage/internal/report"
)

func newReportCommand(rt *runtime) *cobra.Command {
	var (
		format string
		share  bool
	)
	cmd := &cobra.Command{
		Use:     "report <id>",
		Aliases: []string{"r"},
		Short:   "Export the report of a saved result",
		Long: `Render a saved result as an HTML or PDF file in the report directory.
With --share the file is also published and a link is printed; the link is
presigned when MinIO sharing is configured.

Examples:
  medtriage report 0192f3c4-...
  medtriage report 0192f3c4-... -f pdf --share
  medtriage report 0192f3c4-... --out ./exports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			art, err := a.ExportEntry(cmd.Context(), args[0], report.Format(format))
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote %s (%d bytes)\n", art.Path, art.Size)
			if !share {
				return nil
			}
			link, err := a.Share(cmd.Context(), art)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Shared at %s\n", link)
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "Export format, html or pdf (default from config)")
	cmd.Flags().BoolVar(&share, "share", false, "Publish the exported file and print its link")
	cmd.Flags().String("out", "", "Directory to write into (overrides report.dir)")
	_ = rt.v.BindPFlag("report.dir", cmd.Flags().Lookup("out"))
	return cmd
}
