package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/raysh454/medtriage/internal/model"
	"github.com/raysh454/medtriage/internal/report"
)

func newHistoryCommand(rt *runtime) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Aliases: []string{"h"},
		Short:   "Browse saved analysis results",
	}
	cmd.AddCommand(newHistoryListCommand(rt), newHistoryShowCommand(rt), newHistoryDiffCommand(rt))
	return cmd
}

// historyRow is one line of `history list`.
type historyRow struct {
	ID       string          `json:"id" yaml:"id"`
	SavedAt  time.Time       `json:"saved_at" yaml:"saved_at"`
	Patient  string          `json:"patient" yaml:"patient"`
	Date     string          `json:"date" yaml:"date"`
	Risk     model.RiskLevel `json:"risk" yaml:"risk"`
	Findings int             `json:"findings" yaml:"findings"`
}

func newHistoryListCommand(rt *runtime) *cobra.Command {
	var (
		format string
		limit  int
	)
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List saved results, newest first",
		Long: `List saved results, most recent first.

Examples:
  medtriage history list
  medtriage history list -n 5
  medtriage history list -f yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			switch format {
			case "table", "json", "yaml":
			default:
				return fmt.Errorf("unknown format %q (want table, json or yaml)", format)
			}
			a, err := rt.openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entries := a.History.Load(cmd.Context())
			if limit > 0 && limit < len(entries) {
				entries = entries[:limit]
			}
			rows := make([]historyRow, 0, len(entries))
			for _, e := range entries {
				rows = append(rows, historyRow{
					ID:       e.ID,
					SavedAt:  e.SavedAt,
					Patient:  e.PatientName,
					Date:     e.AnalysisDate,
					Risk:     model.ClassifyRisk(e.AnalysisResult),
					Findings: len(e.Findings),
				})
			}
			return writeRows(cmd.OutOrStdout(), format, rows)
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "table", "Output format (table, json, yaml)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Show at most n results (0 = all)")
	return cmd
}

func writeRows(out io.Writer, format string, rows []historyRow) error {
	switch format {
	case "json":
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer enc.Close()
		return enc.Encode(rows)
	}

	if len(rows) == 0 {
		fmt.Fprintln(out, "No saved results.")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSAVED\tPATIENT\tDATE\tRISK\tFINDINGS")
	for _, r := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%d\n",
			r.ID, r.SavedAt.Local().Format("2006-01-02 15:04"), r.Patient, r.Date, r.Risk, r.Findings)
	}
	return w.Flush()
}

func newHistoryShowCommand(rt *runtime) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print the report of a saved result",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			entry, err := a.History.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(entry)
			}
			_, err = io.WriteString(cmd.OutOrStdout(), report.Render(entry.AnalysisResult).Text())
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the saved entry as JSON")
	return cmd
}

func newHistoryDiffCommand(rt *runtime) *cobra.Command {
	return &cobra.Command{
		Use:   "diff <base-id> <head-id>",
		Short: "Show how the report of one saved result differs from another",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := rt.openUnlocked(cmd)
			if err != nil {
				return err
			}
			defer a.Close()

			base, err := a.History.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			head, err := a.History.Get(cmd.Context(), args[1])
			if err != nil {
				return err
			}
			changes := report.Diff(report.Render(base.AnalysisResult), report.Render(head.AnalysisResult))
			out := cmd.OutOrStdout()
			if len(changes) == 0 {
				fmt.Fprintln(out, "Reports are identical.")
				return nil
			}
			for _, c := range changes {
				sign := "+"
				if c.Type == report.ChangeRemoved {
					sign = "-"
				}
				fmt.Fprintf(out, "%s %s\n", sign, strings.TrimRight(c.Line, "\n"))
			}
			return nil
		},
	}
}
