package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"claimforge/compliance/pkg/cli"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/ingest/locator"
)

var locateKind string

var locateCmd = &cobra.Command{
	Use:   "locate",
	Short: "List the ranked download candidates for an edit kind",
	Long: `Fetch the configured index page for the kind and print every matching
download link in the order a build would try them. Nothing is downloaded.`,
	Example: `  claimforge locate --kind ptp`,
	RunE:    runLocate,
}

func init() {
	locateCmd.Flags().StringVarP(&locateKind, "kind", "k", "", "edit kind (ptp, mue, aoc)")
	_ = locateCmd.MarkFlagRequired("kind")
	rootCmd.AddCommand(locateCmd)
}

func runLocate(cmd *cobra.Command, args []string) error {
	kind, err := edits.ParseKind(locateKind)
	if err != nil {
		return cli.NewConfigError("--kind", err.Error())
	}

	ctx, cancel := cli.SetupSignalHandler(cmd.Context())
	defer cancel()

	a, err := openApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	cands, err := a.builder.Locate(ctx, kind)
	if err != nil {
		return cli.NewCommandError("locate", err)
	}
	return render(cmd.OutOrStdout(), format, cands, candidateTable(cands))
}

type candidateTable []locator.Candidate

func (t candidateTable) Header() []string {
	return []string{"rank", "score", "date", "url", "text"}
}

func (t candidateTable) Rows() [][]string {
	rows := make([][]string, 0, len(t))
	for i, c := range t {
		date := "-"
		if !c.Date.IsZero() {
			date = c.Date.Format("2006-01-02")
		}
		rows = append(rows, []string{strconv.Itoa(i + 1), strconv.Itoa(c.Score), date, c.URL, c.Text})
	}
	return rows
}
