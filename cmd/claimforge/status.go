package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"claimforge/compliance/pkg/cli"
	"claimforge/compliance/pkg/edits"
	"claimforge/compliance/pkg/rules/store"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the rule store contents and the latest build of each kind",
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

// storeStatus is the JSON shape of the status command.
type storeStatus struct {
	Ready  bool                `json:"ready"`
	Driver string              `json:"driver"`
	Counts store.TableCounts   `json:"counts"`
	Builds []edits.BuildRecord `json:"builds"`
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	a, err := openApp(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ready, err := a.gate.Ready(ctx)
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	counts, err := a.store.Counts(ctx)
	if err != nil {
		return cli.NewCommandError("status", err)
	}
	builds, err := a.store.LatestBuilds(ctx)
	if err != nil {
		return cli.NewCommandError("status", err)
	}

	st := storeStatus{Ready: ready, Driver: a.store.Driver(), Counts: counts, Builds: builds}
	if st.Builds == nil {
		st.Builds = []edits.BuildRecord{}
	}
	return render(cmd.OutOrStdout(), format, st, statusTable{st})
}

type statusTable struct {
	status storeStatus
}

func (t statusTable) Header() []string {
	return []string{"kind", "rows", "build", "finished", "digest", "source"}
}

func (t statusTable) Rows() [][]string {
	counts := map[edits.Kind]int{
		edits.KindPTP: t.status.Counts.PTP,
		edits.KindMUE: t.status.Counts.MUE,
		edits.KindAOC: t.status.Counts.AOC,
	}
	byKind := make(map[edits.Kind]edits.BuildRecord, len(t.status.Builds))
	for _, b := range t.status.Builds {
		byKind[b.Kind] = b
	}

	var rows [][]string
	for _, k := range edits.AllKinds() {
		row := []string{string(k), strconv.Itoa(counts[k]), "-", "-", "-", "-"}
		if b, ok := byKind[k]; ok {
			source := b.SourceURL
			if source == "" {
				source = strings.Join(b.SourceFiles, ",")
			}
			row[2] = b.BuildID
			row[3] = b.FinishedAt.UTC().Format(time.RFC3339)
			row[4] = shortDigest(b.Digest)
			row[5] = source
		}
		rows = append(rows, row)
	}
	return rows
}
