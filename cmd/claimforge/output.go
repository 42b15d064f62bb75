package main

import (
	"io"

	"claimforge/compliance/pkg/cli"
)

// render writes data as JSON, or table as text or CSV.
func render(w io.Writer, f cli.OutputFormat, data any, table cli.Table) error {
	if f == cli.FormatJSON {
		return cli.NewFormatter(f).FormatTo(w, data)
	}
	return cli.NewFormatter(f).FormatTo(w, table)
}

// shortDigest trims a hex digest for tabular output.
func shortDigest(d string) string {
	if len(d) > 12 {
		return d[:12]
	}
	return d
}
