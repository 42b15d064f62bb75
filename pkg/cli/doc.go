/*
Package cli provides command-line interface utilities for claimforge.

The cli package includes output formatters, a progress reporter, exit codes
and signal handling used by the claimforge command.

Output Formatting:

Results can be printed as text, JSON or, for tabular results, CSV:

	formatter := cli.NewFormatter(cli.FormatJSON)
	if err := formatter.FormatTo(os.Stdout, report); err != nil {
		return err
	}

Types implementing Table render as aligned columns in text mode.

Progress Reporting:

	progress := cli.NewProgressReporter(os.Stderr)
	progress.Start(int64(len(kinds)))
	progress.Step("ptp")
	progress.Finish()

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, cancel := cli.SetupSignalHandler(context.Background())
	defer cancel()
*/
package cli
