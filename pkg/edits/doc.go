// Package edits defines the canonical regulatory edit records shared by the
// ingestion pipeline, the rule store and the validator.
//
// # Edit Families
//
// Three edit families are supported:
//
//   - PTP (Procedure-to-Procedure): directional code pairs that may not be
//     billed together, or only with a bypass modifier
//   - MUE (Medically Unlikely Edits): per-code unit ceilings
//   - AOC (Add-On Code): add-on codes and the primary codes they require
//
// # Errors
//
// Build failures are reported as *BuildError values wrapping one of the
// sentinel errors (ErrSourceNotFound, ErrDownloadFailed, ErrEmptyDataset).
// Store read failures wrap ErrRuleStoreUnavailable so callers can tell a
// service that is not ready apart from a claim with compliance errors.
package edits
