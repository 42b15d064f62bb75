// Package ingest rebuilds the rule snapshot from CMS distributions.
//
// A build runs in two phases. Each requested edit kind is staged first:
// its distribution is located on the configured index page (or read from
// a local path), downloaded, extracted and normalized into canonical rows.
// Only when every kind staged successfully are the rows committed, in one
// transaction, through the Committer. A failed build leaves the previous
// snapshot in place.
//
//	b := ingest.NewBuilder(&cfg.Sources, st, ingest.Deps{Mirror: mirror, Metrics: collector})
//	report, err := b.Build(ctx, []edits.Kind{edits.KindPTP, edits.KindMUE})
//
// The subpackages hold the stages: locator, fetch, extract and normalize.
// Package schedule triggers builds from cron and from local file changes.
package ingest
