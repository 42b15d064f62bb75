// Package gate decides whether the rule snapshot can serve validations and
// coordinates rebuilds of it.
//
// The engine never rebuilds on its own. Callers either run Rebuild
// explicitly, call EnsureReady before validating, or let the serve
// command's scheduler and inbox watcher trigger rebuilds.
package gate
