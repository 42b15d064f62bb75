// Package server runs the ops HTTP server started by "claimforge serve".
// It serves whatever handler it is given, typically the health probes and
// the Prometheus endpoint, and shuts down gracefully when its context ends.
package server
