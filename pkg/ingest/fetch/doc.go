// Package fetch downloads CMS edit distributions.
//
// Client is shared by the locator (index pages) and the Fetcher (archives).
// It rate limits every attempt and retries transient failures with
// exponential backoff. Fetcher writes each download atomically into the
// download directory and, when configured, mirrors it to an S3-compatible
// bucket.
package fetch
