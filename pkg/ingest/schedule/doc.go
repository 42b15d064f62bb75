// Package schedule triggers snapshot rebuilds from outside the engine: a
// cron Scheduler for periodic refreshes and an InboxWatcher that rebuilds
// a kind when its local source file changes. Both are started only by the
// serve command.
package schedule
