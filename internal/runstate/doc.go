// Package runstate persists the post counter and everything that must survive
// between runs: run history, the used-asset ledger, recent quotes for
// duplicate detection, and publish attempts awaiting manual reconciliation.
//
// Two backends implement Store. SQLiteStore (default) keeps state in a WAL
// database and commits in one transaction; FileStore keeps a single JSON
// document replaced atomically with write-temp-then-rename. Both guarantee
// that the counter, ledger and run record change together or not at all.
//
// Lock provides cross-process exclusion so only one run executes at a time.
package runstate
