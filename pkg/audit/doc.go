// Package audit provides the immutable, append-only audit trail.
//
// Every mutating action produces an Entry capturing who changed what, when
// and from where, with before/after snapshots for updates. Entries are
// created synchronously at the decision point and persisted asynchronously
// by the Recorder, which never blocks the request path beyond a bounded
// enqueue. Persistence failures are retried with backoff and then surfaced
// to an alert sink and dropped: an audit-write failure must never fail the
// business operation it describes, and must never be silently swallowed.
//
// The store exposes inserts and queries only. Nothing in this package can
// mutate or delete an entry once written.
package audit
