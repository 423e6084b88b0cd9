package mvcc

import (
	"errors"
	"fmt"
)

var (
	// ErrNoSuchTransactionID is returned when the supplied TxID is not in
	// the live transaction table.
	ErrNoSuchTransactionID = errors.New("mvcc: no such transaction id")

	// ErrTxTerminated is returned when operating on a transaction that has
	// already committed or rolled back.
	ErrTxTerminated = errors.New("mvcc: transaction is terminated")

	// ErrWriteWriteConflict is returned when a second writer touches a row
	// already being written by another active transaction. The later
	// writer has already been rolled back by the time this is returned.
	ErrWriteWriteConflict = errors.New("mvcc: write-write conflict")

	// ErrIO wraps a durable log persistence failure.
	ErrIO = errors.New("mvcc: log i/o error")

	// ErrCorrupt is returned when a log record fails to decode during
	// recovery.
	ErrCorrupt = errors.New("mvcc: corrupt log record")
)

// invariantViolation panics reporting a state the visibility predicates
// should never reach (spec.md §9). Transactions stay in the transaction
// table after they end, but Commit and Rollback lock every chain in the
// write set before leaving TxActive, so no reader can observe a marker
// owned by a transaction in Preparing/Committed/Aborted/Terminated.
func invariantViolation(format string, args ...any) {
	panic(fmt.Sprintf("mvcc: invariant violation: "+format, args...))
}
