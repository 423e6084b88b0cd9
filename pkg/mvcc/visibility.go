package mvcc

// txLookup resolves a TxID to its live Transaction record. It is
// satisfied by the transaction table under the engine lock; the
// visibility predicates never touch the table themselves.
type txLookup func(TxID) (*Transaction, bool)

// isVisible is the combined visibility predicate: ∧ of begin- and
// end-visibility (spec.md §4.4).
func isVisible(observer *Transaction, v *RowVersion, txs txLookup) bool {
	return isBeginVisible(observer, v, txs) && isEndVisible(observer, v, txs)
}

// isBeginVisible decides whether v's creation is visible to observer.
func isBeginVisible(observer *Transaction, v *RowVersion, txs txLookup) bool {
	if v.Begin.IsTimestamp() {
		return observer.BeginTS >= v.Begin.TimestampValue()
	}

	creator, ok := txs(v.Begin.TxIDValue())
	if !ok {
		// The creating transaction has already been fully removed from
		// the live table without rewriting this marker to a timestamp,
		// which cannot happen under the commit/rollback protocol.
		invariantViolation("begin marker references unknown tx %d", v.Begin.TxIDValue())
	}

	switch creator.State {
	case TxActive:
		// A transaction sees its own current (not yet end-marked)
		// uncommitted writes immediately; nobody else does.
		return observer.ID == creator.ID && v.End == nil
	default:
		// Commit and Rollback hold the chain lock of every row in the
		// write set from before the transaction leaves TxActive until
		// that row's markers are rewritten or discarded, so a reader
		// can never observe Preparing/Committed/Aborted/Terminated on
		// a begin marker.
		invariantViolation("begin marker references tx %d in unreachable state %s", creator.ID, creator.State)
		return false
	}
}

// isEndVisible decides whether v's end-marking (if any) is visible to
// observer.
func isEndVisible(observer *Transaction, v *RowVersion, txs txLookup) bool {
	if v.End == nil {
		return true
	}
	end := *v.End

	if end.IsTimestamp() {
		return observer.BeginTS < end.TimestampValue()
	}

	deleter, ok := txs(end.TxIDValue())
	if !ok {
		invariantViolation("end marker references unknown tx %d", end.TxIDValue())
	}

	switch deleter.State {
	case TxActive:
		// The deleting transaction does not see its own delete (it has
		// logically removed the row from its own snapshot); everyone
		// else still sees the pre-delete version because the delete is
		// not yet committed.
		return observer.ID != deleter.ID
	default:
		invariantViolation("end marker references tx %d in unreachable state %s", deleter.ID, deleter.State)
		return false
	}
}

// isWriteWriteConflict reports whether observer attempting to write v
// collides with another still-active writer (spec.md §4.4).
func isWriteWriteConflict(observer *Transaction, v *RowVersion, txs txLookup) bool {
	if v.End == nil || v.End.IsTimestamp() {
		return false
	}

	owner, ok := txs(v.End.TxIDValue())
	if !ok {
		invariantViolation("end marker references unknown tx %d", v.End.TxIDValue())
	}
	if owner.State != TxActive {
		invariantViolation("end marker references tx %d in unreachable state %s", owner.ID, owner.State)
	}
	return observer.ID != owner.ID
}
