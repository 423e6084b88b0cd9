package mvcc

// DurableLog is the pluggable durable-log collaborator (spec.md §4.6): an
// ordered stream of LogRecords, readable in append order at startup. The
// core only depends on this interface; NoopLog below is the no-op
// implementation and pkg/wal supplies the file-backed one.
type DurableLog interface {
	// Append durably persists rec. It must complete before the commit
	// that produced rec is reported successful to the caller.
	Append(rec LogRecord) error

	// Replay returns every LogRecord previously appended, in append
	// order. A truncated trailing record is discarded rather than
	// returned or erroring.
	Replay() ([]LogRecord, error)
}

// NoopLog discards everything written to it and replays nothing. It is
// the default for engines that don't need crash recovery (tests, pure
// in-memory use).
type NoopLog struct{}

// Append implements DurableLog.
func (NoopLog) Append(LogRecord) error { return nil }

// Replay implements DurableLog.
func (NoopLog) Replay() ([]LogRecord, error) { return nil, nil }

var _ DurableLog = NoopLog{}
