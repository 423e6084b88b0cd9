package mvcc

import (
	"fmt"

	"github.com/google/uuid"
)

// RowID is a composite, totally-ordered row identity. Ordering is
// lexicographic on (TableID, RowNum), matching the prefix-range semantics
// range() needs over a single table.
type RowID struct {
	TableID uint64
	RowNum  uint64
}

// Less reports whether id sorts before other, lexicographically on
// (TableID, RowNum).
func (id RowID) Less(other RowID) bool {
	if id.TableID != other.TableID {
		return id.TableID < other.TableID
	}
	return id.RowNum < other.RowNum
}

func (id RowID) String() string {
	return fmt.Sprintf("(%d,%d)", id.TableID, id.RowNum)
}

// Row is an uninterpreted payload identified by RowID. The core never
// looks inside Data.
type Row struct {
	ID   RowID
	Data []byte
}

// markerKind distinguishes the two states a VersionMarker can be in.
type markerKind uint8

const (
	markerTimestamp markerKind = iota
	markerTxID
)

// VersionMarker is the begin/end marker on a RowVersion: either a
// committed Timestamp or an in-flight TxID. The two must never collapse
// into a single representation before commit (spec.md §9).
type VersionMarker struct {
	kind  markerKind
	value uint64
}

// Timestamp constructs a committed marker.
func Timestamp(ts uint64) VersionMarker { return VersionMarker{kind: markerTimestamp, value: ts} }

// TxIDMarker constructs an in-flight marker bound to tx.
func TxIDMarker(tx TxID) VersionMarker { return VersionMarker{kind: markerTxID, value: uint64(tx)} }

// IsTimestamp reports whether the marker carries a committed timestamp.
func (m VersionMarker) IsTimestamp() bool { return m.kind == markerTimestamp }

// IsTxID reports whether the marker carries an in-flight transaction id.
func (m VersionMarker) IsTxID() bool { return m.kind == markerTxID }

// TimestampValue returns the marker's timestamp value; only meaningful
// when IsTimestamp() is true.
func (m VersionMarker) TimestampValue() uint64 { return m.value }

// TxIDValue returns the marker's transaction id; only meaningful when
// IsTxID() is true.
func (m VersionMarker) TxIDValue() TxID { return TxID(m.value) }

func (m VersionMarker) String() string {
	if m.IsTimestamp() {
		return fmt.Sprintf("ts(%d)", m.value)
	}
	return fmt.Sprintf("tx(%d)", m.value)
}

// RowVersion is a single entry in a row's version chain. A version is
// current iff End is nil. A version is committed iff both markers
// (when present) carry timestamps.
type RowVersion struct {
	Begin VersionMarker
	End   *VersionMarker
	Row   Row
}

// Clone returns a deep copy of v suitable for embedding in a LogRecord
// independent of the live version chain.
func (v *RowVersion) Clone() RowVersion {
	data := make([]byte, len(v.Row.Data))
	copy(data, v.Row.Data)
	clone := RowVersion{
		Begin: v.Begin,
		Row:   Row{ID: v.Row.ID, Data: data},
	}
	if v.End != nil {
		end := *v.End
		clone.End = &end
	}
	return clone
}

// TxID is a unique, monotonically-allocated transaction identifier. 0 is
// reserved and never issued by Begin.
type TxID uint64

// TxState is the lifecycle state of a Transaction.
type TxState int

const (
	TxActive TxState = iota
	TxPreparing
	TxCommitted
	TxAborted
	TxTerminated
)

func (s TxState) String() string {
	switch s {
	case TxActive:
		return "active"
	case TxPreparing:
		return "preparing"
	case TxCommitted:
		return "committed"
	case TxAborted:
		return "aborted"
	case TxTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Transaction is a transaction's record in the engine's transaction
// table. The record stays in the table after the transaction commits or
// rolls back, carrying its terminal State. Read/write sets and State are
// guarded by the engine's
// coarse lock (spec.md §5): the transaction table is never consulted
// without it held.
type Transaction struct {
	ID      TxID
	BeginTS uint64
	State   TxState

	// CorrelationID is a v4 UUID stamped at Begin purely for
	// observability (audit events). It plays no role in any
	// visibility or conflict decision.
	CorrelationID uuid.UUID

	WriteSet map[RowID]struct{}
	ReadSet  map[RowID]struct{}
}

func newTransaction(id TxID, beginTS uint64) *Transaction {
	return &Transaction{
		ID:            id,
		BeginTS:       beginTS,
		State:         TxActive,
		CorrelationID: uuid.New(),
		WriteSet:      make(map[RowID]struct{}),
		ReadSet:       make(map[RowID]struct{}),
	}
}

func (t *Transaction) addToWriteSet(id RowID) { t.WriteSet[id] = struct{}{} }
func (t *Transaction) addToReadSet(id RowID)   { t.ReadSet[id] = struct{}{} }

func (t *Transaction) String() string {
	return fmt.Sprintf("{id: %d, begin_ts: %d, state: %s, write_set: %d, read_set: %d}",
		t.ID, t.BeginTS, t.State, len(t.WriteSet), len(t.ReadSet))
}

// LogRecord is the durable unit written at commit: every version affected
// by a committing transaction, after its markers have been rewritten from
// TxIDs to timestamps.
type LogRecord struct {
	TxTimestamp uint64
	Versions    []RowVersion
}
