package wal

import (
	"encoding/binary"
	"fmt"

	"github.com/hekaton-db/hekaton/pkg/mvcc"
)

// encodeRecord serializes a LogRecord to its uncompressed wire form:
//
//	[8  TxTimestamp]
//	[4  VersionCount]
//	for each version:
//	  [8 TableID][8 RowNum]
//	  [1 BeginKind][8 BeginValue]
//	  [1 EndPresent][1 EndKind][8 EndValue]
//	  [4 DataLen][DataLen Data]
func encodeRecord(rec mvcc.LogRecord) []byte {
	size := 12
	for _, v := range rec.Versions {
		size += 16 + 9 + 10 + 4 + len(v.Row.Data)
	}

	buf := make([]byte, size)
	off := 0
	binary.BigEndian.PutUint64(buf[off:], rec.TxTimestamp)
	off += 8
	binary.BigEndian.PutUint32(buf[off:], uint32(len(rec.Versions)))
	off += 4

	for _, v := range rec.Versions {
		binary.BigEndian.PutUint64(buf[off:], v.Row.ID.TableID)
		off += 8
		binary.BigEndian.PutUint64(buf[off:], v.Row.ID.RowNum)
		off += 8

		putMarker(buf[off:], v.Begin)
		off += 9

		if v.End != nil {
			buf[off] = 1
			off++
			putMarker(buf[off:], *v.End)
			off += 9
		} else {
			buf[off] = 0
			off++
			off += 9
		}

		binary.BigEndian.PutUint32(buf[off:], uint32(len(v.Row.Data)))
		off += 4
		copy(buf[off:], v.Row.Data)
		off += len(v.Row.Data)
	}

	return buf[:off]
}

func putMarker(buf []byte, m mvcc.VersionMarker) {
	if m.IsTimestamp() {
		buf[0] = 0
		binary.BigEndian.PutUint64(buf[1:9], m.TimestampValue())
	} else {
		buf[0] = 1
		binary.BigEndian.PutUint64(buf[1:9], uint64(m.TxIDValue()))
	}
}

func getMarker(buf []byte) mvcc.VersionMarker {
	value := binary.BigEndian.Uint64(buf[1:9])
	if buf[0] == 0 {
		return mvcc.Timestamp(value)
	}
	return mvcc.TxIDMarker(mvcc.TxID(value))
}

// decodeRecord is the inverse of encodeRecord. It returns an error on
// truncated input; the error is not wrapped here, Replay wraps it in
// mvcc.ErrCorrupt.
func decodeRecord(buf []byte) (mvcc.LogRecord, error) {
	if len(buf) < 12 {
		return mvcc.LogRecord{}, fmt.Errorf("record header too short: %d bytes", len(buf))
	}

	var rec mvcc.LogRecord
	off := 0
	rec.TxTimestamp = binary.BigEndian.Uint64(buf[off:])
	off += 8
	count := binary.BigEndian.Uint32(buf[off:])
	off += 4

	rec.Versions = make([]mvcc.RowVersion, 0, count)
	for i := uint32(0); i < count; i++ {
		if len(buf)-off < 16+9+10+4 {
			return mvcc.LogRecord{}, fmt.Errorf("version %d header truncated", i)
		}

		tableID := binary.BigEndian.Uint64(buf[off:])
		off += 8
		rowNum := binary.BigEndian.Uint64(buf[off:])
		off += 8

		begin := getMarker(buf[off:])
		off += 9

		hasEnd := buf[off]
		off++
		var end *mvcc.VersionMarker
		if hasEnd == 1 {
			m := getMarker(buf[off:])
			end = &m
		}
		off += 9

		dataLen := binary.BigEndian.Uint32(buf[off:])
		off += 4
		if len(buf)-off < int(dataLen) {
			return mvcc.LogRecord{}, fmt.Errorf("version %d data truncated", i)
		}
		data := make([]byte, dataLen)
		copy(data, buf[off:off+int(dataLen)])
		off += int(dataLen)

		rec.Versions = append(rec.Versions, mvcc.RowVersion{
			Begin: begin,
			End:   end,
			Row:   mvcc.Row{ID: mvcc.RowID{TableID: tableID, RowNum: rowNum}, Data: data},
		})
	}

	return rec, nil
}
