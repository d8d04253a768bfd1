package recovery

import (
	"bytes"
	"encoding/binary"

	"github.com/mkaneda/KawahagiDB/types"
)

type LogRecordType int32

const (
	INVALID LogRecordType = iota
	ALLOCATE_PAGE
	DEALLOCATE_PAGE
	REUSE_PAGE
)

const LogHeaderSize = 16

// LogRecord is the unit appended to the write-ahead log.
//
// Header format (size in byte, 16 bytes in total):
// --------------------------------------------
// | size (4) | LSN (4) | type (4) | pageId(4) |
// --------------------------------------------
type LogRecord struct {
	Size    int32
	LSN     types.LSN
	LogType LogRecordType
	PageID  types.PageID
}

func NewLogRecordAllocatePage(pageID types.PageID) *LogRecord {
	return &LogRecord{LogHeaderSize, types.InvalidLSN, ALLOCATE_PAGE, pageID}
}

func NewLogRecordDeallocatePage(pageID types.PageID) *LogRecord {
	return &LogRecord{LogHeaderSize, types.InvalidLSN, DEALLOCATE_PAGE, pageID}
}

func NewLogRecordReusePage(pageID types.PageID) *LogRecord {
	return &LogRecord{LogHeaderSize, types.InvalidLSN, REUSE_PAGE, pageID}
}

// Serialize casts the record to []byte
func (l *LogRecord) Serialize() []byte {
	buf := new(bytes.Buffer)
	binary.Write(buf, binary.LittleEndian, l.Size)
	binary.Write(buf, binary.LittleEndian, l.LSN)
	binary.Write(buf, binary.LittleEndian, int32(l.LogType))
	binary.Write(buf, binary.LittleEndian, l.PageID)
	return buf.Bytes()
}

// NewLogRecordFromBytes builds a record back from a serialized image
func NewLogRecordFromBytes(data []byte) *LogRecord {
	ret := new(LogRecord)
	buf := bytes.NewBuffer(data)
	binary.Read(buf, binary.LittleEndian, &ret.Size)
	binary.Read(buf, binary.LittleEndian, &ret.LSN)
	var logType int32
	binary.Read(buf, binary.LittleEndian, &logType)
	ret.LogType = LogRecordType(logType)
	binary.Read(buf, binary.LittleEndian, &ret.PageID)
	return ret
}
