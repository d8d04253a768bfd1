package recovery

import (
	"testing"

	"github.com/mkaneda/KawahagiDB/storage/disk"
	testingpkg "github.com/mkaneda/KawahagiDB/testing/testing_assert"
	"github.com/mkaneda/KawahagiDB/types"
)

func TestLogManagerAppendAndFlush(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()

	logManager := NewLogManager(&dm)
	logManager.ActivateLogging()

	lsn0 := logManager.AppendLogRecord(NewLogRecordAllocatePage(types.PageID(42)))
	lsn1 := logManager.AppendLogRecord(NewLogRecordDeallocatePage(types.PageID(42)))
	testingpkg.Equals(t, types.LSN(0), lsn0)
	testingpkg.Equals(t, types.LSN(1), lsn1)
	testingpkg.Equals(t, types.InvalidLSN, logManager.GetPersistentLSN())

	logManager.Flush()
	testingpkg.Equals(t, types.LSN(1), logManager.GetPersistentLSN())

	// the records round trip through the log file
	readBuf := make([]byte, LogHeaderSize)
	testingpkg.SimpleAssert(t, dm.ReadLog(readBuf, 0))
	record := NewLogRecordFromBytes(readBuf)
	testingpkg.Equals(t, ALLOCATE_PAGE, record.LogType)
	testingpkg.Equals(t, types.PageID(42), record.PageID)
	testingpkg.Equals(t, types.LSN(0), record.LSN)

	testingpkg.SimpleAssert(t, dm.ReadLog(readBuf, LogHeaderSize))
	record = NewLogRecordFromBytes(readBuf)
	testingpkg.Equals(t, DEALLOCATE_PAGE, record.LogType)
}

func TestLogManagerFlushIsIdleWhenDisabled(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()

	logManager := NewLogManager(&dm)
	logManager.AppendLogRecord(NewLogRecordAllocatePage(types.PageID(1)))
	logManager.Flush()

	// nothing persisted while logging is off
	testingpkg.Equals(t, types.InvalidLSN, logManager.GetPersistentLSN())
	readBuf := make([]byte, LogHeaderSize)
	testingpkg.SimpleAssert(t, !dm.ReadLog(readBuf, 0))
}
