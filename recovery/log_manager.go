package recovery

import (
	"sync"

	"github.com/mkaneda/KawahagiDB/common"
	"github.com/mkaneda/KawahagiDB/storage/disk"
	"github.com/mkaneda/KawahagiDB/types"
)

/**
 * LogManager buffers appended log records and writes the buffer's content
 * into the disk log file on Flush. The buffer pool manager forces a flush
 * before a dirty page whose LSN is not yet persistent goes back to disk.
 */
type LogManager struct {
	offset          uint32
	nextLSN         types.LSN
	persistentLSN   types.LSN
	logBuffer       []byte
	flushBuffer     []byte
	latch           common.ReaderWriterLatch
	wlogMutex       *sync.Mutex
	diskManager     *disk.DiskManager
	isEnableLogging bool
}

func NewLogManager(diskManager *disk.DiskManager) *LogManager {
	ret := new(LogManager)
	ret.nextLSN = 0
	ret.persistentLSN = types.InvalidLSN
	ret.diskManager = diskManager
	ret.logBuffer = make([]byte, common.LogBufferSize)
	ret.flushBuffer = make([]byte, common.LogBufferSize)
	ret.latch = common.NewRWLatch()
	ret.wlogMutex = new(sync.Mutex)
	ret.offset = 0
	ret.isEnableLogging = false
	return ret
}

func (lm *LogManager) GetNextLSN() types.LSN       { return lm.nextLSN }
func (lm *LogManager) GetPersistentLSN() types.LSN { return lm.persistentLSN }
func (lm *LogManager) IsEnabledLogging() bool      { return lm.isEnableLogging }
func (lm *LogManager) ActivateLogging()            { lm.isEnableLogging = true }
func (lm *LogManager) DeactivateLogging()          { lm.isEnableLogging = false }

// AppendLogRecord stamps the record with the next LSN and stores it into the
// log buffer. Returns the assigned LSN.
func (lm *LogManager) AppendLogRecord(logRecord *LogRecord) types.LSN {
	lm.latch.WLock()
	defer lm.latch.WUnlock()

	if int(lm.offset)+int(logRecord.Size) > common.LogBufferSize {
		lm.latch.WUnlock()
		lm.Flush()
		lm.latch.WLock()
	}

	logRecord.LSN = lm.nextLSN
	lm.nextLSN++
	copy(lm.logBuffer[lm.offset:], logRecord.Serialize())
	lm.offset += uint32(logRecord.Size)
	return logRecord.LSN
}

// Flush forces every buffered record to the disk log file. After it returns,
// all LSNs below nextLSN are persistent. While logging is deactivated it
// does nothing and the persistent LSN is left unchanged.
func (lm *LogManager) Flush() {
	if !lm.isEnableLogging {
		return
	}

	lm.wlogMutex.Lock()
	defer lm.wlogMutex.Unlock()

	lm.latch.WLock()
	offset := lm.offset
	lastLSN := lm.nextLSN - 1
	lm.offset = 0

	// swap the two buffers so appends can go on while writing
	tmp := lm.flushBuffer
	lm.flushBuffer = lm.logBuffer
	lm.logBuffer = tmp
	lm.latch.WUnlock()

	if offset > 0 {
		(*lm.diskManager).WriteLog(lm.flushBuffer[:offset])
	}
	lm.persistentLSN = lastLSN
}
