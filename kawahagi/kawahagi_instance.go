package kawahagi

import (
	"github.com/mkaneda/KawahagiDB/recovery"
	"github.com/mkaneda/KawahagiDB/storage/buffer"
	"github.com/mkaneda/KawahagiDB/storage/disk"
)

// KawahagiInstance bundles the storage stack: a disk manager, the log
// manager over it, and the buffer pool brokering all page access.
type KawahagiInstance struct {
	diskManager disk.DiskManager
	logManager  *recovery.LogManager
	bpm         *buffer.BufferPoolManager
}

// NewKawahagiInstance assembles the stack over a db file.
// bpoolSize is the usable buffer size in frames.
func NewKawahagiInstance(dbName string, bpoolSize int) *KawahagiInstance {
	diskManager := disk.NewDiskManagerImpl(dbName + ".db")
	return newInstance(diskManager, bpoolSize)
}

// NewKawahagiInstanceForTesting assembles the stack over an in-memory
// virtual disk
func NewKawahagiInstanceForTesting(dbName string, bpoolSize int) *KawahagiInstance {
	diskManager := disk.NewVirtualDiskManagerImpl(dbName + ".db")
	return newInstance(diskManager, bpoolSize)
}

func newInstance(diskManager disk.DiskManager, bpoolSize int) *KawahagiInstance {
	logManager := recovery.NewLogManager(&diskManager)
	bpm := buffer.NewBufferPoolManager(uint32(bpoolSize), diskManager, logManager)
	return &KawahagiInstance{diskManager, logManager, bpm}
}

func (ki *KawahagiInstance) GetDiskManager() disk.DiskManager {
	return ki.diskManager
}

func (ki *KawahagiInstance) GetLogManager() *recovery.LogManager {
	return ki.logManager
}

func (ki *KawahagiInstance) GetBufferPoolManager() *buffer.BufferPoolManager {
	return ki.bpm
}

// Shutdown flushes every resident dirty page and closes the files
func (ki *KawahagiInstance) Shutdown() {
	ki.bpm.FlushAllDirtyPages()
	ki.logManager.Flush()
	ki.diskManager.ShutDown()
}
