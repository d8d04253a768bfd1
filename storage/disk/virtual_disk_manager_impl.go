package disk

import (
	"fmt"
	"strings"
	"sync"

	"github.com/dsnet/golib/memfile"
	"github.com/mkaneda/KawahagiDB/common"
	kerrors "github.com/mkaneda/KawahagiDB/errors"
	"github.com/mkaneda/KawahagiDB/types"
)

// VirtualDiskManagerImpl keeps the db and log files on memory.
// Page images survive eviction but not process exit.
type VirtualDiskManagerImpl struct {
	db             *memfile.File
	fileName       string
	log            *memfile.File
	fileNameLog    string
	nextPageID     types.PageID
	numWrites      uint64
	size           int64
	numFlushes     uint64
	dbFileMutex    *sync.Mutex
	logFileMutex   *sync.Mutex
	deallocedIDMap map[types.PageID]bool
}

func NewVirtualDiskManagerImpl(dbFilename string) DiskManager {
	file := memfile.New(make([]byte, 0))

	periodIdx := strings.LastIndex(dbFilename, ".")
	logfname := dbFilename[:periodIdx] + ".log"
	logFile := memfile.New(make([]byte, 0))

	return &VirtualDiskManagerImpl{file, dbFilename, logFile, logfname, types.PageID(0), 0, int64(0), 0,
		new(sync.Mutex), new(sync.Mutex), make(map[types.PageID]bool)}
}

// ShutDown does nothing. The backing buffers simply become garbage.
func (d *VirtualDiskManagerImpl) ShutDown() {
}

// WritePage writes a page to the virtual db file
func (d *VirtualDiskManagerImpl) WritePage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageID) * common.PageSize
	bytesWritten, err := d.db.WriteAt(pageData, offset)
	if err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}

	if bytesWritten != common.PageSize {
		return fmt.Errorf("%w: bytes written not equals page size", kerrors.ErrIO)
	}

	if offset >= d.size {
		d.size = offset + int64(bytesWritten)
	}

	d.numWrites++
	return nil
}

// ReadPage reads a page from the virtual db file
func (d *VirtualDiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	if _, dealloced := d.deallocedIDMap[pageID]; dealloced {
		return kerrors.ErrDeallocated
	}

	offset := int64(pageID) * common.PageSize

	if offset > int64(len(d.db.Bytes())) {
		return fmt.Errorf("%w: read past end of file", kerrors.ErrIO)
	}

	bytesRead, err := d.db.ReadAt(pageData, offset)
	if err != nil && bytesRead == 0 {
		return fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}

	if bytesRead < common.PageSize {
		for i := bytesRead; i < common.PageSize; i++ {
			pageData[i] = 0
		}
	}
	return nil
}

// AllocatePage allocates a new page
func (d *VirtualDiskManagerImpl) AllocatePage() types.PageID {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	ret := d.nextPageID
	d.nextPageID++
	return ret
}

// DeallocatePage marks the page id so that later reads of it fail loudly
func (d *VirtualDiskManagerImpl) DeallocatePage(pageID types.PageID) {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	d.deallocedIDMap[pageID] = true
}

// GetNumWrites returns the number of page writes
func (d *VirtualDiskManagerImpl) GetNumWrites() uint64 {
	return d.numWrites
}

// Size returns the size of the virtual db file
func (d *VirtualDiskManagerImpl) Size() int64 {
	return d.size
}

// WriteLog appends the passed buffer to the virtual log file
func (d *VirtualDiskManagerImpl) WriteLog(logData []byte) {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	d.numFlushes++
	curSize := int64(len(d.log.Bytes()))
	d.log.WriteAt(logData, curSize)
}

// ReadLog reads the contents of the virtual log file at offset
func (d *VirtualDiskManagerImpl) ReadLog(logData []byte, offset int32) bool {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	if int64(offset) >= int64(len(d.log.Bytes())) {
		return false
	}

	readBytes, _ := d.log.ReadAt(logData, int64(offset))
	if readBytes < len(logData) {
		for i := readBytes; i < len(logData); i++ {
			logData[i] = 0
		}
	}

	return true
}
