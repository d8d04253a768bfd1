// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package disk

import (
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"sync"

	"github.com/mkaneda/KawahagiDB/common"
	kerrors "github.com/mkaneda/KawahagiDB/errors"
	"github.com/mkaneda/KawahagiDB/types"
	"github.com/ncw/directio"
)

// DiskManagerImpl is the disk implementation of DiskManager
type DiskManagerImpl struct {
	db           *os.File
	fileName     string
	log          *os.File
	fileNameLog  string
	nextPageID   types.PageID
	numWrites    uint64
	size         int64
	numFlushes   uint64
	dbFileMutex  *sync.Mutex
	logFileMutex *sync.Mutex
}

// NewDiskManagerImpl returns a DiskManager instance backed by a db file and
// a companion write-ahead log file
func NewDiskManagerImpl(dbFilename string) DiskManager {
	file, err := os.OpenFile(dbFilename, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		log.Fatalln("can't open db file")
		return nil
	}

	periodIdx := strings.LastIndex(dbFilename, ".")
	logfname := dbFilename[:periodIdx] + ".log"
	logFile, err := os.OpenFile(logfname, os.O_RDWR|os.O_CREATE, 0666)
	if err != nil {
		log.Fatalln("can't open log file")
		return nil
	}

	fileInfo, err := file.Stat()
	if err != nil {
		log.Fatalln("file info error")
		return nil
	}

	logFileInfo, err := logFile.Stat()
	if err != nil {
		log.Fatalln("file info error (log file)")
		return nil
	}

	logFile.Seek(logFileInfo.Size(), io.SeekStart)

	fileSize := fileInfo.Size()
	nPages := fileSize / common.PageSize

	nextPageID := types.PageID(0)
	if nPages > 0 {
		nextPageID = types.PageID(int32(nPages))
	}

	return &DiskManagerImpl{file, dbFilename, logFile, logfname, nextPageID, 0, fileSize, 0, new(sync.Mutex), new(sync.Mutex)}
}

// ShutDown closes the database and log files
func (d *DiskManagerImpl) ShutDown() {
	d.db.Close()
	d.log.Close()
}

// WritePage writes a page to the database file
func (d *DiskManagerImpl) WritePage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageID) * common.PageSize
	d.db.Seek(offset, io.SeekStart)
	bytesWritten, err := d.db.Write(pageData)
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
	d.db.Sync()
	return nil
}

// ReadPage reads a page from the database file
func (d *DiskManagerImpl) ReadPage(pageID types.PageID, pageData []byte) error {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	offset := int64(pageID) * common.PageSize

	fileInfo, err := d.db.Stat()
	if err != nil {
		return fmt.Errorf("%w: file info error", kerrors.ErrIO)
	}

	if offset > fileInfo.Size() {
		return fmt.Errorf("%w: read past end of file", kerrors.ErrIO)
	}

	d.db.Seek(offset, io.SeekStart)

	bytesRead, err := d.db.Read(pageData)
	if err != nil {
		return fmt.Errorf("%w: %v", kerrors.ErrIO, err)
	}

	if bytesRead < common.PageSize {
		// zero fill the tail when the page was never fully written
		zeros := directio.AlignedBlock(common.PageSize)
		copy(pageData[bytesRead:], zeros[bytesRead:])
	}
	return nil
}

// AllocatePage allocates a new page
// For now just keep an increasing counter
func (d *DiskManagerImpl) AllocatePage() types.PageID {
	d.dbFileMutex.Lock()
	defer d.dbFileMutex.Unlock()

	ret := d.nextPageID
	d.nextPageID++
	return ret
}

// DeallocatePage deallocates page
// Need bitmap in header page for tracking pages
// This does not actually need to do anything for now.
func (d *DiskManagerImpl) DeallocatePage(pageID types.PageID) {
}

// GetNumWrites returns the number of disk writes
func (d *DiskManagerImpl) GetNumWrites() uint64 {
	return d.numWrites
}

// Size returns the size of the file in disk
func (d *DiskManagerImpl) Size() int64 {
	return d.size
}

// ATTENTION: this method can be called after calling of ShutDown method
func (d *DiskManagerImpl) RemoveDBFile() {
	os.Remove(d.fileName)
}

// ATTENTION: this method can be called after calling of ShutDown method
func (d *DiskManagerImpl) RemoveLogFile() {
	os.Remove(d.fileNameLog)
}

// WriteLog writes the contents of the log buffer into the log file.
// Only returns when sync is done, and only performs sequential writes.
func (d *DiskManagerImpl) WriteLog(logData []byte) {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	d.numFlushes++
	_, err := d.log.Write(logData)
	if err != nil {
		common.ShPrintf(common.ERROR, "I/O error while writing log\n")
		return
	}
	// needs to flush to keep disk file in sync
	d.log.Sync()
}

// ReadLog reads the contents of the log into the given memory area.
// len(logData) specifies the read data length.
// Returns false when the read reaches past the end of the log file.
func (d *DiskManagerImpl) ReadLog(logData []byte, offset int32) bool {
	d.logFileMutex.Lock()
	defer d.logFileMutex.Unlock()

	if int64(offset) >= d.GetLogFileSize() {
		return false
	}

	d.log.Seek(int64(offset), io.SeekStart)
	readBytes, err := d.log.Read(logData)
	if err != nil {
		common.ShPrintf(common.ERROR, "I/O error at log data reading\n")
		return false
	}

	if readBytes < len(logData) {
		for i := readBytes; i < len(logData); i++ {
			logData[i] = 0
		}
	}

	return true
}

func (d *DiskManagerImpl) GetLogFileSize() int64 {
	fileInfo, err := d.log.Stat()
	if err != nil {
		return -1
	}

	return fileInfo.Size()
}
