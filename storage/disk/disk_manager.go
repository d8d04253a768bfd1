package disk

import (
	"github.com/mkaneda/KawahagiDB/types"
)

// DiskManager is responsible for interacting with disk
type DiskManager interface {
	ReadPage(types.PageID, []byte) error
	WritePage(types.PageID, []byte) error
	AllocatePage() types.PageID
	DeallocatePage(types.PageID)
	WriteLog([]byte)
	ReadLog([]byte, int32) bool
	GetNumWrites() uint64
	ShutDown()
	Size() int64
}
