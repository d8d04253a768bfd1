// this code is based on https://github.com/brunocalza/go-bustub
// there is license and copyright notice in licenses/go-bustub dir

package disk

import (
	"errors"
	"testing"

	"github.com/mkaneda/KawahagiDB/common"
	kerrors "github.com/mkaneda/KawahagiDB/errors"
	testingpkg "github.com/mkaneda/KawahagiDB/testing/testing_assert"
	"github.com/mkaneda/KawahagiDB/types"
)

func TestReadWritePage(t *testing.T) {
	dm := NewDiskManagerTest()
	defer dm.ShutDown()

	data := make([]byte, common.PageSize)
	buffer := make([]byte, common.PageSize)

	copy(data, "A test string.")

	dm.ReadPage(0, buffer) // tolerate empty read
	testingpkg.Ok(t, dm.WritePage(0, data))
	testingpkg.Ok(t, dm.ReadPage(0, buffer))
	testingpkg.Equals(t, int64(common.PageSize), dm.Size())
	testingpkg.Equals(t, data, buffer)

	buffer = make([]byte, common.PageSize)
	copy(data, "Another test string.")

	testingpkg.Ok(t, dm.WritePage(5, data))
	testingpkg.Ok(t, dm.ReadPage(5, buffer))
	testingpkg.Equals(t, data, buffer)

	// the file stretched to cover page 5
	testingpkg.Equals(t, int64(common.PageSize*6), dm.Size())
}

func TestAllocatePage(t *testing.T) {
	dm := NewDiskManagerTest()
	defer dm.ShutDown()

	testingpkg.Equals(t, types.PageID(0), dm.AllocatePage())
	testingpkg.Equals(t, types.PageID(1), dm.AllocatePage())
	testingpkg.Equals(t, types.PageID(2), dm.AllocatePage())
}

func TestVirtualDiskManager(t *testing.T) {
	dm := NewVirtualDiskManagerImpl("virtual_test.db")
	defer dm.ShutDown()

	data := make([]byte, common.PageSize)
	buffer := make([]byte, common.PageSize)
	copy(data, "on memory page image")

	testingpkg.Ok(t, dm.WritePage(3, data))
	testingpkg.Ok(t, dm.ReadPage(3, buffer))
	testingpkg.Equals(t, data, buffer)
	testingpkg.Equals(t, uint64(1), dm.GetNumWrites())

	// reads of a deallocated page fail loudly
	dm.DeallocatePage(3)
	err := dm.ReadPage(3, buffer)
	testingpkg.Equals(t, kerrors.ErrDeallocated, err)

	// reads far past the end surface the I/O error kind
	err = dm.ReadPage(1000, buffer)
	testingpkg.SimpleAssert(t, errors.Is(err, kerrors.ErrIO))
}

func TestWriteReadLog(t *testing.T) {
	dm := NewDiskManagerTest()
	defer dm.ShutDown()

	logData := []byte("log record payload")
	dm.WriteLog(logData)

	readBuf := make([]byte, len(logData))
	testingpkg.SimpleAssert(t, dm.ReadLog(readBuf, 0))
	testingpkg.Equals(t, logData, readBuf)

	// reading past the end reports false
	testingpkg.SimpleAssert(t, !dm.ReadLog(readBuf, int32(len(logData)+100)))
}
