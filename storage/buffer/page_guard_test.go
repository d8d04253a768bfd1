package buffer

import (
	"testing"
	"time"

	"github.com/mkaneda/KawahagiDB/storage/disk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBasicPageGuardDropUnpinsOnce(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(4, dm, nil)

	guard := bpm.NewPageGuarded()
	require.NotNil(t, guard)
	assert.Equal(t, int32(1), bpm.PinnedPinCountSum())

	guard.Drop()
	assert.Equal(t, int32(0), bpm.PinnedPinCountSum())

	// double drop must be a no-op
	guard.Drop()
	assert.Equal(t, int32(0), bpm.PinnedPinCountSum())
}

func TestBasicPageGuardMove(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(4, dm, nil)

	guard := bpm.NewPageGuarded()
	require.NotNil(t, guard)

	moved := guard.Move()

	// the moved-from guard is inert
	guard.Drop()
	assert.Equal(t, int32(1), bpm.PinnedPinCountSum())

	moved.Drop()
	assert.Equal(t, int32(0), bpm.PinnedPinCountSum())
}

func TestWritePageGuardPersistsMutation(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(2, dm, nil)

	newGuard := bpm.NewPageGuarded()
	require.NotNil(t, newGuard)
	pid := newGuard.PageId()
	newGuard.Drop()

	wGuard := bpm.FetchPageWrite(pid)
	require.NotNil(t, wGuard)
	copy(wGuard.GetDataMut()[:], []byte("guarded bytes"))
	wGuard.Drop()

	// force the page out, then fetch it back through a read guard. Both new
	// pages stay pinned until the second one has taken the page's frame.
	guards := make([]*BasicPageGuard, 0, 2)
	for i := 0; i < 2; i++ {
		g := bpm.NewPageGuarded()
		require.NotNil(t, g)
		guards = append(guards, g)
	}
	for _, g := range guards {
		g.Drop()
	}

	rGuard := bpm.FetchPageRead(pid)
	require.NotNil(t, rGuard)
	assert.Equal(t, []byte("guarded bytes"), rGuard.GetData()[:13])
	rGuard.Drop()

	assert.Equal(t, int32(0), bpm.PinnedPinCountSum())
}

func TestReadPageGuardsShareTheLatch(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(4, dm, nil)

	guard := bpm.NewPageGuarded()
	require.NotNil(t, guard)
	pid := guard.PageId()
	guard.Drop()

	// two read guards on the same page may coexist
	r1 := bpm.FetchPageRead(pid)
	r2 := bpm.FetchPageRead(pid)
	require.NotNil(t, r1)
	require.NotNil(t, r2)
	assert.Equal(t, int32(2), bpm.PinnedPinCountSum())

	r1.Drop()
	r2.Drop()
	assert.Equal(t, int32(0), bpm.PinnedPinCountSum())

	// with all guards gone a writer gets through immediately
	w := bpm.FetchPageWrite(pid)
	require.NotNil(t, w)
	w.Drop()
}

func TestWriteGuardBlocksReader(t *testing.T) {
	dm := disk.NewDiskManagerTest()
	defer dm.ShutDown()
	bpm := NewBufferPoolManager(4, dm, nil)

	guard := bpm.NewPageGuarded()
	require.NotNil(t, guard)
	pid := guard.PageId()
	guard.Drop()

	w := bpm.FetchPageWrite(pid)
	require.NotNil(t, w)

	acquired := make(chan struct{})
	go func() {
		r := bpm.FetchPageRead(pid)
		r.Drop()
		close(acquired)
	}()

	time.Sleep(50 * time.Millisecond)
	select {
	case <-acquired:
		t.Fatal("read guard acquired while the write latch was held")
	default:
	}

	w.Drop()
	<-acquired
	assert.Equal(t, int32(0), bpm.PinnedPinCountSum())
}
