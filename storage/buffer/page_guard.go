package buffer

import (
	"github.com/mkaneda/KawahagiDB/common"
	"github.com/mkaneda/KawahagiDB/storage/page"
	"github.com/mkaneda/KawahagiDB/types"
)

/**
 * BasicPageGuard scopes a fetched page: dropping the guard unpins the page
 * exactly once, flushing it first when it is dirty. Guards hold the pool
 * as a non-owning handle and must not outlive it.
 *
 * Guards are not copyable. Hand-over between guards goes through Move,
 * after which the source is inert and its Drop is a no-op.
 */
type BasicPageGuard struct {
	bpm     *BufferPoolManager
	page    *page.Page
	isDirty bool
}

// FetchPageBasic returns a guard over the requested page, or nil when no
// frame could be secured
func (b *BufferPoolManager) FetchPageBasic(pageID types.PageID) *BasicPageGuard {
	pg := b.FetchPage(pageID, AccessUnknown)
	if pg == nil {
		return nil
	}
	return &BasicPageGuard{b, pg, false}
}

// NewPageGuarded allocates a new page and returns a guard over it
func (b *BufferPoolManager) NewPageGuarded() *BasicPageGuard {
	pg := b.NewPage()
	if pg == nil {
		return nil
	}
	return &BasicPageGuard{b, pg, false}
}

func (g *BasicPageGuard) PageId() types.PageID {
	return g.page.GetPageId()
}

// GetData exposes the page buffer for reading
func (g *BasicPageGuard) GetData() *[common.PageSize]byte {
	return g.page.Data()
}

// GetDataMut exposes the page buffer for writing and marks the guard dirty
func (g *BasicPageGuard) GetDataMut() *[common.PageSize]byte {
	g.isDirty = true
	g.page.SetIsDirty(true)
	return g.page.Data()
}

// Move transfers responsibility for the page to a fresh guard. The
// receiver becomes inert.
func (g *BasicPageGuard) Move() *BasicPageGuard {
	moved := &BasicPageGuard{g.bpm, g.page, g.isDirty}
	g.bpm = nil
	g.page = nil
	g.isDirty = false
	return moved
}

// Drop flushes the page when dirty and unpins it. Safe to call more than
// once; only the first call has an effect.
func (g *BasicPageGuard) Drop() {
	if g.page == nil {
		return
	}
	if g.page.IsDirty() {
		g.bpm.FlushPage(g.page.GetPageId())
	}
	g.bpm.UnpinPage(g.page.GetPageId(), g.isDirty, AccessUnknown)
	g.bpm = nil
	g.page = nil
	g.isDirty = false
}

/**
 * ReadPageGuard additionally holds the page's shared latch for its whole
 * lifetime. Dropping releases the latch before unpinning.
 */
type ReadPageGuard struct {
	guard BasicPageGuard
}

// FetchPageRead fetches the page and takes its read latch
func (b *BufferPoolManager) FetchPageRead(pageID types.PageID) *ReadPageGuard {
	pg := b.FetchPage(pageID, AccessUnknown)
	if pg == nil {
		return nil
	}
	pg.RLatch()
	return &ReadPageGuard{BasicPageGuard{b, pg, false}}
}

func (g *ReadPageGuard) PageId() types.PageID {
	return g.guard.page.GetPageId()
}

// GetData exposes the page buffer. The shared latch is already held.
func (g *ReadPageGuard) GetData() *[common.PageSize]byte {
	return g.guard.page.Data()
}

// Drop releases the read latch, then unpins
func (g *ReadPageGuard) Drop() {
	if g.guard.page == nil {
		return
	}
	g.guard.page.RUnlatch()
	g.guard.Drop()
}

/**
 * WritePageGuard holds the page's exclusive latch. Dropping releases the
 * latch, then unpins with the dirty flag set iff the buffer was mutated
 * through the guard.
 */
type WritePageGuard struct {
	guard BasicPageGuard
}

// FetchPageWrite fetches the page and takes its write latch
func (b *BufferPoolManager) FetchPageWrite(pageID types.PageID) *WritePageGuard {
	pg := b.FetchPage(pageID, AccessUnknown)
	if pg == nil {
		return nil
	}
	pg.WLatch()
	return &WritePageGuard{BasicPageGuard{b, pg, false}}
}

func (g *WritePageGuard) PageId() types.PageID {
	return g.guard.page.GetPageId()
}

// GetData exposes the page buffer for reading
func (g *WritePageGuard) GetData() *[common.PageSize]byte {
	return g.guard.page.Data()
}

// GetDataMut exposes the page buffer for writing and marks the guard dirty
func (g *WritePageGuard) GetDataMut() *[common.PageSize]byte {
	g.guard.isDirty = true
	g.guard.page.SetIsDirty(true)
	return g.guard.page.Data()
}

// Drop releases the write latch, then unpins
func (g *WritePageGuard) Drop() {
	if g.guard.page == nil {
		return
	}
	pg := g.guard.page
	isDirty := g.guard.isDirty
	bpm := g.guard.bpm
	g.guard.page = nil
	g.guard.bpm = nil
	g.guard.isDirty = false
	pg.WUnlatch()
	bpm.UnpinPage(pg.GetPageId(), isDirty, AccessUnknown)
}
