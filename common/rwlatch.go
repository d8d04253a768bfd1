// this code is based on https://github.com/pzhzqt/goostub
// there is license and copyright notice in licenses/goostub dir

package common

import (
	"sync"

	"github.com/sasha-s/go-deadlock"
)

type ReaderWriterLatch interface {
	WLock()
	WUnlock()
	RLock()
	RUnlock()
}

type readerWriterLatch struct {
	mutex *sync.RWMutex
}

// NewRWLatch returns a latch backed by sync.RWMutex, or by go-deadlock's
// detecting RWMutex when EnableDeadlockDetect is set.
func NewRWLatch() ReaderWriterLatch {
	if EnableDeadlockDetect {
		return &readerWriterLatchDetect{new(deadlock.RWMutex)}
	}
	latch := readerWriterLatch{}
	latch.mutex = new(sync.RWMutex)
	return &latch
}

func (l *readerWriterLatch) WLock() {
	l.mutex.Lock()
}

func (l *readerWriterLatch) WUnlock() {
	l.mutex.Unlock()
}

func (l *readerWriterLatch) RLock() {
	l.mutex.RLock()
}

func (l *readerWriterLatch) RUnlock() {
	l.mutex.RUnlock()
}

type readerWriterLatchDetect struct {
	mutex *deadlock.RWMutex
}

func (l *readerWriterLatchDetect) WLock() {
	l.mutex.Lock()
}

func (l *readerWriterLatchDetect) WUnlock() {
	l.mutex.Unlock()
}

func (l *readerWriterLatchDetect) RLock() {
	l.mutex.RLock()
}

func (l *readerWriterLatchDetect) RUnlock() {
	l.mutex.RUnlock()
}
