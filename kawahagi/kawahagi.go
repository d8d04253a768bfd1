package kawahagi

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/mkaneda/KawahagiDB/common"
	"github.com/mkaneda/KawahagiDB/concurrency"
	"github.com/mkaneda/KawahagiDB/container/hash"
	"github.com/mkaneda/KawahagiDB/types"
)

// KawahagiDB is a disk-backed hash key/value store: an extendible hash
// index over the buffer pool, addressed by arbitrary byte keys.
type KawahagiDB struct {
	instance  *KawahagiInstance
	hashTable *hash.ExtendibleHashTable
	poolSize  int
}

// NewKawahagiDB opens (or creates) a db file and builds a new hash index on
// it. An index written to the file by an earlier run is not reopened.
// memKBytes is the memory the buffer pool may use.
func NewKawahagiDB(dbName string, memKBytes int) *KawahagiDB {
	bpoolSize := memKBytes * 1024 / common.PageSize
	instance := NewKawahagiInstance(dbName, bpoolSize)
	ht := hash.NewExtendibleHashTable(instance.GetBufferPoolManager(), hash.GenHashMurMur, types.InvalidPageID)
	return &KawahagiDB{instance, ht, bpoolSize}
}

// NewKawahagiDBForTesting keeps all pages on memory
func NewKawahagiDBForTesting(dbName string, memKBytes int) *KawahagiDB {
	bpoolSize := memKBytes * 1024 / common.PageSize
	instance := NewKawahagiInstanceForTesting(dbName, bpoolSize)
	ht := hash.NewExtendibleHashTable(instance.GetBufferPoolManager(), hash.GenHashMurMur, types.InvalidPageID)
	return &KawahagiDB{instance, ht, bpoolSize}
}

// Insert stores value under key
func (db *KawahagiDB) Insert(key []byte, value uint32) error {
	txn := concurrency.BeginTransaction()
	return db.hashTable.Insert(txn, key, value)
}

// GetValue returns every value stored under key
func (db *KawahagiDB) GetValue(key []byte) []uint32 {
	txn := concurrency.BeginTransaction()
	return db.hashTable.GetValue(txn, key)
}

// Remove deletes the exact (key, value) pair
func (db *KawahagiDB) Remove(key []byte, value uint32) bool {
	txn := concurrency.BeginTransaction()
	return db.hashTable.Remove(txn, key, value)
}

// GetGlobalDepth exposes the index directory depth
func (db *KawahagiDB) GetGlobalDepth() uint32 {
	return db.hashTable.GetGlobalDepth()
}

// VerifyIntegrity checks the index directory invariants
func (db *KawahagiDB) VerifyIntegrity() {
	db.hashTable.VerifyIntegrity()
}

// StatsString reports pool usage in human readable form
func (db *KawahagiDB) StatsString() string {
	resident := db.instance.GetBufferPoolManager().GetPoolSize()
	return fmt.Sprintf("buffer pool: %d/%d frames resident (%s of %s), db file %s",
		resident, db.poolSize,
		humanize.IBytes(uint64(resident)*common.PageSize),
		humanize.IBytes(uint64(db.poolSize)*common.PageSize),
		humanize.IBytes(uint64(db.instance.GetDiskManager().Size())))
}

// Shutdown flushes everything and closes the db
func (db *KawahagiDB) Shutdown() {
	db.instance.Shutdown()
}
