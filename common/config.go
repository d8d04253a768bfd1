// this code is based on https://github.com/pzhzqt/goostub
// there is license and copyright notice in licenses/goostub dir

package common

// EnableDebug turns on pin count assertions and verbose printing
var EnableDebug bool = false

// EnableDeadlockDetect selects the go-deadlock backed latch implementation
var EnableDeadlockDetect bool = false

var LogLevelSetting LogLevel = INFO

const (
	// invalid transaction id
	InvalidTxnID = -1
	// size of a data page in byte
	PageSize = 4096
	// size of a log buffer in byte
	LogBufferSize = 33 * PageSize
	// number of access timestamps kept per frame by the LRU-K replacer
	ReplacerK = 2
	// max low hash bits the hash table directory can discriminate on
	HashTableMaxDepth = 9
)

type TxnID int32 // transaction id type
