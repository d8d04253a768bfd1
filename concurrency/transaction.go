package concurrency

import (
	"sync/atomic"

	"github.com/mkaneda/KawahagiDB/common"
)

// Transaction is the handle threaded through index operations. Concurrency
// control beyond identity lives in higher layers.
type Transaction struct {
	txnID common.TxnID
}

func NewTransaction(txnID common.TxnID) *Transaction {
	return &Transaction{txnID}
}

func (t *Transaction) GetTransactionId() common.TxnID {
	return t.txnID
}

var nextTxnID int32 = 0

// BeginTransaction hands out a transaction with a fresh id
func BeginTransaction() *Transaction {
	return NewTransaction(common.TxnID(atomic.AddInt32(&nextTxnID, 1)))
}
