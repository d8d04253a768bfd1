package hash

import (
	"encoding/binary"

	"github.com/cespare/xxhash/v2"
	"github.com/spaolacci/murmur3"
)

// HashFunc maps a serialized key to the 32-bit hash the table addresses by
type HashFunc func(key []byte) uint32

// GenHashMurMur hashes the key with murmur3, downcast to 32 bits
func GenHashMurMur(key []byte) uint32 {
	h := murmur3.New128()
	h.Write(key)

	hash := h.Sum(nil)

	return binary.LittleEndian.Uint32(hash)
}

// GenHashXX hashes the key with xxHash, downcast to 32 bits
func GenHashXX(key []byte) uint32 {
	return uint32(xxhash.Sum64(key))
}
