package slot

import (
	"bytes"

	"github.com/howeyc/crc16"
)

// Count is the number of hash slots in the keyspace.
const Count = 16384

// Of returns the slot for key.
func Of(key []byte) uint16 {
	if tag, ok := HashTag(key); ok {
		key = tag
	}
	// XMODEM: poly 0x1021, init 0, no reflection.
	return crc16.Checksum(key, crc16.CCITTFalseTable) % Count
}

// OfString is Of for string keys.
func OfString(key string) uint16 {
	return Of([]byte(key))
}

// HashTag returns the hash tag of key, if any.
func HashTag(key []byte) ([]byte, bool) {
	start := bytes.IndexByte(key, '{')
	if start < 0 {
		return nil, false
	}
	end := bytes.IndexByte(key[start+1:], '}')
	if end <= 0 {
		return nil, false
	}
	return key[start+1 : start+1+end], true
}

// Same reports whether all keys map to one slot. An empty list is trivially
// co-located.
func Same(keys ...[]byte) bool {
	if len(keys) == 0 {
		return true
	}
	first := Of(keys[0])
	for _, k := range keys[1:] {
		if Of(k) != first {
			return false
		}
	}
	return true
}
