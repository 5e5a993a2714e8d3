// Package slot maps keys onto the 16384 hash slots of the keyspace.
//
// A slot is derived from a key with CRC16 (XMODEM variant) modulo [Count].
// It never depends on the current topology: the same key always lands on
// the same slot.
//
// # Hash tags
//
// If a key contains a non-empty substring between the first '{' and the
// first '}' after it, only that substring is hashed. Keys that share a tag
// are therefore guaranteed to share a slot:
//
//	slot.OfString("{user:42}.profile") == slot.OfString("{user:42}.settings")
//
// An empty tag ("{}") or a missing closing brace falls back to hashing the
// whole key.
package slot
