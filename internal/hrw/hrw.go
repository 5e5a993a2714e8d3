// Package hrw implements rendezvous (highest random weight) hashing.
package hrw

import (
	"encoding/binary"
	"sort"

	"golang.org/x/crypto/blake2b"
)

// Rank orders candidates by descending score for key. The order is stable
// for a given key, seed and candidate set, and removing a candidate does not
// change the relative order of the others.
func Rank(key []byte, candidates []string, seed string) []string {
	type entry struct {
		score uint64
		id    string
	}
	scored := make([]entry, len(candidates))
	for i, id := range candidates {
		scored[i] = entry{score: score(key, id, seed), id: id}
	}
	sort.Slice(scored, func(a, b int) bool {
		if scored[a].score != scored[b].score {
			return scored[a].score > scored[b].score
		}
		return scored[a].id < scored[b].id
	})

	out := make([]string, len(scored))
	for i, e := range scored {
		out[i] = e.id
	}
	return out
}

// Pick returns the best candidate for key. ok=false if there are none.
func Pick(key []byte, candidates []string, seed string) (best string, ok bool) {
	var top uint64
	for _, id := range candidates {
		s := score(key, id, seed)
		if !ok || s > top || (s == top && id < best) {
			best, top, ok = id, s, true
		}
	}
	return best, ok
}

func score(key []byte, id string, seed string) uint64 {
	h, _ := blake2b.New(8, nil)
	if seed != "" {
		h.Write([]byte(seed))
		h.Write([]byte{0})
	}
	h.Write(key)
	h.Write([]byte{0})
	h.Write([]byte(id))
	return binary.BigEndian.Uint64(h.Sum(nil))
}
