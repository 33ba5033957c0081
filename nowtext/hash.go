package nowtext

import (
	"hash/fnv"

	"github.com/zeebo/xxh3"
	"golang.org/x/crypto/blake2b"
)

// hash derives a dictionary key from s using the configured algorithm.
// All three algorithms are kept available (rather than only the
// fastest) because a Scope created under one algorithm must stay
// readable without rehashing its whole dictionary.
func hash(s string, alg Algorithm) uint64 {
	switch alg {
	case AlgFNV1a:
		h := fnv.New64a()
		h.Write([]byte(s))
		return h.Sum64()
	case AlgBlake2b:
		sum := blake2b.Sum512([]byte(s))
		var k uint64
		for i := 0; i < 8; i++ {
			k = k<<8 | uint64(sum[i])
		}
		return k
	default:
		return xxh3.HashString(s)
	}
}
