package util

import "github.com/cespare/xxhash/v2"

// ShardIndex spreads 16-byte ids over n lock shards.
func ShardIndex(id [16]byte, n int) int {
	if n <= 1 {
		return 0
	}
	return int(xxhash.Sum64(id[:]) % uint64(n))
}

