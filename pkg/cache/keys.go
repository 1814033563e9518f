package cache

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// Key joins parts with ':'.
func Key(parts ...interface{}) string {
	var b strings.Builder
	for i, p := range parts {
		if i > 0 {
			b.WriteByte(':')
		}
		fmt.Fprint(&b, p)
	}
	return b.String()
}

// HashKey shortens an arbitrary key to a fixed-width hex digest.
func HashKey(key string) string {
	return strconv.FormatUint(xxhash.Sum64String(key), 16)
}
