package order

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"
)

// NewOrderNo builds a human-readable order number: a second-resolution
// UTC timestamp followed by a 10-digit random suffix. The order_no
// column carries a unique constraint as the backstop for the
// vanishingly small collision window.
func NewOrderNo(now time.Time) string {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// crypto/rand never fails on supported platforms; fall back to
		// the clock rather than panicking in a hot path.
		binary.BigEndian.PutUint64(buf[:], uint64(now.UnixNano()))
	}
	suffix := binary.BigEndian.Uint64(buf[:]) % 1e10
	return fmt.Sprintf("%s%010d", now.UTC().Format("20060102150405"), suffix)
}
