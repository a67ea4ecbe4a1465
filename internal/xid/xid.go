package xid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"time"
)

func New(prefix string) string {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("%s-%d", prefix, time.Now().UnixNano())
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().UnixNano(), hex.EncodeToString(buf))
}

// Txn formats a sequential transaction id for the given business day.
// The day component uses UTC so the counter resets at the same instant
// regardless of server timezone.
func Txn(at time.Time, seq int) string {
	return fmt.Sprintf("TXN%s%05d", at.UTC().Format("20060102"), seq)
}
