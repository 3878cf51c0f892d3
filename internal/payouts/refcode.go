package payouts

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const base36Upper = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// ReferenceCode builds the external payment reference printed on
// receipts: "9W", the last 6 characters of the rider id, the last 6
// digits of the unix-millisecond timestamp, and 2 random base36
// characters. Uniqueness is enforced by the store; callers regenerate
// on collision.
func ReferenceCode(riderID string, now time.Time) string {
	var b strings.Builder
	b.WriteString("9W")
	b.WriteString(strings.ToUpper(lastN(strings.ReplaceAll(riderID, "-", ""), 6)))
	b.WriteString(lastN(strconv.FormatInt(now.UnixMilli(), 10), 6))
	b.WriteString(randBase36(2))
	return b.String()
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

func randBase36(n int) string {
	buf := make([]byte, n)
	_, _ = rand.Read(buf)
	out := make([]byte, n)
	for i, c := range buf {
		out[i] = base36Upper[int(c)%len(base36Upper)]
	}
	return string(out)
}
