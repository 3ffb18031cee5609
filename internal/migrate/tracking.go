package migrate

import (
	"crypto/rand"
	"strconv"
	"strings"
	"time"
)

const trackingAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"

// newTrackingID builds a human-shareable token of the form
// BM-<time36>-<random>, e.g. BM-MBLZ3K1T-7QX92AF. The time component keeps
// tokens roughly sortable; the random suffix makes them unguessable enough
// for a status-lookup secret of this weight.
func newTrackingID(now time.Time) string {
	timePart := strings.ToUpper(strconv.FormatInt(now.UnixMilli(), 36))
	return "BM-" + timePart + "-" + randomToken(7)
}

func randomToken(n int) string {
	buf := make([]byte, n)
	// rand.Read never fails on supported platforms; fall back to a fixed
	// pad only to keep the token well-formed.
	if _, err := rand.Read(buf); err != nil {
		return strings.Repeat("0", n)
	}
	out := make([]byte, n)
	for i, b := range buf {
		out[i] = trackingAlphabet[int(b)%len(trackingAlphabet)]
	}
	return string(out)
}

// SanitizeTrackingID upper-cases a user-supplied token and strips everything
// outside the expected alphabet.
func SanitizeTrackingID(raw string) string {
	upper := strings.ToUpper(strings.TrimSpace(raw))
	var b strings.Builder
	for _, c := range upper {
		if (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '-' {
			b.WriteRune(c)
		}
	}
	return b.String()
}
