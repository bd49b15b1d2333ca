package link

import (
	"time"

	"github.com/dustin/go-humanize"
)

// Diagnostics es el estado observable del link, incluido en cada snapshot.
type Diagnostics struct {
	State          string       `json:"state"`
	Live           bool         `json:"live"`
	BoundingBox    [][2]float64 `json:"boundingBox,omitempty"`
	LastConnectISO string       `json:"lastConnectISO,omitempty"`
	LastMessageISO string       `json:"lastMessageISO,omitempty"`
	LastMessageAgo string       `json:"lastMessageAgo,omitempty"`
	LastError      string       `json:"lastError,omitempty"`
	Connects       int          `json:"connects"`
}

func formatISO(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}

func ago(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.RelTime(t, now, "ago", "from now")
}
