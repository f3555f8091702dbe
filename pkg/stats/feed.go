package stats

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"
)

// Entry is one Atom entry of the stats stream. ID is the URL of the event.
type Entry struct {
	ID      string    `xml:"id"`
	Updated time.Time `xml:"updated"`
}

// Feed is the subset of an Atom feed the stats probe reads. Element names
// match regardless of the Atom namespace.
type Feed struct {
	Entries []Entry `xml:"entry"`
}

// DecodeFeed reads an Atom document.
func DecodeFeed(r io.Reader) (Feed, error) {
	var f Feed
	if err := xml.NewDecoder(r).Decode(&f); err != nil {
		return Feed{}, fmt.Errorf("stats: decode feed: %w", err)
	}
	for i, e := range f.Entries {
		f.Entries[i].ID = strings.TrimSpace(e.ID)
	}
	return f, nil
}

// Latest returns the entry with the greatest Updated time, independent of
// feed order. ok is false for an empty feed.
func (f Feed) Latest() (latest Entry, ok bool) {
	for _, e := range f.Entries {
		if !ok || e.Updated.After(latest.Updated) {
			latest, ok = e, true
		}
	}
	return latest, ok
}

// StreamName is the per-node stats stream, "$stats-<addr>:<port>".
func StreamName(addr string, port int) string {
	return fmt.Sprintf("$stats-%s:%d", addr, port)
}
