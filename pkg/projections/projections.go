// Package projections decodes the event store's projection listing and
// turns it into a health result or a set of metrics.
package projections

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/graphite"
)

// DefaultProgressMinimum is the progress percentage below which a
// projection counts as behind.
const DefaultProgressMinimum = 100.0

const (
	StatusRunning = "Running"
	StatusStopped = "Stopped"
)

// Projection is one entry of /projections/{continuous,any}.
type Projection struct {
	Name          string  `json:"name"`
	EffectiveName string  `json:"effectiveName"`
	Status        string  `json:"status"`
	Mode          string  `json:"mode"`
	Progress      float64 `json:"progress"`

	WritesInProgress                   float64 `json:"writesInProgress"`
	ReadsInProgress                    float64 `json:"readsInProgress"`
	PartitionsCached                   float64 `json:"partitionsCached"`
	EventsProcessedAfterRestart        float64 `json:"eventsProcessedAfterRestart"`
	BufferedEvents                     float64 `json:"bufferedEvents"`
	WritePendingEventsBeforeCheckpoint float64 `json:"writePendingEventsBeforeCheckpoint"`
	WritePendingEventsAfterCheckpoint  float64 `json:"writePendingEventsAfterCheckpoint"`
}

type document struct {
	Projections []Projection `json:"projections"`
}

// Decode reads a projection listing.
func Decode(r io.Reader) ([]Projection, error) {
	var doc document
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("projections: decode: %w", err)
	}
	return doc.Projections, nil
}

// NotRunning returns the names of projections whose status is not Running.
func NotRunning(list []Projection) []string {
	var out []string
	for _, p := range list {
		if p.Status != StatusRunning {
			out = append(out, p.Name)
		}
	}
	return out
}

// Behind returns the names of projections with progress below minimum.
func Behind(list []Projection, minimum float64) []string {
	var out []string
	for _, p := range list {
		if p.Progress < minimum {
			out = append(out, p.Name)
		}
	}
	return out
}

// Evaluate is CRITICAL when any projection is not running, otherwise
// CRITICAL when any is behind minimum, otherwise OK with an empty message.
func Evaluate(list []Projection, minimum float64) check.Result {
	if names := NotRunning(list); len(names) > 0 {
		return check.Criticalf("The following projections are not running: %s", strings.Join(names, ", "))
	}
	if names := Behind(list, minimum); len(names) > 0 {
		return check.Criticalf("The following projections are not %g%% done: %s", minimum, strings.Join(names, ", "))
	}
	return check.Result{Status: check.OK}
}

// EncodeStatus maps Running to 0, Stopped to 1 and anything else to -1.
func EncodeStatus(status string) int {
	switch status {
	case StatusRunning:
		return 0
	case StatusStopped:
		return 1
	default:
		return -1
	}
}

// Metrics renders "<prefix>.<name>.<metric>" series for every projection,
// all stamped with ts.
func Metrics(list []Projection, prefix string, ts time.Time) []graphite.Metric {
	out := make([]graphite.Metric, 0, len(list)*9)
	for _, p := range list {
		base := graphite.Join(prefix, p.Name)
		point := func(name string, v any) graphite.Metric {
			return graphite.Metric{Path: base + "." + name, Value: v, Timestamp: ts}
		}
		out = append(out,
			point("status", EncodeStatus(p.Status)),
			point("writesInProgress", p.WritesInProgress),
			point("readsInProgress", p.ReadsInProgress),
			point("partitionsCached", p.PartitionsCached),
			point("progress", p.Progress),
			point("eventsProcessedAfterRestart", p.EventsProcessedAfterRestart),
			point("bufferedEvents", p.BufferedEvents),
			point("writePendingEventsBeforeCheckpoint", p.WritePendingEventsBeforeCheckpoint),
			point("writePendingEventsAfterCheckpoint", p.WritePendingEventsAfterCheckpoint),
		)
	}
	return out
}
