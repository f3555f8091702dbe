// Package stats turns the event store's own statistics stream into process
// and queue metrics.
package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"

	"github.com/amirimatin/eventstore-probes/pkg/graphite"
)

// Decode reads one stats event: a flat map of "proc-*", "sys-*" and
// "es-queue-*" keys.
func Decode(r io.Reader) (map[string]any, error) {
	var m map[string]any
	if err := json.NewDecoder(r).Decode(&m); err != nil {
		return nil, fmt.Errorf("stats: decode entry: %w", err)
	}
	return m, nil
}

// Options controls metric naming.
type Options struct {
	// ProcScheme prefixes process metrics, usually "<hostname>.eventstore".
	ProcScheme string
	// QueueScheme prefixes queue metrics, usually "<cluster label>.eventstore".
	QueueScheme string
	// Identifier, when set, is inserted after either scheme.
	Identifier string
}

type procMapping struct{ source, target string }

var procTable = []procMapping{
	{"proc-mem", "memory"},
	{"proc-cpu", "cpu"},
	{"proc-threadsCount", "threadsCount"},
	{"proc-contentionsRate", "contentionsRate"},
	{"proc-thrownExceptionsRate", "thrownExceptionsRate"},
	{"proc-diskIo-readBytes", "diskIo.readBytes"},
	{"proc-diskIo-writtenBytes", "diskIo.writtenBytes"},
	{"proc-diskIo-readOps", "diskIo.readOps"},
	{"proc-diskIo-writeOps", "diskIo.writeOps"},
	{"proc-tcp-receivingSpeed", "tcp.receivingSpeed"},
	{"proc-tcp-sendingSpeed", "tcp.sendingSpeed"},
	{"proc-tcp-inSend", "tcp.inSend"},
	{"proc-tcp-measureTime", "tcp.measureTime"},
	{"proc-tcp-receivedBytesSinceLastRun", "tcp.receivedBytesSinceLastRun"},
	{"proc-tcp-sentBytesSinceLastRun", "tcp.sentBytesSinceLastRun"},
	{"proc-gc-gen0Size", "gc.gen0Size"},
	{"proc-gc-gen1Size", "gc.gen1Size"},
	{"proc-gc-gen2Size", "gc.gen2Size"},
	{"proc-gc-largeHeapSize", "gc.largeHeapSize"},
	{"proc-gc-totalBytesInHeaps", "gc.totalBytesInHeaps"},
}

// ProcMetrics renders the process table. Keys absent from stats, or null,
// produce no metric.
func ProcMetrics(stats map[string]any, opts Options, ts time.Time) []graphite.Metric {
	var out []graphite.Metric
	for _, m := range procTable {
		v, ok := stats[m.source]
		if !ok || v == nil {
			continue
		}
		out = append(out, graphite.Metric{
			Path:      graphite.Join(opts.ProcScheme, opts.Identifier, m.target),
			Value:     v,
			Timestamp: ts,
		})
	}
	return out
}

// QueueStats holds the per-queue counters we export. Fields are nil when
// the stats event did not carry the key.
type QueueStats struct {
	AvgItemsPerSecond    *float64 `mapstructure:"avgItemsPerSecond"`
	AvgProcessingTime    *float64 `mapstructure:"avgProcessingTime"`
	CurrentIdleTime      *string  `mapstructure:"currentIdleTime"`
	IdleTimePercent      *float64 `mapstructure:"idleTimePercent"`
	Length               *float64 `mapstructure:"length"`
	LengthCurrentTryPeak *float64 `mapstructure:"lengthCurrentTryPeak"`
	LengthLifetimePeak   *float64 `mapstructure:"lengthLifetimePeak"`
	TotalItemsProcessed  *float64 `mapstructure:"totalItemsProcessed"`
}

type queueField struct {
	name  string
	value any
}

func (q QueueStats) fields() []queueField {
	var out []queueField
	add := func(name string, v any) { out = append(out, queueField{name, v}) }
	if q.AvgItemsPerSecond != nil {
		add("avgItemsPerSecond", *q.AvgItemsPerSecond)
	}
	if q.AvgProcessingTime != nil {
		add("avgProcessingTime", *q.AvgProcessingTime)
	}
	if q.CurrentIdleTime != nil {
		add("currentIdleTime", *q.CurrentIdleTime)
	}
	if q.IdleTimePercent != nil {
		add("idleTimePercent", *q.IdleTimePercent)
	}
	if q.Length != nil {
		add("length", *q.Length)
	}
	if q.LengthCurrentTryPeak != nil {
		add("lengthCurrentTryPeak", *q.LengthCurrentTryPeak)
	}
	if q.LengthLifetimePeak != nil {
		add("lengthLifetimePeak", *q.LengthLifetimePeak)
	}
	if q.TotalItemsProcessed != nil {
		add("totalItemsProcessed", *q.TotalItemsProcessed)
	}
	return out
}

const queuePrefix = "es-queue-"

var wantedQueueMetrics = map[string]bool{
	"avgItemsPerSecond":    true,
	"avgProcessingTime":    true,
	"currentIdleTime":      true,
	"idleTimePercent":      true,
	"length":               true,
	"lengthCurrentTryPeak": true,
	"lengthLifetimePeak":   true,
	"totalItemsProcessed":  true,
}

// Queues groups the "es-queue-<queue>-<metric>" keys of stats by queue
// name. The metric is the text after the last dash, so queue names may
// themselves contain dashes.
func Queues(stats map[string]any) (map[string]QueueStats, error) {
	raw := make(map[string]map[string]any)
	for key, v := range stats {
		if !strings.HasPrefix(key, queuePrefix) || v == nil {
			continue
		}
		rest := strings.TrimPrefix(key, queuePrefix)
		i := strings.LastIndex(rest, "-")
		if i <= 0 {
			continue
		}
		queue, metric := rest[:i], rest[i+1:]
		if !wantedQueueMetrics[metric] {
			continue
		}
		if raw[queue] == nil {
			raw[queue] = make(map[string]any)
		}
		raw[queue][metric] = v
	}

	out := make(map[string]QueueStats, len(raw))
	for queue, fields := range raw {
		var qs QueueStats
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			WeaklyTypedInput: true,
			Result:           &qs,
		})
		if err != nil {
			return nil, err
		}
		if err := dec.Decode(fields); err != nil {
			return nil, fmt.Errorf("stats: queue %q: %w", queue, err)
		}
		out[queue] = qs
	}
	return out, nil
}

var nonAlnumRE = regexp.MustCompile(`[^A-Za-z0-9]+`)

// CleanQueueName drops every non-alphanumeric run: "Projection Core #0"
// becomes "ProjectionCore0".
func CleanQueueName(name string) string {
	return nonAlnumRE.ReplaceAllString(name, "")
}

// QueueMetrics renders "<scheme>[.<id>].<queue>.<metric>" series, queues in
// name order.
func QueueMetrics(stats map[string]any, opts Options, ts time.Time) ([]graphite.Metric, error) {
	queues, err := Queues(stats)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(queues))
	for q := range queues {
		names = append(names, q)
	}
	sort.Strings(names)

	var out []graphite.Metric
	for _, q := range names {
		base := graphite.Join(opts.QueueScheme, opts.Identifier, CleanQueueName(q))
		for _, f := range queues[q].fields() {
			out = append(out, graphite.Metric{Path: base + "." + f.name, Value: f.value, Timestamp: ts})
		}
	}
	return out, nil
}

// Metrics is ProcMetrics followed by QueueMetrics.
func Metrics(stats map[string]any, opts Options, ts time.Time) ([]graphite.Metric, error) {
	queue, err := QueueMetrics(stats, opts, ts)
	if err != nil {
		return nil, err
	}
	return append(ProcMetrics(stats, opts, ts), queue...), nil
}
