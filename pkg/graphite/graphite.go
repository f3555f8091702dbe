// Package graphite renders metrics in the Graphite plaintext protocol:
// one "path value timestamp" line per metric.
package graphite

import (
	"bufio"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Metric is a single data point. Value is written as-is for strings and in
// shortest form for numbers; nil values are skipped by the Writer.
type Metric struct {
	Path      string
	Value     any
	Timestamp time.Time
}

// Line renders m without the trailing newline.
func (m Metric) Line() string {
	return fmt.Sprintf("%s %s %d", m.Path, FormatValue(m.Value), m.Timestamp.Unix())
}

// FormatValue renders numbers without exponent or trailing zeros.
func FormatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(x), 'f', -1, 32)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case uint64:
		return strconv.FormatUint(x, 10)
	case bool:
		if x {
			return "1"
		}
		return "0"
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(x)
	}
}

// Writer emits metrics to an underlying stream.
type Writer struct {
	w *bufio.Writer
}

func NewWriter(w io.Writer) *Writer { return &Writer{w: bufio.NewWriter(w)} }

// Write emits the given metrics and flushes.
func (w *Writer) Write(metrics ...Metric) error {
	for _, m := range metrics {
		if m.Value == nil || m.Path == "" {
			continue
		}
		if _, err := w.w.WriteString(m.Line()); err != nil {
			return err
		}
		if err := w.w.WriteByte('\n'); err != nil {
			return err
		}
	}
	return w.w.Flush()
}

// Join builds a dotted path, dropping empty segments.
func Join(parts ...string) string {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(p, ".")
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ".")
}

var firstLabelRE = regexp.MustCompile(`^[^.]+`)

// ClusterScheme derives "<first dns label>.eventstore" from a cluster name,
// the default prefix for cluster-wide metric families.
func ClusterScheme(clusterDNS string) string {
	return firstLabelRE.FindString(clusterDNS) + ".eventstore"
}
