// Package streams reports how many events each configured stream holds.
package streams

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"

	"github.com/amirimatin/eventstore-probes/pkg/check"
	"github.com/amirimatin/eventstore-probes/pkg/graphite"
)

var ErrNoETag = errors.New("streams: response carries no eTag")

// WarningMessage is reported when at least one stream failed.
const WarningMessage = "one or more streams could not be accessed"

// Fetcher opens /streams/<name> as JSON.
type Fetcher interface {
	Stream(ctx context.Context, name string) (io.ReadCloser, error)
}

type head struct {
	ETag string `json:"eTag"`
}

// CountFromETag parses the event count: the integer before the first ';'.
func CountFromETag(etag string) (int64, error) {
	if etag == "" {
		return 0, ErrNoETag
	}
	n, _, _ := strings.Cut(strings.Trim(etag, `"`), ";")
	v, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("streams: bad eTag %q: %w", etag, err)
	}
	return v, nil
}

// DecodeCount reads a stream head document and returns its event count.
func DecodeCount(r io.Reader) (int64, error) {
	var h head
	if err := json.NewDecoder(r).Decode(&h); err != nil {
		return 0, fmt.Errorf("streams: decode: %w", err)
	}
	return CountFromETag(h.ETag)
}

// Prefix is "<metricPath>[.<identifier>].streams".
func Prefix(metricPath, identifier string) string {
	return graphite.Join(metricPath, identifier, "streams")
}

// Count fetches every stream and renders "<prefix>.<stream>.count" for the
// ones that could be read. Failures are collected into a *multierror.Error
// and do not stop the remaining streams.
func Count(ctx context.Context, f Fetcher, names []string, prefix string, now time.Time) ([]graphite.Metric, error) {
	var (
		out  []graphite.Metric
		errs *multierror.Error
	)
	for _, name := range names {
		n, err := countOne(ctx, f, name)
		if err != nil {
			errs = multierror.Append(errs, fmt.Errorf("%s: %w", name, err))
			continue
		}
		out = append(out, graphite.Metric{Path: prefix + "." + name + ".count", Value: n, Timestamp: now})
	}
	return out, errs.ErrorOrNil()
}

func countOne(ctx context.Context, f Fetcher, name string) (int64, error) {
	body, err := f.Stream(ctx, name)
	if err != nil {
		return 0, err
	}
	defer body.Close()
	return DecodeCount(body)
}

// Result maps the outcome of Count to a check result.
func Result(err error) check.Result {
	if err != nil {
		return check.Warningf(WarningMessage)
	}
	return check.Result{Status: check.OK}
}
