package projections

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amirimatin/eventstore-probes/pkg/check"
)

const listing = `{"projections":[
 {"name":"$by_category","status":"Running","mode":"Continuous","progress":100.0,"writesInProgress":0,"readsInProgress":1,"partitionsCached":1,"eventsProcessedAfterRestart":52,"bufferedEvents":0,"writePendingEventsBeforeCheckpoint":0,"writePendingEventsAfterCheckpoint":0},
 {"name":"$stream_by_category","status":"Stopped","mode":"Continuous","progress":40.5},
 {"name":"orders","status":"Running","mode":"Continuous","progress":98.2},
 {"name":"$users","status":"Faulted","mode":"Continuous","progress":100.0}
]}`

func decoded(t *testing.T) []Projection {
	t.Helper()
	list, err := Decode(strings.NewReader(listing))
	require.NoError(t, err)
	require.Len(t, list, 4)
	return list
}

func TestDecode(t *testing.T) {
	list := decoded(t)
	assert.Equal(t, "$by_category", list[0].Name)
	assert.Equal(t, 52.0, list[0].EventsProcessedAfterRestart)
	assert.Equal(t, 40.5, list[1].Progress)

	_, err := Decode(strings.NewReader("not json"))
	assert.Error(t, err)
}

func TestNotRunningTakesPrecedence(t *testing.T) {
	r := Evaluate(decoded(t), DefaultProgressMinimum)
	assert.Equal(t, check.Critical, r.Status)
	assert.Equal(t, "The following projections are not running: $stream_by_category, $users", r.Message)
}

func TestBehind(t *testing.T) {
	list := decoded(t)
	list[1].Status = StatusRunning
	list[3].Status = StatusRunning

	r := Evaluate(list, DefaultProgressMinimum)
	assert.Equal(t, check.Critical, r.Status)
	assert.Equal(t, "The following projections are not 100% done: $stream_by_category, orders", r.Message)

	r = Evaluate(list, 90)
	assert.Equal(t, "The following projections are not 90% done: $stream_by_category", r.Message)

	assert.Equal(t, check.OK, Evaluate(list, 40).Status)
}

func TestEvaluateEmpty(t *testing.T) {
	assert.Equal(t, check.OK, Evaluate(nil, DefaultProgressMinimum).Status)
}

func TestEncodeStatus(t *testing.T) {
	assert.Equal(t, 0, EncodeStatus("Running"))
	assert.Equal(t, 1, EncodeStatus("Stopped"))
	assert.Equal(t, -1, EncodeStatus("Faulted"))
	assert.Equal(t, -1, EncodeStatus(""))
}

func TestMetrics(t *testing.T) {
	ts := time.Unix(1455110518, 0)
	got := Metrics(decoded(t)[:2], "es1.eventstore", ts)
	require.Len(t, got, 18)

	assert.Equal(t, "es1.eventstore.$by_category.status 0 1455110518", got[0].Line())
	assert.Equal(t, "es1.eventstore.$by_category.readsInProgress 1 1455110518", got[2].Line())
	assert.Equal(t, "es1.eventstore.$by_category.progress 100 1455110518", got[4].Line())
	assert.Equal(t, "es1.eventstore.$stream_by_category.status 1 1455110518", got[9].Line())
	assert.Equal(t, "es1.eventstore.$stream_by_category.progress 40.5 1455110518", got[13].Line())
}
