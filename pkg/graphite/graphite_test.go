package graphite

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatValue(t *testing.T) {
	assert.Equal(t, "7", FormatValue(7))
	assert.Equal(t, "-1", FormatValue(int64(-1)))
	assert.Equal(t, "99.83", FormatValue(99.83))
	assert.Equal(t, "494968832", FormatValue(494968832.0))
	assert.Equal(t, "00:00:30.0669280", FormatValue("00:00:30.0669280"))
	assert.Equal(t, "1", FormatValue(true))
}

func TestWriterSkipsNil(t *testing.T) {
	ts := time.Unix(1455110518, 0)
	var buf bytes.Buffer
	w := NewWriter(&buf)
	require.NoError(t, w.Write(
		Metric{Path: "host.eventstore.state", Value: 7, Timestamp: ts},
		Metric{Path: "host.eventstore.missing", Value: nil, Timestamp: ts},
		Metric{Path: "host.eventstore.epochNumber", Value: int64(12), Timestamp: ts},
	))
	assert.Equal(t, "host.eventstore.state 7 1455110518\nhost.eventstore.epochNumber 12 1455110518\n", buf.String())
}

func TestJoin(t *testing.T) {
	assert.Equal(t, "a.b.c", Join("a", "", "b.", ".c"))
	assert.Equal(t, "", Join())
}

func TestClusterScheme(t *testing.T) {
	assert.Equal(t, "escluster.eventstore", ClusterScheme("escluster.prod.example.com"))
	assert.Equal(t, "localhost.eventstore", ClusterScheme("localhost"))
}
