package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterIsIdempotent(t *testing.T) {
	assert.NotPanics(t, Register)
	assert.NotPanics(t, Register)
}

func TestCollectorsAreValid(t *testing.T) {
	reg := prometheus.NewPedanticRegistry()
	require.NoError(t, reg.Register(ProbeStatus))
	require.NoError(t, reg.Register(ClusterMembers))

	ProbeStatus.WithLabelValues("gossip").Set(2)
	ClusterMembers.Set(3)

	assert.Equal(t, 2.0, testutil.ToFloat64(ProbeStatus.WithLabelValues("gossip")))
	assert.Equal(t, 3.0, testutil.ToFloat64(ClusterMembers))
	assert.Len(t, Collectors(), 12)
}
