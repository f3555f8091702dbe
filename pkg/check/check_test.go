package check

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCodes(t *testing.T) {
	assert.Equal(t, 0, OK.ExitCode())
	assert.Equal(t, 1, Warning.ExitCode())
	assert.Equal(t, 2, Critical.ExitCode())
	assert.Equal(t, 3, Unknown.ExitCode())
	assert.Equal(t, 3, Status(9).ExitCode())
	assert.Equal(t, 3, Status(-1).ExitCode())
}

func TestLine(t *testing.T) {
	assert.Equal(t, "CheckGossip OK: all good", Okf("all %s", "good").Line("CheckGossip"))
	assert.Equal(t, "CheckGossip CRITICAL: boom", Criticalf("boom").Line("CheckGossip"))
	assert.Equal(t, "Metrics OK", Result{}.Line("Metrics"))
}

func TestWorst(t *testing.T) {
	assert.Equal(t, OK, Worst().Status)
	got := Worst(Okf("a"), Warningf("b"), Criticalf("c"), Warningf("d"))
	assert.Equal(t, Criticalf("c"), got)
	assert.Equal(t, Unknownf("u"), Worst(Criticalf("c"), Unknownf("u")))
}

func TestStatusJSON(t *testing.T) {
	b, err := json.Marshal(Warningf("slow"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"status":"WARNING","message":"slow"}`, string(b))

	var r Result
	require.NoError(t, json.Unmarshal([]byte(`{"status":"critical","message":"x"}`), &r))
	assert.Equal(t, Critical, r.Status)
	assert.Error(t, json.Unmarshal([]byte(`{"status":"meh"}`), &r))
}
