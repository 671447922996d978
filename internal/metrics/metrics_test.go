package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInit_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Init()
		Init()
	})
}

func TestObservePoll(t *testing.T) {
	before := PollCount("telemetry", ResultError)
	ObservePoll("telemetry", ResultError, 15*time.Millisecond)
	ObservePoll("telemetry", ResultSuccess, 5*time.Millisecond)

	assert.Equal(t, before+1, PollCount("telemetry", ResultError))
	assert.GreaterOrEqual(t, PollCount("telemetry", ResultSuccess), 1.0)
}

func TestObserveCommand(t *testing.T) {
	before := CommandCount("event.delete", ResultError)
	ObserveCommand("event.delete", errors.New("404"))
	ObserveCommand("event.delete", nil)

	assert.Equal(t, before+1, CommandCount("event.delete", ResultError))
}

func TestGatheredFromDefaultRegistry(t *testing.T) {
	ObserveConnect(nil)

	families, err := prometheus.DefaultGatherer.Gather()
	require.NoError(t, err)

	names := map[string]bool{}
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["subconsole_connect_total"])
}
