package metrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	require.NotPanics(t, func() {
		r.ConsensusReached(1)
		r.QueueDepth(0, 3)
		r.ActiveRequest(0, []string{"send"}, "send")
		r.Extrinsic("submit", errors.New("x"))
		r.OcwFailed("discovery")
	})
}

func TestRecorder(t *testing.T) {
	require := require.New(t)
	reg := prometheus.NewRegistry()
	r := NewRecorder(reg)

	r.ConsensusReached(7)
	r.ConsensusReached(7)
	r.ConsensusCleared(7)
	r.QueueDepth(0, 4)
	r.ActiveRequest(0, []string{"send", "lower"}, "lower")
	r.Extrinsic("submit", nil)
	r.Extrinsic("submit", errors.New("bad"))

	require.Equal(2.0, testutil.ToFloat64(r.consensusReached.WithLabelValues("7")))
	require.Equal(1.0, testutil.ToFloat64(r.consensusCleared.WithLabelValues("7")))
	require.Equal(4.0, testutil.ToFloat64(r.queueDepth.WithLabelValues("0")))
	require.Equal(1.0, testutil.ToFloat64(r.activeRequest.WithLabelValues("0", "lower")))
	require.Equal(0.0, testutil.ToFloat64(r.activeRequest.WithLabelValues("0", "send")))
	require.Equal(1.0, testutil.ToFloat64(r.extrinsics.WithLabelValues("submit", "failure")))

	families, err := reg.Gather()
	require.NoError(err)
	require.NotEmpty(families)
}
