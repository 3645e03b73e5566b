// Package metrics exposes Prometheus metrics for the bridge node.
//
// A nil *Recorder is valid and records nothing, so components can be built
// without metrics in tests.
package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the node's metrics.
type Recorder struct {
	consensusReached  *prometheus.CounterVec
	consensusCleared  *prometheus.CounterVec
	queueDepth        *prometheus.GaugeVec
	activeRequest     *prometheus.GaugeVec
	requestsCompleted *prometheus.CounterVec
	eventsProcessed   *prometheus.CounterVec
	extrinsics        *prometheus.CounterVec
	poolSize          prometheus.Gauge
	blockHeight       prometheus.Gauge
	ocwSubmissions    *prometheus.CounterVec
	ocwErrors         *prometheus.CounterVec
}

// NewRecorder registers metrics with the provided registry.
func NewRecorder(reg prometheus.Registerer) *Recorder {
	r := &Recorder{
		consensusReached: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avn_consensus_reached_total",
			Help: "Consensus rounds closed by quorum, per feed",
		}, []string{"feed"}),
		consensusCleared: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avn_consensus_cleared_total",
			Help: "Consensus rounds cleared after the grace period, per feed",
		}, []string{"feed"}),
		queueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "avn_bridge_request_queue_depth",
			Help: "Queued bridge requests per instance",
		}, []string{"instance"}),
		activeRequest: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "avn_bridge_active_request",
			Help: "Kind of the active bridge request per instance (1 when active)",
		}, []string{"instance", "kind"}),
		requestsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avn_bridge_requests_completed_total",
			Help: "Completed bridge requests grouped by kind and result",
		}, []string{"kind", "result"}),
		eventsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avn_bridge_events_processed_total",
			Help: "Ethereum events processed grouped by result",
		}, []string{"result"}),
		extrinsics: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avn_runtime_extrinsics_total",
			Help: "Applied extrinsics grouped by call and result",
		}, []string{"call", "result"}),
		poolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avn_runtime_pool_size",
			Help: "Extrinsics waiting in the pool",
		}),
		blockHeight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "avn_runtime_block_height",
			Help: "Number of the last produced block",
		}),
		ocwSubmissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avn_ocw_submissions_total",
			Help: "Extrinsics submitted by the off-chain worker grouped by call",
		}, []string{"call"}),
		ocwErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "avn_ocw_errors_total",
			Help: "Off-chain worker failures grouped by task",
		}, []string{"task"}),
	}

	reg.MustRegister(
		r.consensusReached,
		r.consensusCleared,
		r.queueDepth,
		r.activeRequest,
		r.requestsCompleted,
		r.eventsProcessed,
		r.extrinsics,
		r.poolSize,
		r.blockHeight,
		r.ocwSubmissions,
		r.ocwErrors,
	)
	return r
}

func feedLabel(feed uint32) string {
	return fmt.Sprintf("%d", feed)
}

func (r *Recorder) ConsensusReached(feed uint32) {
	if r == nil {
		return
	}
	r.consensusReached.WithLabelValues(feedLabel(feed)).Inc()
}

func (r *Recorder) ConsensusCleared(feed uint32) {
	if r == nil {
		return
	}
	r.consensusCleared.WithLabelValues(feedLabel(feed)).Inc()
}

func (r *Recorder) QueueDepth(instance uint32, n int) {
	if r == nil {
		return
	}
	r.queueDepth.WithLabelValues(feedLabel(instance)).Set(float64(n))
}

// ActiveRequest marks kind as the active request of instance. An empty kind
// clears the instance.
func (r *Recorder) ActiveRequest(instance uint32, kinds []string, kind string) {
	if r == nil {
		return
	}
	for _, k := range kinds {
		v := 0.0
		if k == kind {
			v = 1
		}
		r.activeRequest.WithLabelValues(feedLabel(instance), k).Set(v)
	}
}

func (r *Recorder) RequestCompleted(kind string, success bool) {
	if r == nil {
		return
	}
	r.requestsCompleted.WithLabelValues(kind, result(success)).Inc()
}

// EventProcessed counts an Ethereum event as "accepted", "rejected" or
// "duplicate".
func (r *Recorder) EventProcessed(outcome string) {
	if r == nil {
		return
	}
	r.eventsProcessed.WithLabelValues(outcome).Inc()
}

func (r *Recorder) Extrinsic(call string, err error) {
	if r == nil {
		return
	}
	r.extrinsics.WithLabelValues(call, result(err == nil)).Inc()
}

func (r *Recorder) PoolSize(n int) {
	if r == nil {
		return
	}
	r.poolSize.Set(float64(n))
}

func (r *Recorder) BlockHeight(n uint64) {
	if r == nil {
		return
	}
	r.blockHeight.Set(float64(n))
}

func (r *Recorder) OcwSubmitted(call string) {
	if r == nil {
		return
	}
	r.ocwSubmissions.WithLabelValues(call).Inc()
}

func (r *Recorder) OcwFailed(task string) {
	if r == nil {
		return
	}
	r.ocwErrors.WithLabelValues(task).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

// Serve exposes the registry on addr under /metrics. It returns the server so
// the caller can shut it down.
func Serve(addr string, gatherer prometheus.Gatherer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		_ = srv.ListenAndServe()
	}()
	return srv
}
