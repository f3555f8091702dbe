package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "eventstore"

var (
	once sync.Once

	ProbeStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "status",
		Help:      "Last check status per probe (0=OK 1=WARNING 2=CRITICAL 3=UNKNOWN)",
	}, []string{"probe"})

	ProbeRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "runs_total",
		Help:      "Total probe runs by result status",
	}, []string{"probe", "status"})

	ProbeDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "probe",
		Name:      "duration_seconds",
		Help:      "Wall time of a single probe run",
		Buckets:   prometheus.DefBuckets,
	}, []string{"probe"})

	HTTPRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests sent to the event store, by endpoint and outcome",
	}, []string{"endpoint", "outcome"})

	ClusterMembers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gossip",
		Name:      "members",
		Help:      "Members listed in the last gossip snapshot",
	})

	ClusterAliveMembers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gossip",
		Name:      "alive_members",
		Help:      "Members reporting IsAlive in the last gossip snapshot",
	})

	ClusterExpectedMembers = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gossip",
		Name:      "expected_members",
		Help:      "Cluster size the last gossip snapshot was evaluated against",
	})

	MemberState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "gossip",
		Name:      "member_state",
		Help:      "State ordinal per member (Master=7, Slave=5, unknown=-1)",
	}, []string{"instance", "address"})

	NodeCheckpoint = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "node",
		Name:      "checkpoint",
		Help:      "Checkpoints of the answering node",
	}, []string{"kind"})

	ProjectionStatus = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "projection",
		Name:      "status",
		Help:      "Projection status (Running=0 Stopped=1 other=-1)",
	}, []string{"projection"})

	ProjectionProgress = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "projection",
		Name:      "progress_percent",
		Help:      "Projection progress percentage",
	}, []string{"projection"})

	ProjectionEventsProcessed = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "projection",
		Name:      "events_processed_after_restart",
		Help:      "Events processed since the projection last restarted",
	}, []string{"projection"})
)

// Collectors lists every collector owned by this package.
func Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		ProbeStatus, ProbeRuns, ProbeDuration, HTTPRequests,
		ClusterMembers, ClusterAliveMembers, ClusterExpectedMembers, MemberState, NodeCheckpoint,
		ProjectionStatus, ProjectionProgress, ProjectionEventsProcessed,
	}
}

// Register registers metrics into the default Prometheus registry (idempotent).
func Register() {
	once.Do(func() {
		prometheus.MustRegister(Collectors()...)
	})
}
