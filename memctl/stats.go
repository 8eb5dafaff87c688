package memctl

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "eccmem"

// Stats aggregates the debug sideband of one controller.
type Stats struct {
	// Requests counts accepted upstream requests. Labels: op (read, write).
	Requests *prometheus.CounterVec
	// Responses counts drained upstream responses.
	Responses prometheus.Counter
	// Errors counts responses with a non-zero syndrome.
	// Labels: class (corrected, uncorrectable).
	Errors *prometheus.CounterVec
	// FlippedBits counts codeword bits corrected on responses.
	FlippedBits prometheus.Counter
	// Ignored counts responses excluded through DebugIgnore.
	Ignored prometheus.Counter
	// Cycles counts clock edges.
	Cycles prometheus.Counter
}

// NewStats registers the controller metrics with reg.
func NewStats(reg prometheus.Registerer, controller string) *Stats {
	f := promauto.With(reg)
	labels := prometheus.Labels{"controller": controller}
	return &Stats{
		Requests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "controller",
			Name:        "requests_total",
			Help:        "Accepted upstream requests.",
			ConstLabels: labels,
		}, []string{"op"}),
		Responses: f.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "controller",
			Name:        "responses_total",
			Help:        "Upstream responses consumed.",
			ConstLabels: labels,
		}),
		Errors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "controller",
			Name:        "errors_total",
			Help:        "Responses with a detected error.",
			ConstLabels: labels,
		}, []string{"class"}),
		FlippedBits: f.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "controller",
			Name:        "flipped_bits_total",
			Help:        "Codeword bits corrected on responses.",
			ConstLabels: labels,
		}),
		Ignored: f.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "controller",
			Name:        "ignored_responses_total",
			Help:        "Responses excluded from error statistics.",
			ConstLabels: labels,
		}),
		Cycles: f.NewCounter(prometheus.CounterOpts{
			Namespace:   metricsNamespace,
			Subsystem:   "controller",
			Name:        "cycles_total",
			Help:        "Simulated clock edges.",
			ConstLabels: labels,
		}),
	}
}

func (s *Stats) request(req Request) {
	op := "read"
	if req.WriteEn {
		op = "write"
	}
	s.Requests.WithLabelValues(op).Inc()
}

func (s *Stats) response(dbg DebugInfo) {
	s.Responses.Inc()
	if dbg.Ignore {
		s.Ignored.Inc()
		return
	}
	if !dbg.Error {
		return
	}
	if dbg.Uncorrectable {
		s.Errors.WithLabelValues("uncorrectable").Inc()
		return
	}
	s.Errors.WithLabelValues("corrected").Inc()
	if dbg.Flips != nil {
		s.FlippedBits.Add(float64(dbg.Flips.OnesCount()))
	}
}
