package metrics

import (
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/kstaniek/go-froeling-server/internal/logging"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus collectors
var (
	SerialTxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_tx_frames_total",
		Help: "Total request frames written to the boiler serial link.",
	})
	SerialRxFrames = promauto.NewCounter(prometheus.CounterOpts{
		Name: "serial_rx_frames_total",
		Help: "Total complete reply frames read from the boiler serial link.",
	})
	TCPRxLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_rx_lines_total",
		Help: "Total command lines received from TCP clients.",
	})
	TCPTxLines = promauto.NewCounter(prometheus.CounterOpts{
		Name: "tcp_tx_lines_total",
		Help: "Total response lines (success or error) sent to TCP clients.",
	})
	CommandErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "command_errors_total",
		Help: "Error lines sent to clients, by protocol error kind.",
	}, []string{"kind"})
	ActiveClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "active_clients",
		Help: "Current number of connected TCP clients.",
	})
	TransactSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "serial_transact_seconds",
		Help:    "Duration of one serial request/response round trip.",
		Buckets: prometheus.ExponentialBuckets(0.001, 2, 12),
	})
	BuildInfo = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "build_info",
		Help: "Build metadata (value is always 1).",
	}, []string{"version", "commit", "date"})
	Errors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "errors_total",
		Help: "Error counters by subsystem.",
	}, []string{"where"})
	readinessMu sync.RWMutex
	readinessFn func() bool
)

// Error label constants (stable label values to bound cardinality)
const (
	ErrTCPRead       = "tcp_read"
	ErrTCPWrite      = "tcp_write"
	ErrSerialWrite   = "serial_write"
	ErrSerialRead    = "serial_read"
	ErrSerialTimeout = "serial_timeout"
)

// StartHTTP serves Prometheus metrics at /metrics on the given address.
func StartHTTP(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if IsReady() {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ready\n"))
			return
		}
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready\n"))
	})

	srv := &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	go func() {
		logging.L().Info("metrics_listen", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.L().Error("metrics_http_error", "error", err)
		}
	}()
	return srv
}

// Local mirrored counters for easy logging (avoid Prometheus scraping in-process)
var (
	localSerialTx  uint64
	localSerialRx  uint64
	localTCPRx     uint64
	localTCPTx     uint64
	localCmdErrors uint64
	localErrors    uint64
	localClients   uint64
)

// Snapshot is a cheap copy of local counters.
type Snapshot struct {
	SerialTx      uint64
	SerialRx      uint64
	TCPRx         uint64
	TCPTx         uint64
	CommandErrors uint64 // sum across kinds
	Errors        uint64 // sum across error labels
	Clients       uint64
}

func Snap() Snapshot {
	return Snapshot{
		SerialTx:      atomic.LoadUint64(&localSerialTx),
		SerialRx:      atomic.LoadUint64(&localSerialRx),
		TCPRx:         atomic.LoadUint64(&localTCPRx),
		TCPTx:         atomic.LoadUint64(&localTCPTx),
		CommandErrors: atomic.LoadUint64(&localCmdErrors),
		Errors:        atomic.LoadUint64(&localErrors),
		Clients:       atomic.LoadUint64(&localClients),
	}
}

// Wrapper helpers to keep call sites simple.
func IncSerialTx() {
	SerialTxFrames.Inc()
	atomic.AddUint64(&localSerialTx, 1)
}

func IncSerialRx() {
	SerialRxFrames.Inc()
	atomic.AddUint64(&localSerialRx, 1)
}

func IncTCPRx() {
	TCPRxLines.Inc()
	atomic.AddUint64(&localTCPRx, 1)
}

func IncTCPTx() {
	TCPTxLines.Inc()
	atomic.AddUint64(&localTCPTx, 1)
}

// IncCommandError counts one error line sent to a client, labeled by the
// protocol error kind (TimeoutError, ChecksumError, ...).
func IncCommandError(kind string) {
	CommandErrors.WithLabelValues(kind).Inc()
	atomic.AddUint64(&localCmdErrors, 1)
}

func SetClients(n int) {
	ActiveClients.Set(float64(n))
	atomic.StoreUint64(&localClients, uint64(n))
}

func IncError(label string) {
	Errors.WithLabelValues(label).Inc()
	atomic.AddUint64(&localErrors, 1)
}

// ObserveTransact records one serial round-trip duration in seconds.
func ObserveTransact(seconds float64) { TransactSeconds.Observe(seconds) }

// InitBuildInfo sets the build info gauge (should be called once at startup).
func InitBuildInfo(version, commit, date string) {
	BuildInfo.WithLabelValues(version, commit, date).Set(1)
	// Pre-register common error label series so first error does not log a registration latency.
	for _, lbl := range []string{
		ErrTCPRead, ErrTCPWrite,
		ErrSerialWrite, ErrSerialRead, ErrSerialTimeout,
	} {
		Errors.WithLabelValues(lbl).Add(0)
	}
}

// SetReadinessFunc registers a function used by /ready and IsReady.
func SetReadinessFunc(fn func() bool) { readinessMu.Lock(); readinessFn = fn; readinessMu.Unlock() }

// IsReady invokes the registered readiness function if present.
func IsReady() bool {
	readinessMu.RLock()
	fn := readinessFn
	readinessMu.RUnlock()
	if fn == nil { // if not set yet, treat as ready so metrics endpoint doesn't flap
		return true
	}
	return fn()
}
