package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector implements the Collector interface using Prometheus metrics.
type PrometheusCollector struct {
	sessionsStarted  *prometheus.CounterVec
	sessionsFinished *prometheus.CounterVec
	tlsEstablished   *prometheus.CounterVec

	authAttemptsTotal *prometheus.CounterVec

	commandsTotal *prometheus.CounterVec

	messagesDownloadedTotal *prometheus.CounterVec
	messagesDeletedTotal    *prometheus.CounterVec
	duplicatesSkippedTotal  *prometheus.CounterVec
	messagesSizeBytes       prometheus.Histogram

	errorsTotal *prometheus.CounterVec
}

// NewPrometheusCollector creates a new PrometheusCollector with all metrics registered.
func NewPrometheusCollector(reg prometheus.Registerer) *PrometheusCollector {
	c := &PrometheusCollector{
		sessionsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_sessions_started_total",
			Help: "Total number of retrieval sessions started.",
		}, []string{"account"}),
		sessionsFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_sessions_finished_total",
			Help: "Total number of retrieval sessions finished, by outcome.",
		}, []string{"account", "result"}),
		tlsEstablished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_tls_connections_total",
			Help: "Total number of TLS connections established.",
		}, []string{"account"}),

		authAttemptsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_auth_attempts_total",
			Help: "Total number of authentication attempts.",
		}, []string{"account", "result"}),

		commandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_commands_total",
			Help: "Total number of POP3 commands sent.",
		}, []string{"account", "command"}),

		messagesDownloadedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_messages_downloaded_total",
			Help: "Total number of messages downloaded.",
		}, []string{"account"}),
		messagesDeletedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_messages_deleted_total",
			Help: "Total number of messages deleted server-side.",
		}, []string{"account"}),
		duplicatesSkippedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_duplicates_skipped_total",
			Help: "Total number of messages skipped as already-seen duplicates.",
		}, []string{"account"}),
		messagesSizeBytes: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "popclient_message_size_bytes",
			Help:    "Size of downloaded messages in bytes.",
			Buckets: []float64{1024, 10240, 102400, 1048576, 10485760, 26214400, 52428800},
		}),

		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "popclient_errors_total",
			Help: "Total number of errors, by kind.",
		}, []string{"account", "kind"}),
	}

	reg.MustRegister(
		c.sessionsStarted,
		c.sessionsFinished,
		c.tlsEstablished,
		c.authAttemptsTotal,
		c.commandsTotal,
		c.messagesDownloadedTotal,
		c.messagesDeletedTotal,
		c.duplicatesSkippedTotal,
		c.messagesSizeBytes,
		c.errorsTotal,
	)

	return c
}

func (c *PrometheusCollector) SessionStarted(account string) {
	c.sessionsStarted.WithLabelValues(account).Inc()
}

func (c *PrometheusCollector) SessionFinished(account string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.sessionsFinished.WithLabelValues(account, result).Inc()
}

func (c *PrometheusCollector) TLSConnectionEstablished(account string) {
	c.tlsEstablished.WithLabelValues(account).Inc()
}

func (c *PrometheusCollector) AuthAttempt(account string, success bool) {
	result := "failure"
	if success {
		result = "success"
	}
	c.authAttemptsTotal.WithLabelValues(account, result).Inc()
}

func (c *PrometheusCollector) CommandProcessed(account, command string) {
	c.commandsTotal.WithLabelValues(account, command).Inc()
}

func (c *PrometheusCollector) MessageDownloaded(account string, sizeBytes int64) {
	c.messagesDownloadedTotal.WithLabelValues(account).Inc()
	c.messagesSizeBytes.Observe(float64(sizeBytes))
}

func (c *PrometheusCollector) MessageDeleted(account string) {
	c.messagesDeletedTotal.WithLabelValues(account).Inc()
}

func (c *PrometheusCollector) DuplicateSkipped(account string) {
	c.duplicatesSkippedTotal.WithLabelValues(account).Inc()
}

func (c *PrometheusCollector) ErrorObserved(account, kind string) {
	c.errorsTotal.WithLabelValues(account, kind).Inc()
}
