package recommend

import "github.com/prometheus/client_golang/prometheus"

var (
	attemptCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "recommend",
		Name:      "attempts_total",
		Help:      "Number of AI endpoint attempts, including retries.",
	})

	retryCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "recommend",
		Name:      "retries_total",
		Help:      "Number of backoff waits scheduled before a retry.",
	})

	generatedCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "recommend",
		Name:      "generated_total",
		Help:      "Number of recommendations generated successfully.",
	})

	terminalFailureCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "recommend",
		Name:      "terminal_failures_total",
		Help:      "Number of generations abandoned, grouped by reason.",
	}, []string{"reason"})

	parseFailureCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "fitness",
		Subsystem: "recommend",
		Name:      "parse_failures_total",
		Help:      "Number of AI responses rejected by the parser.",
	})
)

func init() {
	prometheus.MustRegister(attemptCounter, retryCounter, generatedCounter, terminalFailureCounter, parseFailureCounter)
}

func recordAttempt() { attemptCounter.Inc() }

func recordRetry() { retryCounter.Inc() }

func recordGenerated() { generatedCounter.Inc() }

func recordParseFailure() { parseFailureCounter.Inc() }

func recordTerminalFailure(reason string) {
	terminalFailureCounter.WithLabelValues(reason).Inc()
}
