package storage

import "github.com/prometheus/client_golang/prometheus"

// metrics wraps the optional counters registered against Options.Metrics.
// A nil *metrics (when no registry was supplied) makes every method a
// no-op, so callers never need a nil check of their own.
type metrics struct {
	logBytesWritten   prometheus.Counter
	compactionsRun    prometheus.Counter
	txnsCommitted     prometheus.Counter
	txnsRolledBack    prometheus.Counter
}

func newMetrics(reg *prometheus.Registry) *metrics {
	if reg == nil {
		return nil
	}

	m := &metrics{
		logBytesWritten: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tegdb_log_bytes_written_total",
			Help: "Total bytes appended to the log file.",
		}),
		compactionsRun: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tegdb_compactions_total",
			Help: "Total number of log compactions performed.",
		}),
		txnsCommitted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tegdb_transactions_committed_total",
			Help: "Total number of committed transactions.",
		}),
		txnsRolledBack: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tegdb_transactions_rolled_back_total",
			Help: "Total number of rolled-back transactions.",
		}),
	}

	reg.MustRegister(m.logBytesWritten, m.compactionsRun, m.txnsCommitted, m.txnsRolledBack)
	return m
}

func (m *metrics) addLogBytes(n int64) {
	if m == nil {
		return
	}
	m.logBytesWritten.Add(float64(n))
}

func (m *metrics) incCompaction() {
	if m == nil {
		return
	}
	m.compactionsRun.Inc()
}

func (m *metrics) incCommitted() {
	if m == nil {
		return
	}
	m.txnsCommitted.Inc()
}

func (m *metrics) incRolledBack() {
	if m == nil {
		return
	}
	m.txnsRolledBack.Inc()
}
