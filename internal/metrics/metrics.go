package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SessionProvider exposes the current session count.
type SessionProvider interface {
	NumSessions() int
}

// DropStatsProvider exposes the cumulative datagram drop counters
// accumulated by a SessionManager.
type DropStatsProvider interface {
	Stats() (unroutable, parseFailures, poolExhausted, duplicates, stale, reaped uint64)
}

// TickProvider exposes the cumulative tick/frame counters accumulated by a
// running Server.
type TickProvider interface {
	TicksCompleted() uint64
	TicksFailed() uint64
}

// Collector is a prometheus.Collector that gathers netsound pipeline
// metrics at scrape time.
type Collector struct {
	sessions  SessionProvider
	drops     DropStatsProvider
	ticks     TickProvider
	startTime time.Time

	sessionsDesc       *prometheus.Desc
	droppedDesc        *prometheus.Desc
	reapedDesc         *prometheus.Desc
	ticksCompletedDesc *prometheus.Desc
	ticksFailedDesc    *prometheus.Desc
	uptimeDesc         *prometheus.Desc
}

// NewCollector creates a new metrics collector. Any provider may be nil if
// unavailable.
func NewCollector(sessions SessionProvider, drops DropStatsProvider, ticks TickProvider, startTime time.Time) *Collector {
	return &Collector{
		sessions:  sessions,
		drops:     drops,
		ticks:     ticks,
		startTime: startTime,

		sessionsDesc: prometheus.NewDesc(
			"netsound_sessions_active",
			"Number of currently active receive sessions",
			nil, nil,
		),
		droppedDesc: prometheus.NewDesc(
			"netsound_datagrams_dropped_total",
			"Total datagrams dropped, by reason",
			[]string{"reason"}, nil,
		),
		reapedDesc: prometheus.NewDesc(
			"netsound_sessions_reaped_total",
			"Total sessions removed for being broken or idle",
			nil, nil,
		),
		ticksCompletedDesc: prometheus.NewDesc(
			"netsound_ticks_completed_total",
			"Total pipeline ticks that emitted a frame successfully",
			nil, nil,
		),
		ticksFailedDesc: prometheus.NewDesc(
			"netsound_ticks_failed_total",
			"Total pipeline ticks that returned a terminal failure",
			nil, nil,
		),
		uptimeDesc: prometheus.NewDesc(
			"netsound_uptime_seconds",
			"Seconds since the netsound process started",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector.
func (c *Collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.sessionsDesc
	ch <- c.droppedDesc
	ch <- c.reapedDesc
	ch <- c.ticksCompletedDesc
	ch <- c.ticksFailedDesc
	ch <- c.uptimeDesc
}

// Collect implements prometheus.Collector. It queries all providers at
// scrape time.
func (c *Collector) Collect(ch chan<- prometheus.Metric) {
	if c.sessions != nil {
		ch <- prometheus.MustNewConstMetric(
			c.sessionsDesc, prometheus.GaugeValue,
			float64(c.sessions.NumSessions()),
		)
	}

	if c.drops != nil {
		unroutable, parseFailures, poolExhausted, duplicates, stale, reaped := c.drops.Stats()
		for reason, v := range map[string]uint64{
			"unroutable":     unroutable,
			"parse_failure":  parseFailures,
			"pool_exhausted": poolExhausted,
			"duplicate":      duplicates,
			"stale":          stale,
		} {
			ch <- prometheus.MustNewConstMetric(
				c.droppedDesc, prometheus.CounterValue,
				float64(v), reason,
			)
		}
		ch <- prometheus.MustNewConstMetric(
			c.reapedDesc, prometheus.CounterValue,
			float64(reaped),
		)
	}

	if c.ticks != nil {
		ch <- prometheus.MustNewConstMetric(
			c.ticksCompletedDesc, prometheus.CounterValue,
			float64(c.ticks.TicksCompleted()),
		)
		ch <- prometheus.MustNewConstMetric(
			c.ticksFailedDesc, prometheus.CounterValue,
			float64(c.ticks.TicksFailed()),
		)
	}

	ch <- prometheus.MustNewConstMetric(
		c.uptimeDesc, prometheus.GaugeValue,
		time.Since(c.startTime).Seconds(),
	)
}
