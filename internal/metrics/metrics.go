package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/martinsuchenak/lifecycled/internal/eol"
	"github.com/martinsuchenak/lifecycled/internal/model"
	"github.com/martinsuchenak/lifecycled/internal/planner"
)

const namespace = "lifecycled"

// Inventory is the subset of storage needed to count devices
type Inventory interface {
	ListDevices(filter *model.DeviceFilter) ([]model.Device, error)
}

// Reports exposes the most recent forecast, nil until one has run
type Reports interface {
	Latest() *planner.Report
}

// Metrics owns a registry with the HTTP, job and inventory metrics
type Metrics struct {
	registry *prometheus.Registry

	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDuration  *prometheus.HistogramVec
	httpRequestsInFlight prometheus.Gauge

	forecastRuns     *prometheus.CounterVec
	forecastDuration prometheus.Histogram
	snmpPolls        *prometheus.CounterVec
	snmpDevices      prometheus.Counter
}

// New creates the metric set. inventory and reports may be nil, in which
// case the matching collectors are not registered.
func New(inventory Inventory, reports Reports) *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests by method, route, and status code.",
			},
			[]string{"method", "path", "status"},
		),
		httpRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency in seconds by method and route.",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
		httpRequestsInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Current number of HTTP requests being processed.",
		}),
		forecastRuns: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "forecast_runs_total",
				Help:      "Forecast snapshots by result.",
			},
			[]string{"result"},
		),
		forecastDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "forecast_duration_seconds",
			Help:      "Time taken to compute and store a forecast snapshot.",
			Buckets:   prometheus.DefBuckets,
		}),
		snmpPolls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "snmp_polls_total",
				Help:      "SNMP inventory polls by result.",
			},
			[]string{"result"},
		),
		snmpDevices: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "snmp_devices_collected_total",
			Help:      "Devices written to the inventory by the SNMP collector.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequestsTotal,
		m.httpRequestDuration,
		m.httpRequestsInFlight,
		m.forecastRuns,
		m.forecastDuration,
		m.snmpPolls,
		m.snmpDevices,
	)
	if inventory != nil {
		m.registry.MustRegister(newInventoryCollector(inventory))
	}
	if reports != nil {
		m.registry.MustRegister(newForecastCollector(reports))
	}
	return m
}

// Registry returns the underlying registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveForecast records one forecast snapshot
func (m *Metrics) ObserveForecast(d time.Duration, err error) {
	m.forecastRuns.WithLabelValues(result(err)).Inc()
	m.forecastDuration.Observe(d.Seconds())
}

// ObservePoll records one SNMP poll and the devices it stored
func (m *Metrics) ObservePoll(devices int, err error) {
	m.snmpPolls.WithLabelValues(result(err)).Inc()
	if devices > 0 {
		m.snmpDevices.Add(float64(devices))
	}
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

// responseWriter wraps http.ResponseWriter to capture the response status code.
type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware wraps an http.Handler to record HTTP metrics.
// pattern should be the route pattern string (e.g. "/api/devices/{serial}")
// so the path label has bounded cardinality.
func (m *Metrics) Middleware(pattern string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		m.httpRequestsInFlight.Inc()

		rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		defer func() {
			m.httpRequestsInFlight.Dec()
			status := strconv.Itoa(rw.status)
			m.httpRequestsTotal.WithLabelValues(r.Method, pattern, status).Inc()
			m.httpRequestDuration.WithLabelValues(r.Method, pattern).Observe(time.Since(start).Seconds())
		}()

		next.ServeHTTP(rw, r)
	})
}

// inventoryCollector queries storage on each scrape to report device counts
// broken down by family.
type inventoryCollector struct {
	inventory   Inventory
	devicesDesc *prometheus.Desc
}

func newInventoryCollector(inventory Inventory) *inventoryCollector {
	return &inventoryCollector{
		inventory: inventory,
		devicesDesc: prometheus.NewDesc(
			namespace+"_devices_total",
			"Number of inventory devices, partitioned by family.",
			[]string{"family"},
			nil,
		),
	}
}

func (c *inventoryCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.devicesDesc
}

func (c *inventoryCollector) Collect(ch chan<- prometheus.Metric) {
	devices, err := c.inventory.ListDevices(nil)
	if err != nil {
		ch <- prometheus.NewInvalidMetric(c.devicesDesc, err)
		return
	}
	counts := make(map[model.Family]int)
	for _, d := range devices {
		counts[eol.FamilyOf(d.Model)]++
	}
	for family, n := range counts {
		ch <- prometheus.MustNewConstMetric(c.devicesDesc, prometheus.GaugeValue, float64(n), string(family))
	}
}

// forecastCollector reports the latest forecast as gauges
type forecastCollector struct {
	reports       Reports
	riskDesc      *prometheus.Desc
	lifecycleDesc *prometheus.Desc
	plannedDesc   *prometheus.Desc
	costDesc      *prometheus.Desc
}

func newForecastCollector(reports Reports) *forecastCollector {
	return &forecastCollector{
		reports: reports,
		riskDesc: prometheus.NewDesc(
			namespace+"_devices_by_risk",
			"Devices in the latest forecast, partitioned by risk category.",
			[]string{"category"},
			nil,
		),
		lifecycleDesc: prometheus.NewDesc(
			namespace+"_devices_by_lifecycle_status",
			"Devices in the latest forecast, partitioned by lifecycle status.",
			[]string{"status"},
			nil,
		),
		plannedDesc: prometheus.NewDesc(
			namespace+"_planned_replacements",
			"Devices scheduled into refresh waves by the latest forecast.",
			nil,
			nil,
		),
		costDesc: prometheus.NewDesc(
			namespace+"_planned_replacement_cost",
			"Hardware cost of the latest forecast, partitioned by wave start year.",
			[]string{"year"},
			nil,
		),
	}
}

func (c *forecastCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.riskDesc
	ch <- c.lifecycleDesc
	ch <- c.plannedDesc
	ch <- c.costDesc
}

func (c *forecastCollector) Collect(ch chan<- prometheus.Metric) {
	report := c.reports.Latest()
	if report == nil {
		return
	}
	for category, n := range report.Risk {
		ch <- prometheus.MustNewConstMetric(c.riskDesc, prometheus.GaugeValue, float64(n), string(category))
	}
	for status, n := range report.Lifecycle {
		ch <- prometheus.MustNewConstMetric(c.lifecycleDesc, prometheus.GaugeValue, float64(n), string(status))
	}
	ch <- prometheus.MustNewConstMetric(c.plannedDesc, prometheus.GaugeValue, float64(report.Planned))
	for _, line := range report.Budget {
		ch <- prometheus.MustNewConstMetric(c.costDesc, prometheus.GaugeValue, line.Amount, strconv.Itoa(line.Year))
	}
}
