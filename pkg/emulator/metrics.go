package emulator

import (
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/mem"
)

type metrics struct {
	registry    *prometheus.Registry
	invocations prometheus.Counter
	responses   prometheus.Counter
	errors      *prometheus.CounterVec
	inFlight    prometheus.Gauge
	lateResults prometheus.Counter
	duration    prometheus.Histogram
}

func newMetrics(logger *slog.Logger) *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		invocations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emulator_invocations_total",
			Help: "invocations queued for the function",
		}),
		responses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emulator_responses_total",
			Help: "invocation responses reported by the function",
		}),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{Name: "emulator_errors_total", Help: "errors reported by the function, by kind"},
			[]string{"kind"},
		),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "emulator_invocations_in_flight",
			Help: "invocations handed to the function and not yet reported",
		}),
		lateResults: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "emulator_late_results_total",
			Help: "results reported after their invocation timed out",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "emulator_invocation_duration_seconds",
			Help:    "time from queueing an invocation to its result",
			Buckets: []float64{0.005, 0.05, 0.5, 1, 5, 30, 60},
		}),
	}

	hostMemory := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "emulator_host_memory_used_percent",
		Help: "used RAM of the host running the emulator",
	}, func() float64 {
		vm, err := mem.VirtualMemory()
		if err != nil {
			logger.Warn("Failed to read memory usage", "error", err)
			return 0
		}
		return vm.UsedPercent
	})

	hostCPU := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "emulator_host_cpu_percent",
		Help: "CPU usage of the host since the previous scrape",
	}, func() float64 {
		percent, err := cpu.Percent(0, false)
		if err != nil || len(percent) == 0 {
			logger.Warn("Failed to read cpu usage", "error", err)
			return 0
		}
		return percent[0]
	})

	m.registry.MustRegister(
		m.invocations,
		m.responses,
		m.errors,
		m.inFlight,
		m.lateResults,
		m.duration,
		hostMemory,
		hostCPU,
	)
	return m
}
