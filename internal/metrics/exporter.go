package metrics

import (
	"context"
	"net/http"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "ecfanctl"

// Exporter publishes the latest snapshot as Prometheus gauges.
type Exporter struct {
	registry    *prometheus.Registry
	temperature *prometheus.GaugeVec
	speedLevel  *prometheus.GaugeVec
	manual      *prometheus.GaugeVec
	senseRaw    *prometheus.GaugeVec
}

func NewExporter() *Exporter {
	e := &Exporter{
		registry: prometheus.NewRegistry(),
		temperature: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fan",
			Name:      "temperature_raw",
			Help:      "Raw temperature register value",
		}, []string{"fan"}),
		speedLevel: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fan",
			Name:      "speed_level",
			Help:      "Mean speed level across sense channels (0-1)",
		}, []string{"fan"}),
		manual: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fan",
			Name:      "manual",
			Help:      "1 if the fan is under manual control",
		}, []string{"fan"}),
		senseRaw: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "fan",
			Name:      "sense_raw",
			Help:      "Raw speed sense register value",
		}, []string{"fan", "channel"}),
	}

	e.registry.MustRegister(e.temperature, e.speedLevel, e.manual, e.senseRaw)

	return e
}

func (e *Exporter) Record(_ context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return nil
	}

	for i := range snapshot.Fans {
		sample := &snapshot.Fans[i]

		e.temperature.WithLabelValues(sample.Name).Set(float64(sample.Temperature))
		e.speedLevel.WithLabelValues(sample.Name).Set(sample.SpeedLevel)

		manual := 0.0
		if sample.Mode == "manual" {
			manual = 1
		}
		e.manual.WithLabelValues(sample.Name).Set(manual)

		for channel, raw := range sample.Speeds {
			e.senseRaw.WithLabelValues(sample.Name, strconv.Itoa(channel)).Set(float64(raw))
		}
	}

	return nil
}

func (*Exporter) Close() error {
	return nil
}

// Handler serves the exporter's registry.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{})
}
