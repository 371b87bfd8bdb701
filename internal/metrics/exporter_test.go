package metrics

import (
	"context"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExporterRecord(t *testing.T) {
	e := NewExporter()

	require.NoError(t, e.Record(context.Background(), testSnapshot(time.Now())))

	assert.Equal(t, 61.0, testutil.ToFloat64(e.temperature.WithLabelValues("CPU")))
	assert.InDelta(t, 0.42, testutil.ToFloat64(e.speedLevel.WithLabelValues("CPU")), 1e-9)
	assert.Equal(t, 1.0, testutil.ToFloat64(e.manual.WithLabelValues("CPU")))
	assert.Equal(t, 0.0, testutil.ToFloat64(e.manual.WithLabelValues("GPU")))
	assert.Equal(t, 44.0, testutil.ToFloat64(e.senseRaw.WithLabelValues("CPU", "1")))
	assert.NoError(t, e.Record(context.Background(), nil))
	assert.NoError(t, e.Close())
}

func TestExporterHandler(t *testing.T) {
	e := NewExporter()
	require.NoError(t, e.Record(context.Background(), testSnapshot(time.Now())))

	rec := httptest.NewRecorder()
	e.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `ecfanctl_fan_temperature_raw{fan="GPU"} 48`)
	assert.Contains(t, string(body), `ecfanctl_fan_sense_raw{channel="0",fan="CPU"} 40`)
}

func TestMultiCollector(t *testing.T) {
	e1, e2 := NewExporter(), NewExporter()
	m := Multi(e1, &noopCollector{}, e2)

	require.NoError(t, m.Record(context.Background(), testSnapshot(time.Now())))
	assert.Equal(t, 48.0, testutil.ToFloat64(e2.temperature.WithLabelValues("GPU")))
	assert.NoError(t, m.Close())
}
