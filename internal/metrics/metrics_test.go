package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestConstructorsUseGivenRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()

	pm := NewProcessorMetrics(reg, "voting", "processor")
	lm := NewLoaderMetrics(reg, "voting")
	am := NewAPIMetrics(reg, "voting")

	pm.EventsApplied.WithLabelValues("Library", "created").Inc()
	lm.Loads.WithLabelValues("ok").Add(2)
	am.PublishErrors.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(pm.EventsApplied.WithLabelValues("Library", "created")))
	assert.Equal(t, 2.0, testutil.ToFloat64(lm.Loads.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(am.PublishErrors))

	// A second registry accepts the same metric names.
	assert.NotPanics(t, func() {
		NewProcessorMetrics(prometheus.NewRegistry(), "voting", "processor")
	})
}
