package metrics

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Updates.WithLabelValues(KindText).Inc()
	m.ItemsSaved.Inc()
	m.ItemsSaved.Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Updates.WithLabelValues(KindText)))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ItemsSaved))

	expected := `
# HELP watchlater_items_saved_total Items added to the watch list.
# TYPE watchlater_items_saved_total counter
watchlater_items_saved_total 2
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "watchlater_items_saved_total"))
}

func TestNewTwiceOnSameRegistryPanics(t *testing.T) {
	reg := prometheus.NewRegistry()
	New(reg)

	assert.Panics(t, func() { New(reg) })
}
