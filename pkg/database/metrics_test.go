package database

import (
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func describeAll(c prometheus.Collector) []string {
	ch := make(chan *prometheus.Desc, 32)
	c.Describe(ch)
	close(ch)

	var out []string
	for d := range ch {
		out = append(out, d.String())
	}
	return out
}

func TestPoolStatsCollector_Describe(t *testing.T) {
	c := NewPoolStatsCollector(nil, "pocket-api")

	descs := describeAll(c)

	assert.Len(t, descs, 8)
	for _, d := range descs {
		assert.Contains(t, d, `service="pocket-api"`)
	}
}

func TestPoolStatsCollector_DescriptorNames(t *testing.T) {
	descs := strings.Join(describeAll(NewPoolStatsCollector(nil, "pocket-api")), "\n")

	for _, name := range []string{
		"db_pool_acquired_connections",
		"db_pool_idle_connections",
		"db_pool_total_connections",
		"db_pool_max_connections",
		"db_pool_acquire_count_total",
		"db_pool_acquire_duration_seconds_total",
		"db_pool_canceled_acquire_count_total",
		"db_pool_empty_acquire_count_total",
	} {
		assert.Contains(t, descs, `"`+name+`"`)
	}
}

func TestRegisterPoolMetrics_RejectsDuplicate(t *testing.T) {
	reg := prometheus.NewRegistry()

	require.NoError(t, RegisterPoolMetrics(reg, nil, "pocket-api"))
	assert.Error(t, RegisterPoolMetrics(reg, nil, "pocket-api"))
}
