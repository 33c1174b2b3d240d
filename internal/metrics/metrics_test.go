package metrics_test

import (
	"testing"

	"github.com/localnerve/itsm-api/internal/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := metrics.New(reg)

	r.Created("user")
	r.Created("user")
	r.Replaced("ticket")
	r.ValidationFailed("ticket")
	r.AttachmentRolledBack()

	families, err := reg.Gather()
	require.NoError(t, err)
	names := make([]string, 0, len(families))
	var createdUsers float64
	for _, f := range families {
		names = append(names, f.GetName())
		if f.GetName() == "itsm_entities_created_total" {
			require.Len(t, f.GetMetric(), 1)
			createdUsers = f.GetMetric()[0].GetCounter().GetValue()
		}
	}
	assert.ElementsMatch(t, []string{
		"itsm_entities_created_total",
		"itsm_entities_replaced_total",
		"itsm_validation_failures_total",
		"itsm_attachment_rollbacks_total",
	}, names)
	assert.Equal(t, float64(2), createdUsers)
}

func TestRecorderUnregistered(t *testing.T) {
	r := metrics.New(nil)
	assert.NotPanics(t, func() { r.Created("user") })
}
