package clientv2

import (
	"errors"
	"net/http"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labelMap(pairs []*dto.LabelPair) map[string]string {
	m := make(map[string]string, len(pairs))
	for _, p := range pairs {
		m[p.GetName()] = p.GetValue()
	}
	return m
}

func findCounter(t *testing.T, reg *prometheus.Registry, status string) float64 {
	families, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range families {
		if mf.GetName() != "sandbox_client_requests_total" {
			continue
		}
		for _, metric := range mf.GetMetric() {
			if labelMap(metric.GetLabel())["status"] == status {
				return metric.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func TestMetricsInterceptor(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics, err := NewRequestMetrics(reg)
	require.NoError(t, err)

	ok := NewClient(&testClient{statusCode: http.StatusOK}, NewMetricsInterceptor(metrics))
	_, err = ok.Do(newTestRequest(t))
	require.NoError(t, err)
	_, err = ok.Do(newTestRequest(t))
	require.NoError(t, err)

	failed := NewClient(errClient{err: errors.New("refused")}, NewMetricsInterceptor(metrics))
	_, err = failed.Do(newTestRequest(t))
	require.Error(t, err)

	assert.Equal(t, float64(2), findCounter(t, reg, "200"))
	assert.Equal(t, float64(1), findCounter(t, reg, "error"))

	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, mf := range families {
		if mf.GetName() == "sandbox_client_request_duration_seconds" {
			found = true
			assert.Equal(t, "/ping", labelMap(mf.GetMetric()[0].GetLabel())["path"])
			assert.Equal(t, uint64(3), mf.GetMetric()[0].GetHistogram().GetSampleCount())
		}
	}
	assert.True(t, found)
}

func TestNewMetricsInterceptorNil(t *testing.T) {
	assert.Nil(t, NewMetricsInterceptor(nil))
}

func TestNewRequestMetricsDuplicateRegister(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewRequestMetrics(reg)
	require.NoError(t, err)
	_, err = NewRequestMetrics(reg)
	assert.Error(t, err)
}
