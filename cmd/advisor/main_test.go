package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"hexadvisor.ai/internal/advisor"
	"hexadvisor.ai/internal/sim/tuning"
	"hexadvisor.ai/internal/transport/observer"
)

func TestMetricsHandler(t *testing.T) {
	hub := observer.NewHub()
	m := advisor.NewManager(advisor.ManagerOptions{Recorder: hub})
	s, _ := m.Open("", "")
	_, _, err := m.Ingest(s.ID(), json.RawMessage(`{"type":"DICE_ROLL","value":4}`))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	metricsHandler(m, hub, nil)(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()
	require.Contains(t, body, "hexadvisor_sessions 1\n")
	require.Contains(t, body, "hexadvisor_observers 0\n")
	require.NotContains(t, body, "hexadvisor_index_queue_depth")
}

func TestLoadTuningDefaults(t *testing.T) {
	got, err := loadTuning("")
	require.NoError(t, err)
	require.Equal(t, tuning.Defaults(), got)

	_, err = loadTuning("does-not-exist.yaml")
	require.Error(t, err)
}
