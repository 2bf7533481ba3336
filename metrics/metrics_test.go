package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Dosada05/tournament-officiating/authority"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthorityCall_LabelsByKind(t *testing.T) {
	m := New(prometheus.NewRegistry())
	m.AuthorityCall("submit_result", nil)
	m.AuthorityCall("submit_result", &authority.Error{Kind: authority.KindAuth})
	m.AuthorityCall("submit_result", errors.New("boom"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.authorityCalls.WithLabelValues("submit_result", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authorityCalls.WithLabelValues("submit_result", "auth")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.authorityCalls.WithLabelValues("submit_result", "transient")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.Registration("accepted")
	m.BulkBatch("rejected")
	m.FeedChange("")
	m.AuthorityCall("x", nil)

	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestMiddleware_UsesRoutePattern(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	r := chi.NewRouter()
	r.Use(m.Middleware)
	r.Get("/tournaments/{tournamentID}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/tournaments/12", nil))
	require.Equal(t, http.StatusTeapot, rec.Code)

	assert.Equal(t, 1, testutil.CollectAndCount(m.httpDuration))
	families, err := reg.Gather()
	require.NoError(t, err)
	var found bool
	for _, f := range families {
		for _, metric := range f.GetMetric() {
			for _, l := range metric.GetLabel() {
				if l.GetName() == "route" && l.GetValue() == "/tournaments/{tournamentID}" {
					found = true
				}
			}
		}
	}
	assert.True(t, found)
}

func TestRegisterConnections(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	require.NoError(t, m.RegisterConnections(reg, func() int { return 3 }))

	n, err := testutil.GatherAndCount(reg, "officiating_presence_connections")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
