package metrics_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jrsteele09/research-portal/internal/metrics"
	"github.com/stretchr/testify/require"
)

func TestHandler_ExposesPortalMetrics(t *testing.T) {
	metrics.ObserveLogin("local", "ok")
	metrics.ObserveValidation("valid")

	h := metrics.Instrument("GET /teapot", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})
	h(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/teapot", nil))

	rec := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	require.Contains(t, string(body), `portal_logins_total{channel="local",reason="ok"}`)
	require.Contains(t, string(body), `portal_session_validations_total{result="valid"}`)
	require.Contains(t, string(body), `portal_http_requests_total{method="GET",route="GET /teapot",status="418"}`)
}
