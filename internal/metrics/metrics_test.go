package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestInstrumentRoundTripper_CountsRequests(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	reg := NewRegistry()
	client := &http.Client{Transport: reg.InstrumentRoundTripper(http.DefaultTransport)}
	for _, p := range []string{"/", "/", "/missing"} {
		resp, err := client.Get(srv.URL + p)
		if err != nil {
			t.Fatalf("get %s: %v", p, err)
		}
		resp.Body.Close()
	}

	if got := testutil.ToFloat64(reg.Requests.WithLabelValues("200", "get")); got != 2 {
		t.Fatalf("200 count=%v want=2", got)
	}
	if got := testutil.ToFloat64(reg.Requests.WithLabelValues("404", "get")); got != 1 {
		t.Fatalf("404 count=%v want=1", got)
	}
	if got := testutil.ToFloat64(reg.InFlight); got != 0 {
		t.Fatalf("in-flight=%v want=0", got)
	}
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := NewRegistry()
	reg.Unauthorized.Inc()

	rec := httptest.NewRecorder()
	reg.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "delivery_api_unauthorized_total 1") {
		t.Fatalf("metrics body missing counter:\n%s", rec.Body.String())
	}
}
