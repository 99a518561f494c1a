package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetrics_UsesRoutePattern(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Metrics())
	r.GET("/schedule/:kind/:id", func(c *gin.Context) { c.String(http.StatusOK, "ok") })

	route := "/schedule/:kind/:id"
	before := testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, route, "200"))
	for _, id := range []string{"a", "b", "c"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/schedule/group/"+id, nil))
	}
	if got := testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, route, "200")); got != before+3 {
		t.Fatalf("requests_total = %v; want %v", got, before+3)
	}

	missBefore := testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, "/nope", "404"))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	if got := testutil.ToFloat64(httpReqs.WithLabelValues(http.MethodGet, "/nope", "404")); got != missBefore+1 {
		t.Fatalf("unmatched route not counted by raw path")
	}

	if got := testutil.ToFloat64(httpInflight); got != 0 {
		t.Fatalf("inflight = %v after requests", got)
	}
}
