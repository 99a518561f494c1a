package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorsAreRegistered(t *testing.T) {
	for _, c := range []prometheus.Collector{
		UpstreamRequests, UpstreamRetries, UpstreamInflight, CacheLookups,
		DispatchTicks, DispatchDuration, Notifications, PoolKeys, InferenceRequests, JobRuns, BuildInfo,
	} {
		if err := prometheus.Register(c); err == nil {
			t.Fatalf("collector %T was not registered in init", c)
		} else if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
			t.Fatalf("unexpected register error: %v", err)
		}
	}
}

func TestCounterVecsAcceptLabels(t *testing.T) {
	base := testutil.ToFloat64(Notifications.WithLabelValues("lessons", "sent"))
	Notifications.WithLabelValues("lessons", "sent").Inc()
	if got := testutil.ToFloat64(Notifications.WithLabelValues("lessons", "sent")); got != base+1 {
		t.Fatalf("notifications_total = %v; want %v", got, base+1)
	}

	PoolKeys.WithLabelValues("active").Set(3)
	if got := testutil.ToFloat64(PoolKeys.WithLabelValues("active")); got != 3 {
		t.Fatalf("credential_pool_keys{state=active} = %v; want 3", got)
	}
}
