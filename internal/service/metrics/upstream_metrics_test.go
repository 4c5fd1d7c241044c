package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveCountsErrors(t *testing.T) {
	before := testutil.ToFloat64(UpstreamErrors.WithLabelValues("upstox", "option_chain"))
	Observe("upstox", "option_chain", time.Now(), nil)
	Observe("upstox", "option_chain", time.Now(), errors.New("timeout"))
	after := testutil.ToFloat64(UpstreamErrors.WithLabelValues("upstox", "option_chain"))
	if after-before != 1 {
		t.Fatalf("errors delta = %v, want 1", after-before)
	}
}
