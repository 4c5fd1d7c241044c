package sentiment

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"NiftyPulse/internal/domain/models"
	upstream "NiftyPulse/internal/service/metrics"
	xhttp "NiftyPulse/pkg/http"
)

// RemoteSource fetches snapshots from an external sentiment service:
// GET {baseURL}/sentiment?ticker=NIFTY&ts=1717400000
//
// It makes one request per call. Transient failures surface as
// *xhttp.StatusError or net errors and are retried by the ingestion cycle.
type RemoteSource struct {
	baseURL string
	client  *xhttp.Client
}

func NewRemoteSource(baseURL string, timeout time.Duration) *RemoteSource {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &RemoteSource{
		baseURL: baseURL,
		client:  xhttp.NewClient(xhttp.WithTimeout(timeout)),
	}
}

func (s *RemoteSource) CurrentSentiment(ctx context.Context, ticker string, asOf int64) (*models.SentimentSnapshot, error) {
	var out models.SentimentSnapshot
	q := map[string][]string{
		"ticker": {ticker},
		"ts":     {strconv.FormatInt(asOf, 10)},
	}
	if err := s.getJSON(ctx, "/sentiment", q, &out); err != nil {
		return nil, err
	}
	// the service may precompute a label; it is recomputed locally
	out.Regime = ""
	return &out, nil
}

func (s *RemoteSource) getJSON(ctx context.Context, path string, query map[string][]string, dest interface{}) error {
	if s.client == nil || s.baseURL == "" {
		return fmt.Errorf("sentiment http client not initialized")
	}
	start := time.Now()
	err := s.client.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:      xhttp.MethodGet,
		URL:         s.baseURL + path,
		Headers:     map[string]string{"Accept": "application/json"},
		QueryParams: query,
	}, dest)
	upstream.Observe("sentiment", path, start, err)
	if err != nil {
		return fmt.Errorf("get %s: %w", path, err)
	}
	return nil
}
