package sdk

import (
	"context"
	"crypto/tls"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/api"
	v1 "github.com/prometheus/client_golang/api/prometheus/v1"
)

// listMetricsTimeRange bounds how far back metric name discovery looks.
const listMetricsTimeRange = time.Hour

// Prometheus is the prometheus family handle: a query surface over the
// Prometheus HTTP API with signatures that catalog cleanly.
type Prometheus struct {
	client v1.API
}

// NewPrometheus builds the handle for a query endpoint. A non-nil rt carries
// auth; insecure skips TLS verification.
func NewPrometheus(address string, insecure bool, rt http.RoundTripper) (*Prometheus, error) {
	if rt == nil {
		rt = api.DefaultRoundTripper
	}
	if insecure {
		transport := &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
		rt = transport
	}

	client, err := api.NewClient(api.Config{Address: address, RoundTripper: rt})
	if err != nil {
		return nil, fmt.Errorf("error creating prometheus client: %w", err)
	}
	return &Prometheus{client: v1.NewAPI(client)}, nil
}

// ListMetrics returns the metric names seen over the last hour.
func (p *Prometheus) ListMetrics(ctx context.Context) ([]string, error) {
	labelValues, _, err := p.client.LabelValues(ctx, "__name__", []string{},
		time.Now().Add(-listMetricsTimeRange), time.Now())
	if err != nil {
		return nil, fmt.Errorf("error fetching metric names: %w", err)
	}

	metrics := make([]string, len(labelValues))
	for i, value := range labelValues {
		metrics[i] = string(value)
	}
	return metrics, nil
}

// Query runs an instant query at the current time.
func (p *Prometheus) Query(ctx context.Context, query string) (map[string]any, error) {
	result, warnings, err := p.client.Query(ctx, query, time.Now())
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}

	response := map[string]any{
		"resultType": result.Type().String(),
		"result":     result,
	}
	if len(warnings) > 0 {
		response["warnings"] = warnings
	}
	return response, nil
}

// QueryRange runs a range query.
func (p *Prometheus) QueryRange(ctx context.Context, query string, start, end time.Time, step time.Duration) (map[string]any, error) {
	r := v1.Range{Start: start, End: end, Step: step}
	result, warnings, err := p.client.QueryRange(ctx, query, r)
	if err != nil {
		return nil, fmt.Errorf("range query failed: %w", err)
	}

	response := map[string]any{
		"resultType": result.Type().String(),
		"result":     result,
	}
	if len(warnings) > 0 {
		response["warnings"] = warnings
	}
	return response, nil
}

// ListLabelValues returns the values of one label across all series.
func (p *Prometheus) ListLabelValues(ctx context.Context, label string) ([]string, error) {
	values, _, err := p.client.LabelValues(ctx, label, []string{},
		time.Now().Add(-listMetricsTimeRange), time.Now())
	if err != nil {
		return nil, fmt.Errorf("error fetching label values: %w", err)
	}

	out := make([]string, len(values))
	for i, v := range values {
		out[i] = string(v)
	}
	return out, nil
}

// ListAlerts returns the currently firing and pending alerts.
func (p *Prometheus) ListAlerts(ctx context.Context) (v1.AlertsResult, error) {
	return p.client.Alerts(ctx)
}

// ListTargets returns the scrape target states.
func (p *Prometheus) ListTargets(ctx context.Context) (v1.TargetsResult, error) {
	return p.client.Targets(ctx)
}

// ListRules returns the configured recording and alerting rules.
func (p *Prometheus) ListRules(ctx context.Context) (v1.RulesResult, error) {
	return p.client.Rules(ctx)
}
