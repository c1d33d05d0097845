package sdk

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	runtimeclient "github.com/go-openapi/runtime/client"
	"github.com/go-openapi/strfmt"
	"github.com/prometheus/alertmanager/api/v2/client"
	"github.com/prometheus/alertmanager/api/v2/client/alert"
	"github.com/prometheus/alertmanager/api/v2/client/general"
	"github.com/prometheus/alertmanager/api/v2/client/silence"
	"github.com/prometheus/alertmanager/api/v2/models"
)

// Alertmanager is the alertmanager family handle over the v2 API.
type Alertmanager struct {
	client *client.AlertmanagerAPI
}

// NewAlertmanager builds the handle for an Alertmanager endpoint.
func NewAlertmanager(address string) (*Alertmanager, error) {
	parsedURL, err := url.Parse(address)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Alertmanager URL: %w", err)
	}

	host := parsedURL.Host
	if host == "" {
		host = strings.TrimPrefix(address, "//")
	}
	scheme := parsedURL.Scheme
	if scheme == "" {
		scheme = "http"
	}

	transport := runtimeclient.New(host, client.DefaultBasePath, []string{scheme})
	return &Alertmanager{client: client.New(transport, strfmt.Default)}, nil
}

// AlertFilter narrows an alert listing.
type AlertFilter struct {
	Active      *bool    `json:"active,omitempty"`
	Silenced    *bool    `json:"silenced,omitempty"`
	Inhibited   *bool    `json:"inhibited,omitempty"`
	Unprocessed *bool    `json:"unprocessed,omitempty"`
	Filter      []string `json:"filter,omitempty"`
	Receiver    string   `json:"receiver,omitempty"`
}

// ListAlerts returns alerts matching the filter.
func (a *Alertmanager) ListAlerts(ctx context.Context, f AlertFilter) (models.GettableAlerts, error) {
	params := alert.NewGetAlertsParams().WithContext(ctx)
	if f.Active != nil {
		params = params.WithActive(f.Active)
	}
	if f.Silenced != nil {
		params = params.WithSilenced(f.Silenced)
	}
	if f.Inhibited != nil {
		params = params.WithInhibited(f.Inhibited)
	}
	if f.Unprocessed != nil {
		params = params.WithUnprocessed(f.Unprocessed)
	}
	if len(f.Filter) > 0 {
		params = params.WithFilter(f.Filter)
	}
	if f.Receiver != "" {
		params = params.WithReceiver(&f.Receiver)
	}

	resp, err := a.client.Alert.GetAlerts(params)
	if err != nil {
		return nil, fmt.Errorf("error fetching alerts: %w", err)
	}
	return resp.Payload, nil
}

// ListSilences returns silences matching the filter expressions.
func (a *Alertmanager) ListSilences(ctx context.Context, filter ...string) (models.GettableSilences, error) {
	params := silence.NewGetSilencesParams().WithContext(ctx)
	if len(filter) > 0 {
		params = params.WithFilter(filter)
	}

	resp, err := a.client.Silence.GetSilences(params)
	if err != nil {
		return nil, fmt.Errorf("error fetching silences: %w", err)
	}
	return resp.Payload, nil
}

// GetStatus returns cluster and version information.
func (a *Alertmanager) GetStatus(ctx context.Context) (*models.AlertmanagerStatus, error) {
	params := general.NewGetStatusParams().WithContext(ctx)
	resp, err := a.client.General.GetStatus(params)
	if err != nil {
		return nil, fmt.Errorf("error fetching status: %w", err)
	}
	return resp.Payload, nil
}
