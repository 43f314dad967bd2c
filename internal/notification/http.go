package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/ledgerline/ledgerline/internal/config"
	"github.com/ledgerline/ledgerline/internal/domain/notification"
	ierr "github.com/ledgerline/ledgerline/internal/errors"
	"github.com/ledgerline/ledgerline/internal/logger"
)

// HTTPDispatcher posts notifications to an external notification service.
// Transport retries are handled by retryablehttp; a final failure surfaces as
// ErrHTTPClient and callers treat it as non-fatal.
type HTTPDispatcher struct {
	endpoint string
	client   *retryablehttp.Client
	logger   *logger.Logger
}

type dispatchPayload struct {
	Recipient string         `json:"recipient"`
	Template  string         `json:"template"`
	Context   map[string]any `json:"context"`
}

// NewDispatcher returns an HTTP dispatcher when an endpoint is configured and
// a no-op dispatcher otherwise.
func NewDispatcher(cfg *config.Configuration, log *logger.Logger) notification.Dispatcher {
	if cfg.Notification.Endpoint == "" {
		log.Infow("notification endpoint not configured, using noop dispatcher")
		return NewNoopDispatcher(log)
	}

	client := retryablehttp.NewClient()
	client.RetryMax = cfg.Notification.RetryMax
	client.HTTPClient.Timeout = cfg.Notification.Timeout
	client.Logger = nil

	return &HTTPDispatcher{
		endpoint: cfg.Notification.Endpoint,
		client:   client,
		logger:   log,
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, recipient string, template notification.Template, payload map[string]any) error {
	body, err := json.Marshal(dispatchPayload{
		Recipient: recipient,
		Template:  string(template),
		Context:   payload,
	})
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to encode notification payload").
			Mark(ierr.ErrInternal)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, d.endpoint, bytes.NewReader(body))
	if err != nil {
		return ierr.WithError(err).
			WithHint("Failed to build notification request").
			Mark(ierr.ErrHTTPClient)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return ierr.WithError(err).
			WithHint("Notification service unreachable").
			Mark(ierr.ErrHTTPClient)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return ierr.NewErrorf("notification service returned %d", resp.StatusCode).
			WithHint("Notification dispatch failed").
			Mark(ierr.ErrHTTPClient)
	}

	d.logger.Debugw("notification dispatched",
		"recipient", recipient,
		"template", template)

	return nil
}
