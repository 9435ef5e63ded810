// Package webhook posts event logs as JSON to HTTP endpoints.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	ErrEventTypeNotAllowed = errors.New("event topic not allowed")
	ErrUnexpectedStatus    = errors.New("unexpected response status")
)

// HTTPClient represents an interface for the Webhook to send events with.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// EventLog is the body that is posted to Webhook.URL.
type EventLog struct {
	ID         string    `json:"id"`
	Topics     []string  `json:"topics"`
	OccurredAt time.Time `json:"occurredAt"`
	Data       any       `json:"data"`
}

// Webhook posts every EventLog with at least one of its AllowedTopics to URL.
type Webhook struct {
	ID            string
	HTTPClient    HTTPClient
	URL           string
	AllowedTopics []string
}

func (webhook Webhook) hasTopic(e EventLog) bool {
	for _, at := range webhook.AllowedTopics {
		for _, et := range e.Topics {
			if at == et {
				return true
			}
		}
	}
	return false
}

// DispatchEvent marshals the given EventLog into JSON and posts it to the Webhook.URL.
// Responses with a status other than 2xx are reported as ErrUnexpectedStatus.
func (webhook Webhook) DispatchEvent(ctx context.Context, e EventLog) error {
	if !webhook.hasTopic(e) {
		return ErrEventTypeNotAllowed
	}

	bb, err := json.Marshal(e)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhook.URL, bytes.NewReader(bb))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := webhook.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	// The body needs to be closed for the connection to be reused.
	if resp.Body != nil {
		_ = resp.Body.Close()
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("%w: %s", ErrUnexpectedStatus, resp.Status)
	}
	return nil
}
