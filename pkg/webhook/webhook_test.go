package webhook_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/haveachin/proxypass/pkg/webhook"
)

func TestWebhook_DispatchEvent(t *testing.T) {
	tt := []struct {
		name          string
		allowedTopics []string
		topics        []string
		status        int
		shouldPost    bool
		err           error
	}{
		{
			name:          "WithExactlyTheAllowedTopic",
			allowedTopics: []string{"SessionBridged"},
			topics:        []string{"SessionBridged"},
			status:        http.StatusOK,
			shouldPost:    true,
		},
		{
			name:          "WithOneOfTheAllowedTopics",
			allowedTopics: []string{"PlayerLogin", "SessionClose"},
			topics:        []string{"SessionClose"},
			status:        http.StatusNoContent,
			shouldPost:    true,
		},
		{
			name:          "ErrorsWithDeniedTopic",
			allowedTopics: []string{"SessionClose"},
			topics:        []string{"PlayerLogin"},
			err:           webhook.ErrEventTypeNotAllowed,
		},
		{
			name:          "ErrorsWithFailedRequest",
			allowedTopics: []string{"PlayerLogin"},
			topics:        []string{"PlayerLogin"},
			status:        http.StatusInternalServerError,
			shouldPost:    true,
			err:           webhook.ErrUnexpectedStatus,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			posted := make(chan webhook.EventLog, 1)
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
					t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
				}

				var el webhook.EventLog
				if err := json.NewDecoder(r.Body).Decode(&el); err != nil {
					t.Error(err)
				}
				posted <- el
				w.WriteHeader(tc.status)
			}))
			defer srv.Close()

			wh := webhook.Webhook{
				ID:            "test",
				HTTPClient:    srv.Client(),
				URL:           srv.URL,
				AllowedTopics: tc.allowedTopics,
			}

			err := wh.DispatchEvent(context.Background(), webhook.EventLog{
				Topics:     tc.topics,
				OccurredAt: time.Now(),
				Data: map[string]any{
					"username": "Steve",
				},
			})
			if !errors.Is(err, tc.err) {
				t.Fatalf("expected %v; got %v", tc.err, err)
			}

			select {
			case el := <-posted:
				if !tc.shouldPost {
					t.Fatal("expected no request")
				}

				if el.Topics[0] != tc.topics[0] {
					t.Errorf("expected topic %s; got %s", tc.topics[0], el.Topics[0])
				}
			default:
				if tc.shouldPost {
					t.Fatal("expected a request")
				}
			}
		})
	}
}
