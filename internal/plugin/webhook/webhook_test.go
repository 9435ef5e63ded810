package webhook

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofrs/uuid"
	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
	"github.com/haveachin/proxypass/pkg/event"
	"github.com/haveachin/proxypass/pkg/webhook"
	"go.uber.org/zap"
)

type fakeAPI struct {
	bus event.Bus
}

func (a fakeAPI) EventBus() event.Bus               { return a.bus }
func (a fakeAPI) Logger() *zap.Logger               { return zap.NewNop() }
func (a fakeAPI) Sessions() []proxypass.SessionInfo { return nil }
func (a fakeAPI) CloseSession(id uuid.UUID) bool    { return false }

func TestPlugin_Load(t *testing.T) {
	tt := []struct {
		name string
		cfg  map[string]any
		err  error
	}{
		{
			name: "NoWebhooks",
			cfg:  map[string]any{},
			err:  proxypass.ErrPluginViaConfigDisabled,
		},
		{
			name: "MissingURL",
			cfg: map[string]any{
				"webhooks": map[string]any{
					"discord": map[string]any{"events": []string{"PlayerLogin"}},
				},
			},
			err: errors.New("webhook discord has no url"),
		},
		{
			name: "EventsFromDefaults",
			cfg: map[string]any{
				"webhooks": map[string]any{
					"discord": map[string]any{"url": "http://localhost"},
				},
				"defaults": map[string]any{
					"webhook": map[string]any{
						"dialTimeout": "1s",
						"events":      []string{"SessionBridged"},
					},
				},
			},
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			var p Plugin
			err := p.Load(tc.cfg)
			if tc.err == nil {
				if err != nil {
					t.Fatal(err)
				}
				if len(p.whks) != 1 || p.whks[0].AllowedTopics[0] != "SessionBridged" {
					t.Fatalf("unexpected webhooks %+v", p.whks)
				}
				return
			}

			if err == nil || (!errors.Is(err, tc.err) && err.Error() != tc.err.Error()) {
				t.Fatalf("expected %v; got %v", tc.err, err)
			}
		})
	}
}

func TestPlugin_HandleEvent(t *testing.T) {
	posted := make(chan webhook.EventLog, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var el webhook.EventLog
		if err := json.NewDecoder(r.Body).Decode(&el); err != nil {
			t.Error(err)
		}
		posted <- el
	}))
	defer srv.Close()

	var p Plugin
	err := p.Load(map[string]any{
		"webhooks": map[string]any{
			"test": map[string]any{
				"url":    srv.URL,
				"events": []string{proxypass.PlayerLoginEventTopic},
			},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	bus := event.NewInternalBus()
	if err := p.Enable(fakeAPI{bus: bus}); err != nil {
		t.Fatal(err)
	}
	defer p.Disable()

	bus.Push(proxypass.SessionOpenEvent{}, proxypass.SessionOpenEventTopic)
	bus.Push(proxypass.PlayerLoginEvent{
		AuthData: login.AuthData{
			DisplayName: "Steve",
			XUID:        "2535428650000000",
		},
		Anchored: true,
	}, proxypass.PlayerLoginEventTopic)

	var el webhook.EventLog
	select {
	case el = <-posted:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for webhook")
	}

	if len(el.Topics) != 1 || el.Topics[0] != proxypass.PlayerLoginEventTopic {
		t.Fatalf("unexpected topics %v", el.Topics)
	}

	if el.ID == "" {
		t.Error("expected the event id to be posted")
	}

	data := el.Data.(map[string]any)
	player := data["player"].(map[string]any)
	if player["username"] != "Steve" || data["anchored"] != true {
		t.Fatalf("unexpected data %v", data)
	}
}
