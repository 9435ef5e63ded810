package webhook

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
	"github.com/haveachin/proxypass/internal/pkg/config"
	"github.com/haveachin/proxypass/pkg/event"
	"github.com/haveachin/proxypass/pkg/webhook"
	"github.com/imdario/mergo"
	"go.uber.org/zap"
)

type PluginConfig struct {
	Webhooks map[string]webhookConfig `mapstructure:"webhooks"`
	Defaults struct {
		Webhook webhookConfig `mapstructure:"webhook"`
	} `mapstructure:"defaults"`
}

func (cfg PluginConfig) loadWebhooks() ([]webhook.Webhook, error) {
	webhooks := make([]webhook.Webhook, 0, len(cfg.Webhooks))
	for id, whCfg := range cfg.Webhooks {
		if err := mergo.Merge(&whCfg, cfg.Defaults.Webhook); err != nil {
			return nil, err
		}

		if whCfg.URL == "" {
			return nil, errors.New("webhook " + id + " has no url")
		}

		webhooks = append(webhooks, newWebhook(id, whCfg))
	}
	return webhooks, nil
}

type webhookConfig struct {
	DialTimeout time.Duration `mapstructure:"dialTimeout"`
	URL         string        `mapstructure:"url"`
	Events      []string      `mapstructure:"events"`
}

func newWebhook(id string, cfg webhookConfig) webhook.Webhook {
	return webhook.Webhook{
		ID: id,
		HTTPClient: &http.Client{
			Timeout: cfg.DialTimeout,
		},
		URL:           cfg.URL,
		AllowedTopics: cfg.Events,
	}
}

type Plugin struct {
	Config   PluginConfig
	logger   *zap.Logger
	eventBus event.Bus
	eventID  string
	whks     []webhook.Webhook
}

func (p Plugin) Name() string {
	return "Webhook"
}

func (p Plugin) Version() string {
	return "internal"
}

func (p *Plugin) Load(cfg map[string]any) error {
	if err := config.Unmarshal(cfg, &p.Config); err != nil {
		return err
	}

	if len(p.Config.Webhooks) == 0 {
		return proxypass.ErrPluginViaConfigDisabled
	}

	whks, err := p.Config.loadWebhooks()
	if err != nil {
		return err
	}
	p.whks = whks

	return nil
}

func (p *Plugin) Enable(api proxypass.PluginAPI) error {
	p.logger = api.Logger()
	p.eventBus = api.EventBus()
	p.eventID, _ = p.eventBus.AttachHandlerFunc("", p.handleEvent)
	return nil
}

func (p Plugin) Disable() error {
	p.eventBus.DetachRecipient(p.eventID)
	return nil
}

type playerData struct {
	Username string `json:"username"`
	Identity string `json:"identity"`
	XUID     string `json:"xuid"`
}

type eventData struct {
	SessionID      string      `json:"sessionId,omitempty"`
	RemoteAddr     string      `json:"remoteAddress,omitempty"`
	State          string      `json:"state,omitempty"`
	Player         *playerData `json:"player,omitempty"`
	Anchored       *bool       `json:"anchored,omitempty"`
	ClientProtocol int32       `json:"clientProtocol,omitempty"`
	ServerProtocol int32       `json:"serverProtocol,omitempty"`
	Error          string      `json:"error,omitempty"`
	DurationMillis int64       `json:"durationMillis,omitempty"`
}

func unmarshalSession(data *eventData, s *proxypass.Session) {
	if s == nil {
		return
	}
	data.SessionID = s.ID().String()
	if addr := s.Upstream().RemoteAddr(); addr != nil {
		data.RemoteAddr = addr.String()
	}
}

func unmarshalPlayer(data *eventData, s *proxypass.Session, authData login.AuthData) {
	unmarshalSession(data, s)
	data.Player = &playerData{
		Username: authData.DisplayName,
		Identity: authData.Identity.String(),
		XUID:     authData.XUID,
	}
}

func (p Plugin) handleEvent(e event.Event) {
	var data eventData
	switch e := e.Data.(type) {
	case proxypass.SessionOpenEvent:
		unmarshalSession(&data, e.Session)
	case proxypass.ProtocolMismatchEvent:
		unmarshalSession(&data, e.Session)
		data.ClientProtocol = e.ClientProtocol
		data.ServerProtocol = e.ServerProtocol
	case proxypass.PlayerLoginEvent:
		unmarshalPlayer(&data, e.Session, e.AuthData)
		anchored := e.Anchored
		data.Anchored = &anchored
	case proxypass.SessionBridgedEvent:
		unmarshalPlayer(&data, e.Session, e.AuthData)
	case proxypass.HandshakeAbortEvent:
		unmarshalSession(&data, e.Session)
		data.State = e.State.String()
		if e.Err != nil {
			data.Error = e.Err.Error()
		}
	case proxypass.SessionCloseEvent:
		unmarshalSession(&data, e.Session)
		data.State = e.State.String()
		data.DurationMillis = e.Duration.Milliseconds()
	default:
		return
	}

	p.dispatchEvent(e, data)
}

func (p Plugin) dispatchEvent(e event.Event, data eventData) {
	el := webhook.EventLog{
		ID:         e.ID,
		Topics:     e.Topics,
		OccurredAt: e.OccurredAt,
		Data:       data,
	}

	for _, wh := range p.whks {
		if err := wh.DispatchEvent(context.Background(), el); err != nil && !errors.Is(err, webhook.ErrEventTypeNotAllowed) {
			p.logger.Error("dispatching webhook event",
				zap.Error(err),
				zap.String("webhookId", wh.ID),
				zap.String("eventId", e.ID),
				zap.String("eventTopic", e.Topic()),
			)
		}
	}
}
