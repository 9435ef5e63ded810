package prometheus

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/config"
	"github.com/haveachin/proxypass/pkg/event"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

type PluginConfig struct {
	Prometheus struct {
		Enable bool   `mapstructure:"enable"`
		Bind   string `mapstructure:"bind"`
	} `mapstructure:"prometheus"`
}

type metrics struct {
	registry           *prometheus.Registry
	sessionsOpened     prometheus.Counter
	sessionsActive     prometheus.Gauge
	sessionsBridged    prometheus.Counter
	logins             *prometheus.CounterVec
	handshakeAborts    *prometheus.CounterVec
	protocolMismatches *prometheus.CounterVec
	sessionDuration    *prometheus.HistogramVec
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &metrics{
		registry: reg,
		sessionsOpened: factory.NewCounter(prometheus.CounterOpts{
			Name: "proxypass_sessions_opened_total",
			Help: "The total number of sessions opened by players",
		}),
		sessionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Name: "proxypass_sessions_active",
			Help: "The number of live sessions",
		}),
		sessionsBridged: factory.NewCounter(prometheus.CounterOpts{
			Name: "proxypass_sessions_bridged_total",
			Help: "The total number of sessions that were bridged to the target server",
		}),
		logins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxypass_logins_total",
			Help: "The total number of authenticated logins per chain anchoring",
		}, []string{"anchored"}),
		handshakeAborts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxypass_handshake_aborts_total",
			Help: "The total number of aborted handshakes per handshake state",
		}, []string{"state"}),
		protocolMismatches: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "proxypass_protocol_mismatches_total",
			Help: "The total number of rejected clients per outdated side",
		}, []string{"outdated"}),
		sessionDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proxypass_session_duration_seconds",
			Help:    "The duration of sessions per final handshake state",
			Buckets: []float64{1, 10, 60, 300, 900, 3600, 10800},
		}, []string{"state"}),
	}
}

type Plugin struct {
	Config   PluginConfig
	logger   *zap.Logger
	eventBus event.Bus
	eventID  string
	metrics  *metrics
	srv      *http.Server
}

func (p Plugin) Name() string {
	return "Prometheus"
}

func (p Plugin) Version() string {
	return "internal"
}

func (p *Plugin) Load(cfg map[string]any) error {
	var pluginCfg PluginConfig
	if err := config.Unmarshal(cfg, &pluginCfg); err != nil {
		return err
	}
	p.Config = pluginCfg

	if !p.Config.Prometheus.Enable {
		return proxypass.ErrPluginViaConfigDisabled
	}

	if p.Config.Prometheus.Bind == "" {
		return errors.New("prometheus bind empty")
	}
	return nil
}

func (p *Plugin) Enable(api proxypass.PluginAPI) error {
	p.logger = api.Logger()
	p.eventBus = api.EventBus()
	p.metrics = newMetrics()

	p.eventID, _ = p.eventBus.AttachHandlerFunc("", p.handleEvent,
		proxypass.SessionOpenEventTopic,
		proxypass.ProtocolMismatchEventTopic,
		proxypass.PlayerLoginEventTopic,
		proxypass.SessionBridgedEventTopic,
		proxypass.HandshakeAbortEventTopic,
		proxypass.SessionCloseEventTopic,
	)

	mux := http.NewServeMux()
	mux.Handle("/metrics", p.handler())
	p.srv = &http.Server{
		Addr:    p.Config.Prometheus.Bind,
		Handler: mux,
	}

	go func() {
		p.logger.Info("starting prometheus listener", zap.String("bind", p.Config.Prometheus.Bind))
		if err := p.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("failed to start prometheus listener", zap.Error(err))
		}
	}()
	return nil
}

func (p Plugin) Disable() error {
	p.eventBus.DetachRecipient(p.eventID)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	return p.srv.Shutdown(ctx)
}

func (p Plugin) handler() http.Handler {
	return promhttp.HandlerFor(p.metrics.registry, promhttp.HandlerOpts{})
}

func (p Plugin) handleEvent(e event.Event) {
	m := p.metrics
	switch e := e.Data.(type) {
	case proxypass.SessionOpenEvent:
		m.sessionsOpened.Inc()
		m.sessionsActive.Inc()
	case proxypass.ProtocolMismatchEvent:
		outdated := "client"
		if e.ClientProtocol > e.ServerProtocol {
			outdated = "server"
		}
		m.protocolMismatches.WithLabelValues(outdated).Inc()
	case proxypass.PlayerLoginEvent:
		m.logins.WithLabelValues(strconv.FormatBool(e.Anchored)).Inc()
	case proxypass.SessionBridgedEvent:
		m.sessionsBridged.Inc()
	case proxypass.HandshakeAbortEvent:
		m.handshakeAborts.WithLabelValues(e.State.String()).Inc()
	case proxypass.SessionCloseEvent:
		m.sessionsActive.Dec()
		m.sessionDuration.WithLabelValues(e.State.String()).Observe(e.Duration.Seconds())
	}
}
