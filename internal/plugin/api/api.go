package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/config"
	"go.uber.org/zap"
)

type PluginConfig struct {
	API struct {
		Enable         bool     `mapstructure:"enable"`
		Bind           string   `mapstructure:"bind"`
		AllowedOrigins []string `mapstructure:"allowedOrigins"`
		AllowedMethods []string `mapstructure:"allowedMethods"`
		AllowedHeaders []string `mapstructure:"allowedHeaders"`
	} `mapstructure:"api"`
}

type Plugin struct {
	Config PluginConfig
	logger *zap.Logger
	api    proxypass.PluginAPI

	quit chan bool
}

func (p Plugin) Name() string {
	return "API"
}

func (p Plugin) Version() string {
	return "internal"
}

func (p *Plugin) Load(cfg map[string]any) error {
	pluginCfg := PluginConfig{}
	if err := config.Unmarshal(cfg, &pluginCfg); err != nil {
		return err
	}
	p.Config = pluginCfg

	if !p.Config.API.Enable {
		return proxypass.ErrPluginViaConfigDisabled
	}

	return nil
}

func (p *Plugin) Enable(api proxypass.PluginAPI) error {
	p.logger = api.Logger()
	p.api = api
	p.quit = make(chan bool)

	go p.startAPIServer()
	return nil
}

func (p Plugin) Disable() error {
	select {
	case p.quit <- true:
	default:
	}
	return nil
}

func (p Plugin) startAPIServer() {
	srv := http.Server{
		Handler: p.router(),
		Addr:    p.Config.API.Bind,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			p.logger.Error("failed to start server", zap.Error(err))
			return
		}
	}()

	p.logger.Info("started api server",
		zap.String("bind", p.Config.API.Bind),
	)

	<-p.quit

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	srv.Shutdown(ctx)
}

func (p Plugin) router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   p.Config.API.AllowedOrigins,
		AllowedMethods:   p.Config.API.AllowedMethods,
		AllowedHeaders:   p.Config.API.AllowedHeaders,
		AllowCredentials: false,
	}))

	r.Route("/v1/sessions", func(r chi.Router) {
		r.Get("/", getSessionsHandler(p.api))
		r.Get("/{sessionID}", getSessionHandler(p.api))
		r.Delete("/{sessionID}", deleteSessionHandler(p.api))
	})
	return r
}
