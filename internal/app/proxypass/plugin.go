package proxypass

import (
	"errors"
	"sync"

	"github.com/gofrs/uuid"
	"github.com/haveachin/proxypass/pkg/event"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

var ErrPluginViaConfigDisabled = errors.New("plugin was disabled via config")

type PluginAPI interface {
	EventBus() event.Bus
	Logger() *zap.Logger
	SessionManager
}

type Plugin interface {
	Name() string
	Version() string
	// Load reads the plugin config from the raw config map.
	// Returning ErrPluginViaConfigDisabled keeps the plugin from being enabled.
	Load(cfg map[string]any) error
	Enable(PluginAPI) error
	Disable() error
}

// SessionManager is implemented by Proxy.
type SessionManager interface {
	// Sessions returns a snapshot of all live sessions.
	Sessions() []SessionInfo
	CloseSession(id uuid.UUID) bool
}

type pluginManagerAPI struct {
	mu sync.RWMutex
	pm *PluginManager
}

func (api *pluginManagerAPI) EventBus() event.Bus {
	api.mu.RLock()
	defer api.mu.RUnlock()
	return api.pm.EventBus
}

func (api *pluginManagerAPI) Logger() *zap.Logger {
	api.mu.RLock()
	defer api.mu.RUnlock()
	return api.pm.Logger
}

func (api *pluginManagerAPI) Sessions() []SessionInfo {
	api.mu.RLock()
	defer api.mu.RUnlock()
	if api.pm.Sessions == nil {
		return nil
	}
	return api.pm.Sessions.Sessions()
}

func (api *pluginManagerAPI) CloseSession(id uuid.UUID) bool {
	api.mu.RLock()
	defer api.mu.RUnlock()
	if api.pm.Sessions == nil {
		return false
	}
	return api.pm.Sessions.CloseSession(id)
}

type PluginManager struct {
	Sessions SessionManager
	Plugins  []Plugin
	Logger   *zap.Logger
	EventBus event.Bus

	enabled []Plugin
}

func (pm *PluginManager) RegisterPlugin(p Plugin) {
	pm.Plugins = append(pm.Plugins, p)
}

// LoadPlugins loads every registered plugin and returns the errors of the plugins that failed to load.
// Plugins that are disabled via config are skipped silently.
func (pm *PluginManager) LoadPlugins(cfg map[string]any) error {
	pm.setDefaults()

	var result error
	pm.enabled = pm.enabled[:0]
	for _, p := range pm.Plugins {
		if err := p.Load(cfg); err != nil {
			if errors.Is(err, ErrPluginViaConfigDisabled) {
				pm.Logger.Debug("plugin disabled via config", zap.String("pluginName", p.Name()))
				continue
			}
			result = multierr.Append(result, err)
			continue
		}
		pm.enabled = append(pm.enabled, p)
	}
	return result
}

func (pm *PluginManager) EnablePlugins() error {
	pm.setDefaults()
	api := &pluginManagerAPI{pm: pm}

	var result error
	for _, p := range pm.enabled {
		pm.Logger.Info("loading plugin",
			zap.String("pluginName", p.Name()),
			zap.String("pluginVersion", p.Version()),
		)
		if err := p.Enable(api); err != nil {
			result = multierr.Append(result, err)
		}
	}
	return result
}

func (pm *PluginManager) DisablePlugins() error {
	var result error
	for _, p := range pm.enabled {
		if err := p.Disable(); err != nil {
			result = multierr.Append(result, err)
		}
	}
	return result
}

func (pm *PluginManager) setDefaults() {
	if pm.EventBus == nil {
		pm.EventBus = event.DefaultBus
	}

	if pm.Logger == nil {
		pm.Logger = zap.NewNop()
	}
}
