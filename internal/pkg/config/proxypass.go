package config

import (
	"fmt"
	"time"

	"github.com/c2h5oh/datasize"
	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/bedrock"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/login"
	"github.com/haveachin/proxypass/internal/pkg/bedrock/protocol/packet"
	"github.com/haveachin/proxypass/internal/pkg/diagnostics"
	"github.com/haveachin/proxypass/pkg/ipfilter"
	"github.com/imdario/mergo"
	"go.uber.org/zap"
)

type CodecConfig struct {
	ProtocolVersion  int32  `mapstructure:"protocolVersion"`
	MinecraftVersion string `mapstructure:"minecraftVersion"`
}

type DialerConfig struct {
	ProxyBind         string        `mapstructure:"proxyBind"`
	DialTimeout       time.Duration `mapstructure:"dialTimeout"`
	SendProxyProtocol bool          `mapstructure:"sendProxyProtocol"`
}

type PingStatusConfig struct {
	Edition         string `mapstructure:"edition"`
	VersionName     string `mapstructure:"versionName"`
	PlayerCount     int    `mapstructure:"playerCount"`
	MaxPlayerCount  int    `mapstructure:"maxPlayerCount"`
	GameMode        string `mapstructure:"gameMode"`
	GameModeNumeric int    `mapstructure:"gameModeNumeric"`
	MOTD            string `mapstructure:"motd"`
}

type IPFilterConfig struct {
	// Mode is either "allow" or "deny".
	Mode string   `mapstructure:"mode"`
	IPs  []string `mapstructure:"ips"`
}

type ProxyPassConfig struct {
	Bind                  string            `mapstructure:"bind"`
	Target                string            `mapstructure:"target"`
	Codec                 CodecConfig       `mapstructure:"codec"`
	RootKey               string            `mapstructure:"rootKey"`
	AllowUnanchoredChains bool              `mapstructure:"allowUnanchoredChains"`
	ClientDataOverrides   map[string]any    `mapstructure:"clientDataOverrides"`
	ForgeValidity         time.Duration     `mapstructure:"forgeValidity"`
	Dialer                DialerConfig      `mapstructure:"dialer"`
	PingStatus            PingStatusConfig  `mapstructure:"pingStatus"`
	IPFilter              IPFilterConfig    `mapstructure:"ipFilter"`
	MaxDecompressedSize   datasize.ByteSize `mapstructure:"maxDecompressedSize"`
}

type DiagnosticsConfig struct {
	Log  bool `mapstructure:"log"`
	File struct {
		Enable    bool              `mapstructure:"enable"`
		Directory string            `mapstructure:"directory"`
		MaxSize   datasize.ByteSize `mapstructure:"maxSize"`
	} `mapstructure:"file"`
	Redis struct {
		Enable                  bool `mapstructure:"enable"`
		diagnostics.RedisConfig `mapstructure:",squash"`
	} `mapstructure:"redis"`
}

type Config struct {
	ProxyPass   ProxyPassConfig   `mapstructure:"proxyPass"`
	Diagnostics DiagnosticsConfig `mapstructure:"diagnostics"`
}

func defaultConfig() Config {
	var cfg Config
	cfg.ProxyPass = ProxyPassConfig{
		Bind:   "0.0.0.0:19132",
		Target: "127.0.0.1:19133",
		Codec: CodecConfig{
			ProtocolVersion:  proxypass.DefaultCodec.ProtocolVersion,
			MinecraftVersion: proxypass.DefaultCodec.MinecraftVersion,
		},
		RootKey:             login.MojangPublicKey,
		ClientDataOverrides: map[string]any{"DeviceOS": 1},
		ForgeValidity:       login.DefaultForgeValidity,
		MaxDecompressedSize: packet.DefaultMaxDecompressedSize,
		Dialer: DialerConfig{
			DialTimeout: time.Second,
		},
		PingStatus: PingStatusConfig{
			Edition:         "MCPE",
			VersionName:     proxypass.DefaultCodec.MinecraftVersion,
			MaxPlayerCount:  20,
			GameMode:        "Survival",
			GameModeNumeric: 1,
			MOTD:            "ProxyPass",
		},
	}
	cfg.Diagnostics.File.Directory = "sessions"
	cfg.Diagnostics.File.MaxSize = datasize.MB
	cfg.Diagnostics.Redis.TTL = 24 * time.Hour
	cfg.Diagnostics.Redis.MaxSize = datasize.MB
	return cfg
}

// New decodes a raw config map and fills every unset value with its default.
func New(data map[string]any) (Config, error) {
	var cfg Config
	if err := Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}

	if err := mergo.Merge(&cfg, defaultConfig()); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (cfg ProxyPassConfig) ProxyConfig() (proxypass.Config, error) {
	rootKey, err := login.ParsePublicKey(cfg.RootKey)
	if err != nil {
		return proxypass.Config{}, fmt.Errorf("invalid root key: %w", err)
	}

	return proxypass.Config{
		TargetAddr: cfg.Target,
		Codec: proxypass.Codec{
			ProtocolVersion:  cfg.Codec.ProtocolVersion,
			MinecraftVersion: cfg.Codec.MinecraftVersion,
		},
		RootKey:               rootKey,
		AllowUnanchoredChains: cfg.AllowUnanchoredChains,
		ClientDataOverrides:   cfg.ClientDataOverrides,
		ForgeValidity:         cfg.ForgeValidity,
	}, nil
}

func (cfg ProxyPassConfig) BedrockDialer() bedrock.Dialer {
	return bedrock.Dialer{
		ProxyBind:           cfg.Dialer.ProxyBind,
		DialTimeout:         cfg.Dialer.DialTimeout,
		SendProxyProtocol:   cfg.Dialer.SendProxyProtocol,
		MaxDecompressedSize: cfg.MaxDecompressedSize,
	}
}

func (cfg ProxyPassConfig) BedrockPingStatus() bedrock.PingStatus {
	return bedrock.PingStatus{
		Edition:         cfg.PingStatus.Edition,
		ProtocolVersion: int(cfg.Codec.ProtocolVersion),
		VersionName:     cfg.PingStatus.VersionName,
		PlayerCount:     cfg.PingStatus.PlayerCount,
		MaxPlayerCount:  cfg.PingStatus.MaxPlayerCount,
		GameMode:        cfg.PingStatus.GameMode,
		GameModeNumeric: cfg.PingStatus.GameModeNumeric,
		MOTD:            cfg.PingStatus.MOTD,
	}
}

// Filter returns nil if no ip filter mode is configured.
func (cfg ProxyPassConfig) Filter() (*ipfilter.Filter, error) {
	if cfg.IPFilter.Mode == "" {
		return nil, nil
	}

	mode, err := ipfilter.ParseMode(cfg.IPFilter.Mode)
	if err != nil {
		return nil, err
	}

	f := ipfilter.New(mode)
	for _, ip := range cfg.IPFilter.IPs {
		p, err := ipfilter.ParsePrefix(ip)
		if err != nil {
			return nil, err
		}
		f.Add(p)
	}
	return f, nil
}

// Sink builds the diagnostics sinks that are enabled. The returned sink needs to be closed.
func (cfg DiagnosticsConfig) Sink(logger *zap.Logger) (diagnostics.MultiSink, error) {
	var sink diagnostics.MultiSink
	if cfg.Log {
		sink = append(sink, diagnostics.LogSink{Logger: logger})
	}

	if cfg.File.Enable {
		sink = append(sink, diagnostics.FileSink{
			Dir:     cfg.File.Directory,
			MaxSize: cfg.File.MaxSize,
		})
	}

	if cfg.Redis.Enable {
		rs, err := diagnostics.NewRedisSink(cfg.Redis.RedisConfig)
		if err != nil {
			return nil, err
		}
		sink = append(sink, rs)
	}

	return sink, nil
}
