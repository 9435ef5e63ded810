package cmd

import (
	"embed"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/haveachin/proxypass/internal/app/proxypass"
	"github.com/haveachin/proxypass/internal/pkg/bedrock"
	"github.com/haveachin/proxypass/internal/pkg/config"
	"github.com/haveachin/proxypass/internal/plugin/api"
	"github.com/haveachin/proxypass/internal/plugin/prometheus"
	"github.com/haveachin/proxypass/internal/plugin/webhook"
	"github.com/haveachin/proxypass/pkg/event"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	files   embed.FS
	version string

	configPath  = "config.yml"
	workingDir  = "."
	environment = "prod"
	logEncoder  = "console"

	logger *zap.Logger

	rootCmd = &cobra.Command{
		Use:   "proxypass",
		Short: "Starts the ProxyPass proxy",
		RunE: func(cmd *cobra.Command, args []string) error {
			var err error
			logger, err = newLogger(environment)
			if err != nil {
				return err
			}
			defer logger.Sync()

			if err := os.Chdir(workingDir); err != nil {
				return err
			}

			logger.Info("loading proxy from config",
				zap.String("config", configPath),
			)

			if _, err := os.Stat(configPath); err != nil && errors.Is(err, os.ErrNotExist) {
				if err := safeWriteFromEmbeddedFS("configs", "."); err != nil {
					return err
				}
			}

			data, err := config.Read(configPath)
			if err != nil {
				return err
			}

			cfg, err := config.New(data)
			if err != nil {
				return err
			}

			return run(cfg, data)
		},
	}
)

func run(cfg config.Config, data map[string]any) error {
	prxCfg, err := cfg.ProxyPass.ProxyConfig()
	if err != nil {
		return err
	}

	sink, err := cfg.Diagnostics.Sink(logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	l, err := bedrock.Listen(cfg.ProxyPass.Bind, cfg.ProxyPass.BedrockPingStatus())
	if err != nil {
		return err
	}
	l.MaxDecompressedSize = cfg.ProxyPass.MaxDecompressedSize

	eventBus := event.NewInternalBus()
	prx := &proxypass.Proxy{
		Config:    prxCfg,
		Listener:  l,
		Connector: cfg.ProxyPass.BedrockDialer(),
		Sink:      sink,
		Logger:    logger,
		EventBus:  eventBus,
	}
	defer prx.Close()

	filter, err := cfg.ProxyPass.Filter()
	if err != nil {
		return err
	}

	if filter != nil {
		prx.IPFilter = filter
	}

	pluginManager := proxypass.PluginManager{
		Sessions: prx,
		Logger:   logger,
		EventBus: eventBus,
	}
	pluginManager.RegisterPlugin(&webhook.Plugin{})
	pluginManager.RegisterPlugin(&prometheus.Plugin{})
	pluginManager.RegisterPlugin(&api.Plugin{})

	logger.Debug("loading plugins")
	if err := pluginManager.LoadPlugins(data); err != nil {
		logger.Error("failed to load plugins", zap.Error(err))
	}
	logger.Debug("enabling plugins")
	if err := pluginManager.EnablePlugins(); err != nil {
		logger.Error("failed to enable plugins", zap.Error(err))
	}
	defer pluginManager.DisablePlugins()

	logger.Info("bridging players",
		zap.String("target", prxCfg.TargetAddr),
		zap.Stringer("codec", prxCfg.Codec),
		zap.Bool("allowUnanchoredChains", prxCfg.AllowUnanchoredChains),
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- prx.ListenAndServe()
	}()

	sc := make(chan os.Signal, 1)
	signal.Notify(sc, syscall.SIGINT, syscall.SIGTERM, os.Interrupt)
	select {
	case <-sc:
		return nil
	case err := <-errCh:
		return err
	}
}

func envString(name string, defVal string) string {
	envString := os.Getenv(name)
	if envString == "" {
		return defVal
	}

	return envString
}

func init() {
	envVarPrefix := "PROXYPASS_"
	workingDir = envString(envVarPrefix+"WORKING_DIR", workingDir)
	rootCmd.PersistentFlags().StringVarP(&workingDir, "working-dir", "w", workingDir, "set the working directory")
	environment = envString(envVarPrefix+"ENVIRONMENT", environment)
	rootCmd.PersistentFlags().StringVarP(&environment, "environment", "e", environment, "set the deployment environment")
	logEncoder = envString(envVarPrefix+"LOG_ENCODER", logEncoder)
	rootCmd.PersistentFlags().StringVarP(&logEncoder, "log-encoder", "l", logEncoder, "set the log encoder")
	configPath = envString(envVarPrefix+"CONFIG", configPath)
	rootCmd.Flags().StringVarP(&configPath, "config", "c", configPath, "path of the config file")

	rootCmd.AddCommand(versionCmd)
}

func newLogger(env string) (*zap.Logger, error) {
	switch env {
	case "nop":
		return zap.NewNop(), nil
	case "dev":
		return zap.NewDevelopment()
	case "prod":
		cfg := zap.NewProductionConfig()
		cfg.Encoding = logEncoder
		if logEncoder == "console" {
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339TimeEncoder
		cfg.DisableCaller = true
		cfg.DisableStacktrace = true
		return cfg.Build()
	default:
		return nil, fmt.Errorf("unsupported environment %q", env)
	}
}

// Execute executes the root command.
func Execute(fs embed.FS, v string) error {
	files = fs
	version = v
	return rootCmd.Execute()
}

func safeWriteFromEmbeddedFS(embedPath, sysPath string) error {
	entries, err := files.ReadDir(embedPath)
	if err != nil {
		return err
	}

	for _, e := range entries {
		ePath := fmt.Sprintf("%s/%s", embedPath, e.Name())
		sPath := filepath.Join(sysPath, e.Name())

		if _, err := os.Stat(sPath); err == nil || !os.IsNotExist(err) {
			continue
		}

		if e.IsDir() {
			if err := os.Mkdir(sPath, 0755); err != nil {
				return err
			}

			if err := safeWriteFromEmbeddedFS(ePath, sPath); err != nil {
				return err
			}
			continue
		}

		bb, err := files.ReadFile(ePath)
		if err != nil {
			return err
		}

		if err := os.WriteFile(sPath, bb, 0644); err != nil {
			return err
		}
	}

	return nil
}
