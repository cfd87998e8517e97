package main

import (
	"context"
	"expvar"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	metrics "github.com/docker/go-metrics"
	"github.com/gorilla/handlers"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/screelabs/scree"
	"github.com/screelabs/scree/auth"
	"github.com/screelabs/scree/storage"
	"github.com/screelabs/scree/webhook"
)

const shutdownTimeout = 15 * time.Second

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve the registry over HTTP",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Usage:   "YAML configuration file",
				Sources: cli.EnvVars("SCREE_CONFIG"),
			},
			&cli.StringFlag{
				Name:    "http-addr",
				Usage:   "registry listen address",
				Sources: cli.EnvVars("SCREE_HTTP_ADDR"),
			},
			&cli.StringFlag{
				Name:    "debug-addr",
				Usage:   "listen address for /metrics and /debug/vars",
				Sources: cli.EnvVars("SCREE_DEBUG_ADDR"),
			},
			&cli.StringFlag{
				Name:    "storage-root",
				Usage:   "directory holding blobs, manifests and uploads",
				Sources: cli.EnvVars("SCREE_STORAGE_ROOT"),
			},
			&cli.StringFlag{
				Name:    "htpasswd",
				Usage:   "bcrypt htpasswd file with registry credentials",
				Sources: cli.EnvVars("SCREE_HTPASSWD"),
			},
			&cli.StringFlag{
				Name:    "username",
				Usage:   "static registry username",
				Sources: cli.EnvVars("SCREE_USERNAME"),
			},
			&cli.StringFlag{
				Name:    "password",
				Usage:   "static registry password",
				Sources: cli.EnvVars("SCREE_PASSWORD"),
			},
			&cli.StringFlag{
				Name:    "webhook-url",
				Usage:   "endpoint notified of every pushed manifest",
				Sources: cli.EnvVars("SCREE_WEBHOOK_URL"),
			},
			&cli.StringFlag{
				Name:    "log-level",
				Usage:   "log level (debug, info, warn, error)",
				Sources: cli.EnvVars("SCREE_LOG_LEVEL"),
			},
			&cli.StringFlag{
				Name:    "log-format",
				Usage:   "log format (text, json)",
				Sources: cli.EnvVars("SCREE_LOG_FORMAT"),
			},
		},
		Action: runServe,
	}
}

// applyFlags lays explicitly set flags over the file configuration.
func applyFlags(cfg *Config, cmd *cli.Command) {
	set := func(dst *string, flag string) {
		if cmd.IsSet(flag) {
			*dst = cmd.String(flag)
		}
	}
	set(&cfg.HTTP.Addr, "http-addr")
	set(&cfg.HTTP.DebugAddr, "debug-addr")
	set(&cfg.Storage.Root, "storage-root")
	set(&cfg.Auth.HTPasswd, "htpasswd")
	set(&cfg.Auth.Username, "username")
	set(&cfg.Auth.Password, "password")
	set(&cfg.Webhook.URL, "webhook-url")
	set(&cfg.Log.Level, "log-level")
	set(&cfg.Log.Format, "log-format")
}

func newLogger(cfg *Config) (*logrus.Logger, error) {
	logger := logrus.New()
	level, err := logrus.ParseLevel(cfg.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", cfg.Log.Level, err)
	}
	logger.SetLevel(level)
	switch cfg.Log.Format {
	case "", "text":
		logger.SetFormatter(&logrus.TextFormatter{})
	case "json":
		logger.SetFormatter(&logrus.JSONFormatter{})
	default:
		return nil, fmt.Errorf("invalid log format %q", cfg.Log.Format)
	}
	return logger, nil
}

func newAuthenticator(cfg *Config, logger *logrus.Logger) (scree.Authenticator, error) {
	switch {
	case cfg.Auth.HTPasswd != "":
		return auth.NewHTPasswd(cfg.Auth.HTPasswd)
	case cfg.Auth.Username != "":
		return auth.Static(cfg.Auth.Username, cfg.Auth.Password), nil
	default:
		logger.Warn("no credentials configured; accepting any username and password")
		return auth.AllowAll(), nil
	}
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd.String("config"))
	if err != nil {
		return err
	}
	applyFlags(cfg, cmd)

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	store, err := storage.NewFilesystem(cfg.Storage.Root)
	if err != nil {
		return err
	}
	authenticator, err := newAuthenticator(cfg, logger)
	if err != nil {
		return err
	}

	var hooks scree.Hooks = scree.NopHooks{}
	var sink *webhook.Sink
	if cfg.Webhook.URL != "" {
		sink = webhook.NewSink(cfg.Webhook.URL, nil)
		hooks = sink
	}

	handler := scree.New(store, &scree.Options{
		Auth:   authenticator,
		Hooks:  hooks,
		Logger: logger,
	})
	srv := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handlers.CombinedLoggingHandler(logger.Writer(), handler),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if cfg.HTTP.DebugAddr != "" {
		go serveDebug(cfg.HTTP.DebugAddr, logger)
	}
	go func() {
		logger.WithField("addr", cfg.HTTP.Addr).Info("registry listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("server failed")
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("shutdown failed")
	}
	if sink != nil {
		// Flush pending webhook deliveries before exit.
		if err := sink.Close(); err != nil {
			logger.WithError(err).Warn("webhook sink close failed")
		}
	}
	return nil
}

func serveDebug(addr string, logger *logrus.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/debug/vars", expvar.Handler())
	logger.WithField("addr", addr).Info("debug listening")
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.WithError(err).Error("debug server failed")
	}
}
