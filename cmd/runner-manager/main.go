// Copyright 2022 Cloudbase Solutions SRL
//
//    Licensed under the Apache License, Version 2.0 (the "License"); you may
//    not use this file except in compliance with the License. You may obtain
//    a copy of the License at
//
//         http://www.apache.org/licenses/LICENSE-2.0
//
//    Unless required by applicable law or agreed to in writing, software
//    distributed under the License is distributed on an "AS IS" BASIS, WITHOUT
//    WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied. See the
//    License for the specific language governing permissions and limitations
//    under the License.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"

	"github.com/harryfinbow/runner-manager/apiserver/controllers"
	"github.com/harryfinbow/runner-manager/apiserver/events"
	"github.com/harryfinbow/runner-manager/apiserver/routers"
	"github.com/harryfinbow/runner-manager/auth"
	"github.com/harryfinbow/runner-manager/backend"
	"github.com/harryfinbow/runner-manager/config"
	"github.com/harryfinbow/runner-manager/hostingservice"
	"github.com/harryfinbow/runner-manager/lifecycle"
	"github.com/harryfinbow/runner-manager/locking"
	"github.com/harryfinbow/runner-manager/metrics"
	"github.com/harryfinbow/runner-manager/params"
	"github.com/harryfinbow/runner-manager/reconcile"
	"github.com/harryfinbow/runner-manager/store"
	"github.com/harryfinbow/runner-manager/util"
	"github.com/harryfinbow/runner-manager/util/appdefaults"
	"github.com/harryfinbow/runner-manager/webhook"
)

var (
	conf    = flag.String("config", config.DefaultConfigFilePath, "runner-manager config file")
	version = flag.Bool("version", false, "prints version")
)

var signals = []os.Signal{
	os.Interrupt,
	syscall.SIGTERM,
}

func setupLogging(logFile string, level config.LogLevel) {
	logWriter, err := util.GetLoggingWriter(logFile)
	if err != nil {
		log.Fatalf("fetching log writer: %+v", err)
	}

	var logLevel slog.Level
	switch level {
	case config.LevelDebug:
		logLevel = slog.LevelDebug
	case config.LevelInfo:
		logLevel = slog.LevelInfo
	case config.LevelWarning:
		logLevel = slog.LevelWarn
	case config.LevelError:
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	han := slog.NewJSONHandler(logWriter, &slog.HandlerOptions{Level: logLevel})
	slog.SetDefault(slog.New(util.ContextHandler{Handler: han}))
}

// newBackend dispatches on the group's declared provider to build the
// one backend adapter it is bound to (spec.md §9 closed set).
func newBackend(ctx context.Context, group config.GroupConfig, logger *slog.Logger) (backend.Backend, error) {
	switch group.Provider {
	case params.ProviderLocal:
		cfg := *group.Backend.Local
		return backend.NewLocalBackend(backend.LocalConfig{
			WorkDir:    cfg.WorkDir,
			RunnerPath: cfg.RunnerPath,
			Manager:    group.Manager,
			Group:      group.Name,
		}, logger)
	case params.ProviderDocker:
		cfg := *group.Backend.Docker
		return backend.NewDockerBackend(backend.DockerConfig{
			Host:        cfg.Host,
			Image:       cfg.Image,
			NetworkMode: cfg.NetworkMode,
			Manager:     group.Manager,
			Group:       group.Name,
		}, logger)
	case params.ProviderGCP:
		cfg := *group.Backend.GCP
		return backend.NewGCPBackend(ctx, backend.GCPConfig{
			ProjectID:    cfg.ProjectID,
			Zone:         cfg.Zone,
			MachineType:  cfg.MachineType,
			ImageProject: cfg.ImageProject,
			ImageFamily:  cfg.ImageFamily,
			Network:      cfg.Network,
			Subnetwork:   cfg.Subnetwork,
			DiskSizeGB:   cfg.DiskSizeGB,
			DiskType:     cfg.DiskType,
			Manager:      group.Manager,
			Group:        group.Name,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown provider %q for group %s", group.Provider, group.Name)
	}
}

// newHostingClient builds the GitHub client for group, selecting
// app-installation or bearer-token auth per cfg.UseAppAuth (spec.md
// §4.3).
func newHostingClient(ctx context.Context, cfg *config.Config, group config.GroupConfig) (*hostingservice.Client, error) {
	creds := hostingservice.Credentials{
		BaseURL: cfg.GithubBaseURL,
		Token:   cfg.GithubToken,
	}
	if cfg.UseAppAuth() {
		creds.AppID = cfg.GithubAppID
		creds.InstallationID = cfg.GithubInstallationID
		creds.PrivateKey = []byte(cfg.GithubPrivateKey)
	}
	return hostingservice.NewClient(ctx, group.Organization, creds)
}

func buildGroups(ctx context.Context, cfg *config.Config, logger *slog.Logger) (map[string]lifecycle.GroupRuntime, error) {
	groups := make(map[string]lifecycle.GroupRuntime, len(cfg.RunnerGroups))
	for _, g := range cfg.RunnerGroups {
		be, err := newBackend(ctx, g, logger.With("group", g.Name))
		if err != nil {
			return nil, fmt.Errorf("building backend for group %s: %w", g.Name, err)
		}
		hosting, err := newHostingClient(ctx, cfg, g)
		if err != nil {
			return nil, fmt.Errorf("building hosting client for group %s: %w", g.Name, err)
		}
		groups[g.Name] = lifecycle.GroupRuntime{
			Group:   g.RunnerGroup,
			Backend: be,
			Hosting: hosting,
		}
	}
	return groups, nil
}

func main() {
	flag.Parse()
	if *version {
		fmt.Println(appdefaults.GetVersion())
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), signals...)
	defer stop()

	configPath := *conf
	if envPath := os.Getenv("RUNNER_MANAGER_CONFIG"); envPath != "" && configPath == config.DefaultConfigFilePath {
		configPath = envPath
	}
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		log.Fatalf("fetching config: %+v", err)
	}

	setupLogging(cfg.LogFile, cfg.LogLevel)

	if err := locking.RegisterLocker(locking.NewLocalLocker()); err != nil {
		log.Fatalf("registering locker: %+v", err)
	}

	if err := metrics.RegisterMetrics(); err != nil {
		log.Fatalf("registering metrics: %+v", err)
	}

	st, err := store.NewRedisStore(ctx, cfg.RedisOMURL)
	if err != nil {
		log.Fatalf("connecting to store: %+v", err)
	}
	defer st.Close()

	groups, err := buildGroups(ctx, cfg, slog.Default())
	if err != nil {
		log.Fatalf("building runner groups: %+v", err)
	}

	eventLog := events.NewRecorder(cfg.EventLogSize)

	manager, err := lifecycle.NewManager(lifecycle.Config{
		Store:         st,
		Groups:        groups,
		ManagerName:   cfg.Name,
		TimeoutRunner: cfg.TimeoutRunner.Duration,
		TimeToLive:    cfg.TimeToLive.Duration,
		Logger:        slog.Default(),
		Events:        eventLog,
	})
	if err != nil {
		log.Fatalf("creating lifecycle manager: %+v", err)
	}

	reconciler := reconcile.New(reconcile.Config{
		Manager:             manager,
		Store:               st,
		HealthcheckInterval: cfg.HealthcheckInterval.Duration,
		IndexingInterval:    cfg.IndexingInterval.Duration,
		Logger:              slog.Default(),
	})
	go func() {
		if err := reconciler.Run(ctx); err != nil && ctx.Err() == nil {
			slog.Default().Error("reconciler stopped", "error", err)
		}
	}()

	dispatcher := webhook.NewDispatcher(manager, cfg.WebhookQueueSize, slog.Default())
	go dispatcher.Run(ctx)

	webhookServer := webhook.NewServer(dispatcher, cfg.GithubWebhookSecret, slog.Default())

	apiController := controllers.NewAPIController(manager, st, eventLog)
	apiKeyMiddleware := auth.NewAPIKeyMiddleware(cfg.APIKey)
	apiRouter := routers.NewAPIRouter(apiController, apiKeyMiddleware, cfg.CORSAllowedOrigins)
	if cfg.MetricsEnabled {
		apiRouter = routers.WithMetricsRouter(apiRouter, true, apiKeyMiddleware)
	}

	// Webhook intake and the management API are two distinct routers,
	// each with its own auth and CORS policy; dispatch between them on
	// path prefix rather than merging them into one mux.Router.
	topRouter := mux.NewRouter()
	topRouter.PathPrefix("/webhooks").Handler(webhookServer.Handler(cfg.CORSAllowedOrigins))
	topRouter.NotFoundHandler = apiRouter

	srv := &http.Server{
		Addr:    cfg.BindAddress,
		Handler: topRouter,
	}

	listener, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatalf("creating listener: %q", err)
	}

	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			slog.Default().Error("listening", "error", err)
		}
	}()

	slog.Default().Info("runner-manager started", "bind_address", cfg.BindAddress)

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Default().Error("graceful api server shutdown failed", "error", err)
	}
}
