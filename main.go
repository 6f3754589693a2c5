package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/skik4/cs2-casual-enjoyer-sub000/config"
	"github.com/skik4/cs2-casual-enjoyer-sub000/join"
	"github.com/skik4/cs2-casual-enjoyer-sub000/launcher"
	"github.com/skik4/cs2-casual-enjoyer-sub000/metrics"
	"github.com/skik4/cs2-casual-enjoyer-sub000/monitor"
	"github.com/skik4/cs2-casual-enjoyer-sub000/presence"
	"github.com/skik4/cs2-casual-enjoyer-sub000/services"
	"github.com/skik4/cs2-casual-enjoyer-sub000/uisink"
)

func main() {
	// Initialize config
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "dev"
	}
	if err := config.Initialize(env); err != nil {
		logrus.Fatalf("Failed to initialize config: %v", err)
	}
	cfg := config.Get()

	logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if cfg.Steam.APIKey == "" || cfg.Steam.UserID == "" {
		logrus.Fatal("ENJOYER_STEAM_API_KEY and ENJOYER_STEAM_USER_ID must be set")
	}

	if cfg.Metrics.Enabled {
		metrics.StartServer(cfg.Metrics.Port, cfg.Metrics.Path)
	}

	// --- Status cache initialization ---
	var statusCache presence.Cache
	logrus.Infof("Initializing status cache of type: %s", cfg.Cache.Backend)
	switch strings.ToLower(cfg.Cache.Backend) {
	case "memory":
		statusCache = presence.NewMemoryCache(time.Duration(cfg.Cache.TTL) * time.Second)
	case "redis":
		redisClient, err := services.NewRedisClient(
			cfg.Cache.Redis.Address,
			cfg.Cache.Redis.Password,
			cfg.Cache.Redis.DB,
			cfg.Cache.Redis.PoolSize,
			cfg.Cache.Redis.PoolTimeout,
		)
		if err != nil {
			logrus.Fatalf("Failed to connect to Redis for status cache: %v", err)
		}
		defer services.CloseRedisClient(redisClient)
		statusCache = presence.NewRedisCache(redisClient, time.Duration(cfg.Cache.TTL)*time.Second)
	default:
		// This should be caught by config validation, but we check again as a safeguard.
		logrus.Fatalf("Invalid cache backend specified: %s", cfg.Cache.Backend)
	}
	// --- End of cache initialization ---

	steamClient := presence.NewSteamClient(&cfg.Steam, statusCache)
	osLauncher := launcher.NewOSLauncher(cfg.Steam.AppID)

	hub := uisink.NewHub(&cfg.UI, time.Duration(cfg.Join.LaunchDecisionTimeout)*time.Millisecond)

	registry := join.NewRegistry(steamClient, osLauncher, hub, cfg.Steam.UserID, join.TimingsFromConfig(&cfg.Join))
	registry.SetDecider(hub)

	launchMonitor := monitor.New(steamClient, osLauncher, cfg.Steam.UserID,
		time.Duration(cfg.Monitor.Interval)*time.Millisecond)

	hub.Attach(registry, launchMonitor)

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", hub.HandleWebSocket)
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      mux,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		logrus.Infof("Enjoyer daemon listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logrus.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logrus.Info("Shutting down")
	registry.ResetAll()
	launchMonitor.CancelLaunchOperations()
	hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logrus.Warnf("Server shutdown error: %v", err)
	}
}
