package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

func (c *AppConfig) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return errors.New("invalid server port")
	}

	if c.Steam.APIBaseURL == "" {
		return errors.New("steam.apiBaseURL must be set")
	}
	if c.Steam.AppID == "" {
		return errors.New("steam.appID must be set")
	}
	if len(c.Steam.SupportedModes) == 0 {
		return errors.New("steam.supportedModes must list at least one joinable mode")
	}

	if c.Join.PollInterval < 1 {
		return errors.New("join.pollInterval must be positive")
	}
	if c.Join.MissingTimeout <= c.Join.PollInterval {
		return errors.New("join.missingTimeout must be greater than join.pollInterval")
	}
	if c.Join.JoinedDisplayWindow < 1 {
		return errors.New("join.joinedDisplayWindow must be positive")
	}
	if c.Join.UIRefreshTick < 1 {
		return errors.New("join.uiRefreshTick must be positive")
	}
	if c.Monitor.Interval < 1 {
		return errors.New("monitor.interval must be positive")
	}

	switch strings.ToLower(c.Cache.Backend) {
	case "memory":
	case "redis":
		if c.Cache.Redis.Address == "" {
			return errors.New("redis address must be specified for redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s. Must be 'memory' or 'redis'", c.Cache.Backend)
	}

	if c.Cache.TTL < 1 {
		return errors.New("cache TTL must be at least 1 second")
	}

	return nil
}

func bindEnvVars() {
	// Server
	viper.BindEnv("server.port", "ENJOYER_PORT")

	// Steam
	viper.BindEnv("steam.apiKey", "ENJOYER_STEAM_API_KEY")
	viper.BindEnv("steam.apiBaseURL", "ENJOYER_STEAM_API_BASE_URL")
	viper.BindEnv("steam.userID", "ENJOYER_STEAM_USER_ID")
	viper.BindEnv("steam.appID", "ENJOYER_STEAM_APP_ID")

	// Cache
	viper.BindEnv("cache.backend", "ENJOYER_CACHE_BACKEND")
	viper.BindEnv("cache.redis.address", "ENJOYER_REDIS_ADDRESS")
	viper.BindEnv("cache.redis.password", "ENJOYER_REDIS_PASSWORD")

	// Metrics
	viper.BindEnv("metrics.enabled", "ENJOYER_METRICS_ENABLED")
	viper.BindEnv("metrics.port", "ENJOYER_METRICS_PORT")
}
