package config

import "github.com/spf13/viper"

func setDefaults() {
	// Server
	viper.SetDefault("server.port", 8765)
	viper.SetDefault("server.readTimeout", 15)
	viper.SetDefault("server.writeTimeout", 15)

	// Steam
	viper.SetDefault("steam.apiBaseURL", "https://api.steampowered.com")
	viper.SetDefault("steam.appID", "730")
	viper.SetDefault("steam.requestTimeout", 5)
	viper.SetDefault("steam.maxRetries", 3)
	viper.SetDefault("steam.retryBackoff", 200)
	viper.SetDefault("steam.supportedModes", []string{"Casual", "Deathmatch"})
	viper.SetDefault("steam.lobbyStates", []string{"lobby"})

	// Join state machine. These values are load-bearing: the polling cadence
	// and timeouts match what the game client tolerates.
	viper.SetDefault("join.pollInterval", 500)
	viper.SetDefault("join.missingTimeout", 60000)
	viper.SetDefault("join.joinedDisplayWindow", 1500)
	viper.SetDefault("join.uiRefreshTick", 1000)
	viper.SetDefault("join.cancelSettleDelay", 200)
	viper.SetDefault("join.launchDecisionTimeout", 30000)

	// Launch monitor
	viper.SetDefault("monitor.interval", 3000)

	// Presence status cache
	viper.SetDefault("cache.backend", "memory")
	viper.SetDefault("cache.ttl", 300)
	viper.SetDefault("cache.redis.address", "localhost:6379")
	viper.SetDefault("cache.redis.db", 0)
	viper.SetDefault("cache.redis.poolSize", 10)
	viper.SetDefault("cache.redis.poolTimeout", 5)

	// UI websocket
	viper.SetDefault("ui.pingInterval", 25)
	viper.SetDefault("ui.writeTimeout", 10)
	viper.SetDefault("ui.messageSizeLimit", 2048)

	// Metrics
	viper.SetDefault("metrics.enabled", true)
	viper.SetDefault("metrics.port", 9090)
	viper.SetDefault("metrics.path", "/metrics")
}
