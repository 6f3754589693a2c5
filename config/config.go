package config

import (
	"fmt"
	"sync"

	"github.com/spf13/viper"
)

type AppConfig struct {
	Server  ServerConfig
	Steam   SteamConfig
	Join    JoinConfig
	Monitor MonitorConfig
	Cache   CacheConfig
	UI      UIConfig
	Metrics MetricsConfig
}

type ServerConfig struct {
	Port         int
	ReadTimeout  int // Seconds
	WriteTimeout int // Seconds
}

// SteamConfig holds everything needed to talk to the Steam Web API and to
// classify a friend's rich-presence into "joinable" game modes.
type SteamConfig struct {
	APIKey         string
	APIBaseURL     string
	UserID         string // the local user's SteamID64
	AppID          string
	RequestTimeout int // Seconds
	MaxRetries     int
	RetryBackoff   int      // Milliseconds
	SupportedModes []string // rich-presence substrings that count as joinable
	LobbyStates    []string // rich-presence substrings that mean "still in lobby"
}

// JoinConfig carries the timing constants of the join state machine.
// Values are milliseconds.
type JoinConfig struct {
	PollInterval          int // between presence polls
	MissingTimeout        int // presence lost for longer than this cancels the join
	JoinedDisplayWindow   int // how long a successful join stays on screen
	UIRefreshTick         int // cadence of status re-emission to the UI
	CancelSettleDelay     int // second cancelled emit, defeats in-flight UI races
	LaunchDecisionTimeout int // how long to wait for the user's launch answer
}

type MonitorConfig struct {
	Interval int // Milliseconds between game-running probes
}

type CacheConfig struct {
	Backend string // "memory" or "redis"
	TTL     int    // Seconds
	Redis   RedisConfig
}

type RedisConfig struct {
	Address     string
	Password    string
	DB          int
	PoolSize    int
	PoolTimeout int // Seconds
}

type UIConfig struct {
	PingInterval     int // Seconds
	WriteTimeout     int // Seconds
	MessageSizeLimit int // Bytes
}

type MetricsConfig struct {
	Enabled bool
	Port    int
	Path    string
}

var (
	instance *AppConfig
	once     sync.Once
)

func Initialize(env string) error {
	var initErr error
	once.Do(func() {
		viper.SetConfigName(fmt.Sprintf("config.%s", env))
		viper.SetConfigType("yaml")
		viper.AddConfigPath("./configs")
		viper.AddConfigPath(".")

		viper.AutomaticEnv()
		viper.SetEnvPrefix("ENJOYER")

		setDefaults()
		bindEnvVars()

		if err := viper.ReadInConfig(); err != nil {
			// A config file is optional; defaults plus env vars are enough.
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				initErr = fmt.Errorf("config file error: %w", err)
				return
			}
		}

		if err := viper.Unmarshal(&instance); err != nil {
			initErr = fmt.Errorf("config unmarshal error: %w", err)
			return
		}

		if err := instance.Validate(); err != nil {
			initErr = fmt.Errorf("config validation failed: %w", err)
			return
		}
	})
	return initErr
}

func Get() *AppConfig {
	return instance
}
