package config

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode       string        `mapstructure:"mode"`
	Port       int           `mapstructure:"port"`
	StaticPath string        `mapstructure:"static_path"`
	ReadLimit  int64         `mapstructure:"read_limit"`
	PingPeriod time.Duration `mapstructure:"ping_period"`
	Secret     string        `mapstructure:"secret"`

	// Room listing policy. Public rooms inactive longer than StaleWindow are
	// hidden; hot rooms are exempt.
	StaleWindow time.Duration `mapstructure:"stale_window"`
	// Most recent messages returned on join/view.
	MessageCap int `mapstructure:"message_cap"`

	BadgerPath string `mapstructure:"badger_path"`

	// PushEndpoint + PushKey configure the FCM-style gateway. With an empty
	// key the server falls back to the console gateway.
	PushEndpoint string `mapstructure:"push_endpoint"`
	PushKey      string `mapstructure:"push_key"`

	// What to do when a collaborator (store, push gateway) fails:
	// "log", "surface" or "retry".
	OnCollaboratorFailure string `mapstructure:"on_collaborator_failure"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	fileName := fmt.Sprintf("config/config.%s.yaml", env)

	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetDefault("mode", "release")
	v.SetDefault("port", 8080)
	v.SetDefault("static_path", "./web")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("secret", "bubble-dev-secret")
	v.SetDefault("stale_window", "72h")
	v.SetDefault("message_cap", 100)
	v.SetDefault("badger_path", "./data/bubble")
	v.SetDefault("push_endpoint", "https://fcm.googleapis.com/fcm/send")
	v.SetDefault("on_collaborator_failure", "log")

	if err := v.ReadInConfig(); err != nil {
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}
