// Package config loads the tunable knobs of the voice client: jitter
// buffer bounds, reconnect backoff, heartbeat tolerance and codec
// settings. Values come from defaults, overridable by a config file
// and by VOICE_-prefixed environment variables, in that order.
package config

import (
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config holds every runtime-tunable parameter of a voice session.
type Config struct {
	// Jitter buffer.
	JitterMinBufferMs    int `mapstructure:"jitter_min_buffer_ms"`
	JitterMaxBufferMs    int `mapstructure:"jitter_max_buffer_ms"`
	JitterMaxMissingRuns int `mapstructure:"jitter_max_missing_frames"`

	// Reconnect backoff.
	BackoffBaseMs  int `mapstructure:"backoff_base_ms"`
	BackoffCapMs   int `mapstructure:"backoff_cap_ms"`
	BackoffMaxTrys int `mapstructure:"backoff_max_attempts"`

	// Heartbeat supervision.
	HeartbeatToleranceFactor float64 `mapstructure:"heartbeat_tolerance_factor"`
	HeartbeatMissThreshold   int     `mapstructure:"heartbeat_miss_threshold"`

	// Audio.
	OpusBitrate    int  `mapstructure:"opus_bitrate"`
	DenoiseEnabled bool `mapstructure:"denoise_enabled"`
	DenoiseLevel   int  `mapstructure:"denoise_level"`
}

// Default returns the configuration matching the voice protocol's
// stated defaults.
func Default() Config {
	return Config{
		JitterMinBufferMs:    60,
		JitterMaxBufferMs:    200,
		JitterMaxMissingRuns: 5,

		BackoffBaseMs:  1000,
		BackoffCapMs:   16000,
		BackoffMaxTrys: 5,

		HeartbeatToleranceFactor: 1.5,
		HeartbeatMissThreshold:   2,

		OpusBitrate:    48000,
		DenoiseEnabled: true,
		DenoiseLevel:   80,
	}
}

// Load reads configuration from an optional file at path (ignored if
// empty or missing) layered under environment overrides and the
// compiled-in defaults.
func Load(path string) (Config, error) {
	v := viper.New()
	cfg := Default()

	v.SetEnvPrefix("VOICE")
	v.AutomaticEnv()

	setDefaults(v, cfg)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !os.IsNotExist(err) {
				return Config{}, err
			}
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("jitter_min_buffer_ms", cfg.JitterMinBufferMs)
	v.SetDefault("jitter_max_buffer_ms", cfg.JitterMaxBufferMs)
	v.SetDefault("jitter_max_missing_frames", cfg.JitterMaxMissingRuns)
	v.SetDefault("backoff_base_ms", cfg.BackoffBaseMs)
	v.SetDefault("backoff_cap_ms", cfg.BackoffCapMs)
	v.SetDefault("backoff_max_attempts", cfg.BackoffMaxTrys)
	v.SetDefault("heartbeat_tolerance_factor", cfg.HeartbeatToleranceFactor)
	v.SetDefault("heartbeat_miss_threshold", cfg.HeartbeatMissThreshold)
	v.SetDefault("opus_bitrate", cfg.OpusBitrate)
	v.SetDefault("denoise_enabled", cfg.DenoiseEnabled)
	v.SetDefault("denoise_level", cfg.DenoiseLevel)
}

// BackoffBase returns the base backoff duration as a time.Duration.
func (c Config) BackoffBase() time.Duration { return time.Duration(c.BackoffBaseMs) * time.Millisecond }

// BackoffCap returns the backoff ceiling as a time.Duration.
func (c Config) BackoffCap() time.Duration { return time.Duration(c.BackoffCapMs) * time.Millisecond }
