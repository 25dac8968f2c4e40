package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/spf13/viper"

	"github.com/lucasjlepore/fit-heatmap/store"
)

const (
	configName = "heatmap"
	configType = "toml"
	envPrefix  = "HEATMAP"

	workersKey     = "workers"
	snapshotDirKey = "snapshot.dir"
	compressionKey = "snapshot.compression"
	logLevelKey    = "log.level"
	logFormatKey   = "log.format"
)

type config struct {
	Workers     int
	SnapshotDir string
	Compression store.CompressionTag
	LogLevel    slog.Level
	LogFormat   string
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetDefault(workersKey, 0)
	v.SetDefault(snapshotDirKey, ".")
	v.SetDefault(compressionKey, store.CompressionZstd.String())
	v.SetDefault(logLevelKey, "info")
	v.SetDefault(logFormatKey, "text")

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// loadConfig reads path when set, otherwise heatmap.toml from the working
// directory if one exists.
func loadConfig(v *viper.Viper, path string) (config, error) {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configName)
		v.SetConfigType(configType)
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	compression, err := store.ParseCompressionTag(v.GetString(compressionKey))
	if err != nil {
		return config{}, fmt.Errorf("parse %s: %w", compressionKey, err)
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(v.GetString(logLevelKey))); err != nil {
		return config{}, fmt.Errorf("parse %s: %w", logLevelKey, err)
	}

	format := strings.ToLower(v.GetString(logFormatKey))
	if format != "text" && format != "json" {
		return config{}, fmt.Errorf("unsupported %s %q (expected text|json)", logFormatKey, format)
	}

	return config{
		Workers:     v.GetInt(workersKey),
		SnapshotDir: v.GetString(snapshotDirKey),
		Compression: compression,
		LogLevel:    level,
		LogFormat:   format,
	}, nil
}

func newLogger(w io.Writer, cfg config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
