// Package config loads settings for the snapshots command and builds the
// session configuration handed to repository listeners.
package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/git-pkgs/snapshots/internal/core"
	"github.com/git-pkgs/snapshots/purge"
	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"
)

// EnvPrefix is prepended to setting names for environment variable lookup,
// e.g. SNAPSHOTS_REMOTE.
const EnvPrefix = "SNAPSHOTS"

// DefaultRemote is the remote repository used when none is configured.
const DefaultRemote = "https://repo1.maven.org/maven2"

// Settings holds the resolved configuration.
type Settings struct {
	LocalRepository string        `mapstructure:"local_repository"`
	Remote          string        `mapstructure:"remote"`
	Username        string        `mapstructure:"username"`
	Password        string        `mapstructure:"password"`
	UserAgent       string        `mapstructure:"user_agent"`
	Excludes        []string      `mapstructure:"excludes"`
	Timeout         time.Duration `mapstructure:"timeout"`
	MaxRetries      int           `mapstructure:"max_retries"`
	Log             LogSettings   `mapstructure:"log"`
}

// LogSettings configures logging output.
type LogSettings struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
	File   string `mapstructure:"file"`
}

// Load reads settings from path (optional), the environment and defaults.
func Load(path string) (Settings, error) {
	v := viper.New()
	v.SetDefault("local_repository", defaultLocalRepository())
	v.SetDefault("remote", DefaultRemote)
	v.SetDefault("username", "")
	v.SetDefault("password", "")
	v.SetDefault("user_agent", "")
	v.SetDefault("excludes", []string{})
	v.SetDefault("timeout", "5m")
	v.SetDefault("max_retries", 3)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)
	v.SetDefault("log.file", "")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Settings{}, fmt.Errorf("read config: %w", err)
		}
	}

	var s Settings
	if err := Decode(v.AllSettings(), &s); err != nil {
		return Settings{}, fmt.Errorf("decode config: %w", err)
	}
	return s, nil
}

// Decode decodes a free-form settings map into out. Keys are matched
// ignoring case, underscores and dashes; comma-separated strings decode into
// slices and duration strings into time.Duration.
func Decode(input map[string]any, out any) error {
	if len(input) == 0 {
		return nil
	}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "mapstructure",
		Result:           out,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
		MatchName: func(mapKey, fieldName string) bool {
			return normalizeKey(mapKey) == normalizeKey(fieldName)
		},
	})
	if err != nil {
		return err
	}
	return decoder.Decode(input)
}

// Session returns the session configuration for repository listeners.
func (s Settings) Session() core.Config {
	cfg := core.Config{}
	var rules []string
	for _, e := range s.Excludes {
		if e = strings.TrimSpace(e); e != "" {
			rules = append(rules, e)
		}
	}
	if len(rules) > 0 {
		cfg[purge.PropertyExcludes] = strings.Join(rules, ",")
	}
	return cfg
}

func defaultLocalRepository() string {
	home, err := userHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".m2", "repository")
	}
	return filepath.Join(home, ".m2", "repository")
}

func normalizeKey(value string) string {
	value = strings.ToLower(value)
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}
