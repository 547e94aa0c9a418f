package app

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"parley/internal/domain"
	"parley/internal/protocol/codec"
	"parley/internal/replay"
	"parley/internal/store"
)

// Config holds runtime wiring options for building the app.
type Config struct {
	UserID    domain.UserID   `mapstructure:"user_id" yaml:"user_id"`
	Home      string          `mapstructure:"home" yaml:"home"`
	Relay     RelayConfig     `mapstructure:"relay" yaml:"relay"`
	Store     StoreConfig     `mapstructure:"store" yaml:"store"`
	Handshake HandshakeConfig `mapstructure:"handshake" yaml:"handshake"`
	Files     FilesConfig     `mapstructure:"files" yaml:"files"`
	Log       LogConfig       `mapstructure:"log" yaml:"log"`
}

// RelayConfig locates the relay server.
type RelayConfig struct {
	URL     string        `mapstructure:"url" yaml:"url"` // e.g. http://127.0.0.1:8080
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// StoreConfig selects the KV backend. Path is relative to Home unless absolute.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver"`
	Path   string `mapstructure:"path" yaml:"path"`
}

// HandshakeConfig tunes key exchange.
type HandshakeConfig struct {
	FreshnessWindow   time.Duration `mapstructure:"freshness_window" yaml:"freshness_window"`
	RequireSignatures bool          `mapstructure:"require_signatures" yaml:"require_signatures"`
	PendingTTL        time.Duration `mapstructure:"pending_ttl" yaml:"pending_ttl"`
}

// FilesConfig tunes file transfer.
type FilesConfig struct {
	ChunkSize int `mapstructure:"chunk_size" yaml:"chunk_size"`
}

// LogConfig configures the logger.
type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level"`
	Format string `mapstructure:"format" yaml:"format"`
}

const (
	// EnvPrefix prefixes environment overrides, e.g. PARLEY_RELAY_URL.
	EnvPrefix = "PARLEY"

	configName = "config"
	configType = "yaml"
)

// DefaultHome returns $HOME/.parley, or .parley when the home directory is
// unknown.
func DefaultHome() string {
	dir, err := os.UserHomeDir()
	if err != nil {
		return ".parley"
	}
	return filepath.Join(dir, ".parley")
}

// DefaultConfig returns the configuration used when nothing is set.
func DefaultConfig() Config {
	return Config{
		Home: DefaultHome(),
		Relay: RelayConfig{
			URL:     "http://127.0.0.1:8080",
			Timeout: 15 * time.Second,
		},
		Store: StoreConfig{
			Driver: store.DriverBolt,
			Path:   "parley.db",
		},
		Handshake: HandshakeConfig{
			FreshnessWindow:   replay.DefaultWindow,
			RequireSignatures: true,
			PendingTTL:        2 * time.Minute,
		},
		Files: FilesConfig{ChunkSize: codec.DefaultChunkSize},
		Log:   LogConfig{Level: "info", Format: "console"},
	}
}

func setDefaults(v *viper.Viper) {
	d := DefaultConfig()
	v.SetDefault("user_id", "")
	v.SetDefault("home", d.Home)

	v.SetDefault("relay.url", d.Relay.URL)
	v.SetDefault("relay.timeout", d.Relay.Timeout)

	v.SetDefault("store.driver", d.Store.Driver)
	v.SetDefault("store.path", d.Store.Path)

	v.SetDefault("handshake.freshness_window", d.Handshake.FreshnessWindow)
	v.SetDefault("handshake.require_signatures", d.Handshake.RequireSignatures)
	v.SetDefault("handshake.pending_ttl", d.Handshake.PendingTTL)

	v.SetDefault("files.chunk_size", d.Files.ChunkSize)

	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// NewViper returns a viper instance with defaults and PARLEY_ environment
// overrides. Callers may bind flags to it before LoadConfig.
func NewViper() *viper.Viper {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return v
}

// LoadConfig reads file into v, or config.yaml under the configured home when
// file is empty. A missing config file is not an error.
func LoadConfig(v *viper.Viper, file string) (Config, error) {
	if file != "" {
		v.SetConfigFile(file)
	} else {
		v.AddConfigPath(v.GetString("home"))
		v.SetConfigName(configName)
		v.SetConfigType(configType)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		switch {
		case errors.As(err, &notFound):
		case file != "" && errors.Is(err, os.ErrNotExist):
		default:
			return Config{}, oops.Wrapf(err, "read config")
		}
	}

	cfg := Config{
		UserID: domain.UserID(v.GetString("user_id")),
		Home:   v.GetString("home"),
		Relay: RelayConfig{
			URL:     v.GetString("relay.url"),
			Timeout: v.GetDuration("relay.timeout"),
		},
		Store: StoreConfig{
			Driver: v.GetString("store.driver"),
			Path:   v.GetString("store.path"),
		},
		Handshake: HandshakeConfig{
			FreshnessWindow:   v.GetDuration("handshake.freshness_window"),
			RequireSignatures: v.GetBool("handshake.require_signatures"),
			PendingTTL:        v.GetDuration("handshake.pending_ttl"),
		},
		Files: FilesConfig{ChunkSize: v.GetInt("files.chunk_size")},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}
	return cfg, cfg.Validate()
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch strings.ToLower(c.Store.Driver) {
	case store.DriverMemory, store.DriverFile, store.DriverBolt, store.DriverSQLite:
	default:
		return oops.Errorf("store.driver %q: want memory, file, bolt or sqlite", c.Store.Driver)
	}
	if c.Home == "" && c.Store.Driver != store.DriverMemory {
		return oops.Errorf("home is required for store driver %q", c.Store.Driver)
	}
	if c.Handshake.FreshnessWindow < 0 {
		return oops.Errorf("handshake.freshness_window must not be negative")
	}
	if c.Handshake.PendingTTL < 0 {
		return oops.Errorf("handshake.pending_ttl must not be negative")
	}
	if c.Files.ChunkSize < 0 {
		return oops.Errorf("files.chunk_size must not be negative")
	}
	if c.Relay.Timeout < 0 {
		return oops.Errorf("relay.timeout must not be negative")
	}
	return nil
}

// StorePath resolves Store.Path against Home.
func (c Config) StorePath() string {
	if c.Store.Path == "" || filepath.IsAbs(c.Store.Path) {
		return c.Store.Path
	}
	return filepath.Join(c.Home, c.Store.Path)
}

// YAML renders the effective configuration.
func (c Config) YAML() ([]byte, error) {
	b, err := yaml.Marshal(c)
	if err != nil {
		return nil, oops.Wrapf(err, "encode config")
	}
	return b, nil
}

// WriteFile saves c as YAML at path, creating parent directories.
func (c Config) WriteFile(path string) error {
	b, err := c.YAML()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return oops.Wrapf(err, "create config dir")
	}
	if err := os.WriteFile(path, b, 0o600); err != nil {
		return oops.Wrapf(err, "write config")
	}
	return nil
}

// ConfigFile is the default config path under home.
func ConfigFile(home string) string {
	return filepath.Join(home, configName+"."+configType)
}
