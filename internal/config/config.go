package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Joseda-hg/teamboard/internal/realtime"
)

const EnvPrefix = "TEAMBOARD"

type Config struct {
	APIURL              string         `json:"api_url" mapstructure:"api_url"`
	Token               string         `json:"token" mapstructure:"token"`
	UserID              int64          `json:"user_id,omitempty" mapstructure:"user_id"`
	PollIntervalSeconds int            `json:"poll_interval_seconds" mapstructure:"poll_interval_seconds"`
	Realtime            RealtimeConfig `json:"realtime" mapstructure:"realtime"`
	Server              ServerConfig   `json:"server" mapstructure:"server"`
}

type RealtimeConfig struct {
	Key          string `json:"key" mapstructure:"key"`
	Cluster      string `json:"cluster" mapstructure:"cluster"`
	Host         string `json:"host,omitempty" mapstructure:"host"`
	Port         int    `json:"port,omitempty" mapstructure:"port"`
	Scheme       string `json:"scheme,omitempty" mapstructure:"scheme"`
	AuthEndpoint string `json:"auth_endpoint,omitempty" mapstructure:"auth_endpoint"`
}

type ServerConfig struct {
	DBPath    string `json:"db_path" mapstructure:"db_path"`
	Port      int    `json:"port" mapstructure:"port"`
	AppKey    string `json:"app_key" mapstructure:"app_key"`
	AppSecret string `json:"app_secret" mapstructure:"app_secret"`
	JWTSecret string `json:"jwt_secret" mapstructure:"jwt_secret"`
	SeedPath  string `json:"seed_path,omitempty" mapstructure:"seed_path"`
}

func Default() Config {
	return Config{
		APIURL:              "http://localhost:8000/api",
		PollIntervalSeconds: 60,
		Realtime: RealtimeConfig{
			Cluster: realtime.DefaultCluster,
		},
		Server: ServerConfig{
			Port: 8000,
		},
	}
}

func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "teamboard", "config.json"), nil
}

func EnsureDir(path string) error {
	dir := filepath.Dir(path)
	return os.MkdirAll(dir, 0o755)
}

// Load reads path, when it exists, and overlays TEAMBOARD_* environment
// variables (TEAMBOARD_REALTIME_KEY for realtime.key and so on).
func Load(path string) (Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v, cfg)

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			v.SetConfigFile(path)
			v.SetConfigType("json")
			if err := v.ReadInConfig(); err != nil {
				return Config{}, fmt.Errorf("parse config: %w", err)
			}
		} else if !os.IsNotExist(err) {
			return Config{}, err
		}
	}

	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	return cfg, nil
}

// setDefaults registers every key so AutomaticEnv can see it during Unmarshal.
func setDefaults(v *viper.Viper, cfg Config) {
	v.SetDefault("api_url", cfg.APIURL)
	v.SetDefault("token", cfg.Token)
	v.SetDefault("user_id", cfg.UserID)
	v.SetDefault("poll_interval_seconds", cfg.PollIntervalSeconds)
	v.SetDefault("realtime.key", cfg.Realtime.Key)
	v.SetDefault("realtime.cluster", cfg.Realtime.Cluster)
	v.SetDefault("realtime.host", cfg.Realtime.Host)
	v.SetDefault("realtime.port", cfg.Realtime.Port)
	v.SetDefault("realtime.scheme", cfg.Realtime.Scheme)
	v.SetDefault("realtime.auth_endpoint", cfg.Realtime.AuthEndpoint)
	v.SetDefault("server.db_path", cfg.Server.DBPath)
	v.SetDefault("server.port", cfg.Server.Port)
	v.SetDefault("server.app_key", cfg.Server.AppKey)
	v.SetDefault("server.app_secret", cfg.Server.AppSecret)
	v.SetDefault("server.jwt_secret", cfg.Server.JWTSecret)
	v.SetDefault("server.seed_path", cfg.Server.SeedPath)
}

func Save(path string, cfg Config) error {
	if err := EnsureDir(path); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0o600)
}

func (c Config) PollInterval() time.Duration {
	if c.PollIntervalSeconds <= 0 {
		return 60 * time.Second
	}
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// AuthEndpoint defaults to the API's broadcasting auth route.
func (c Config) AuthEndpoint() string {
	if c.Realtime.AuthEndpoint != "" {
		return c.Realtime.AuthEndpoint
	}
	return strings.TrimRight(c.APIURL, "/") + "/broadcasting/auth"
}

func (c Config) RealtimeSettings() realtime.Settings {
	s := realtime.DefaultSettings()
	s.Key = c.Realtime.Key
	if c.Realtime.Cluster != "" {
		s.Cluster = c.Realtime.Cluster
	}
	s.Host = c.Realtime.Host
	s.Port = c.Realtime.Port
	s.Scheme = c.Realtime.Scheme
	s.AuthEndpoint = c.AuthEndpoint()
	s.Token = c.Token
	return s
}
