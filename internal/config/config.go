package config

import (
	"fmt"
	"slices"
	"time"
)

type Config struct {
	Server  ServerConfig
	Storage StorageConfig
	Redis   RedisConfig
	Log     LogConfig
	Profile ProfileConfig
	Worker  WorkerConfig
}

type ServerConfig struct {
	Port     int
	APIToken string
}

// Storage backends for roadmap completion. Profile data and the job queue
// always live in SQLite.
const (
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type StorageConfig struct {
	Backend   string
	DataDir   string
	KeyPrefix string
}

type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Timeout  string
}

// TimeoutDuration parses Timeout. Load has already validated it.
func (c RedisConfig) TimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(c.Timeout)
	return d
}

type LogConfig struct {
	Level string
}

type ProfileConfig struct {
	MaxWeakSkills int
	MaxActivity   int
}

type WorkerConfig struct {
	PollInterval string
}

// PollDuration parses PollInterval. Load has already validated it.
func (c WorkerConfig) PollDuration() time.Duration {
	d, _ := time.ParseDuration(c.PollInterval)
	return d
}

func defaults() Config {
	return Config{
		Server: ServerConfig{
			Port: 4100,
		},
		Storage: StorageConfig{
			Backend:   BackendSQLite,
			DataDir:   defaultDataDir(),
			KeyPrefix: "vm",
		},
		Redis: RedisConfig{
			Addr:    "localhost:6379",
			Timeout: "2s",
		},
		Log: LogConfig{
			Level: "info",
		},
		Profile: ProfileConfig{
			MaxWeakSkills: 20,
			MaxActivity:   50,
		},
		Worker: WorkerConfig{
			PollInterval: "500ms",
		},
	}
}

// Load reads configuration from the config file at
// $XDG_CONFIG_HOME/careerpath/config.yaml, then applies CAREERPATH_*
// environment overrides. Secrets are only read from the environment.
func Load() (Config, error) {
	return loadWith(newPlatformBackend())
}

func loadWith(b ConfigBackend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}

	applyEnvOverrides(&cfg)

	if err := validate(cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func validate(cfg Config) error {
	backends := []string{BackendSQLite, BackendRedis, BackendMemory}
	if !slices.Contains(backends, cfg.Storage.Backend) {
		return fmt.Errorf("invalid storage.backend %q: expected one of %v", cfg.Storage.Backend, backends)
	}
	if cfg.Storage.KeyPrefix == "" {
		return fmt.Errorf("storage.key_prefix must not be empty")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return fmt.Errorf("invalid server.port %d", cfg.Server.Port)
	}
	if d, err := time.ParseDuration(cfg.Redis.Timeout); err != nil || d <= 0 {
		return fmt.Errorf("invalid redis.timeout %q", cfg.Redis.Timeout)
	}
	if d, err := time.ParseDuration(cfg.Worker.PollInterval); err != nil || d <= 0 {
		return fmt.Errorf("invalid worker.poll_interval %q", cfg.Worker.PollInterval)
	}
	return nil
}
