package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
)

type keySpec struct {
	key     string
	typ     keyType
	env     string
	secret  bool
	apply   func(cfg *Config, v any)
	extract func(cfg Config) any
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "CAREERPATH_SERVER_PORT",
		apply:   func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
		extract: func(cfg Config) any { return cfg.Server.Port },
	},
	{
		key: "server.api_token", typ: kString, env: "CAREERPATH_API_TOKEN",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Server.APIToken = v.(string) },
		extract: func(cfg Config) any { return cfg.Server.APIToken },
	},
	{
		key: "storage.backend", typ: kString, env: "CAREERPATH_STORAGE_BACKEND",
		apply:   func(cfg *Config, v any) { cfg.Storage.Backend = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.Backend },
	},
	{
		key: "storage.data_dir", typ: kString, env: "CAREERPATH_STORAGE_DATA_DIR",
		apply:   func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.DataDir },
	},
	{
		key: "storage.key_prefix", typ: kString, env: "CAREERPATH_STORAGE_KEY_PREFIX",
		apply:   func(cfg *Config, v any) { cfg.Storage.KeyPrefix = v.(string) },
		extract: func(cfg Config) any { return cfg.Storage.KeyPrefix },
	},
	{
		key: "redis.addr", typ: kString, env: "CAREERPATH_REDIS_ADDR",
		apply:   func(cfg *Config, v any) { cfg.Redis.Addr = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Addr },
	},
	{
		key: "redis.password", typ: kString, env: "CAREERPATH_REDIS_PASSWORD",
		secret:  true,
		apply:   func(cfg *Config, v any) { cfg.Redis.Password = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Password },
	},
	{
		key: "redis.db", typ: kInt, env: "CAREERPATH_REDIS_DB",
		apply:   func(cfg *Config, v any) { cfg.Redis.DB = v.(int) },
		extract: func(cfg Config) any { return cfg.Redis.DB },
	},
	{
		key: "redis.timeout", typ: kString, env: "CAREERPATH_REDIS_TIMEOUT",
		apply:   func(cfg *Config, v any) { cfg.Redis.Timeout = v.(string) },
		extract: func(cfg Config) any { return cfg.Redis.Timeout },
	},
	{
		key: "log.level", typ: kString, env: "CAREERPATH_LOG_LEVEL",
		apply:   func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
		extract: func(cfg Config) any { return cfg.Log.Level },
	},
	{
		key: "profile.max_weak_skills", typ: kInt, env: "CAREERPATH_PROFILE_MAX_WEAK_SKILLS",
		apply:   func(cfg *Config, v any) { cfg.Profile.MaxWeakSkills = v.(int) },
		extract: func(cfg Config) any { return cfg.Profile.MaxWeakSkills },
	},
	{
		key: "profile.max_activity", typ: kInt, env: "CAREERPATH_PROFILE_MAX_ACTIVITY",
		apply:   func(cfg *Config, v any) { cfg.Profile.MaxActivity = v.(int) },
		extract: func(cfg Config) any { return cfg.Profile.MaxActivity },
	},
	{
		key: "worker.poll_interval", typ: kString, env: "CAREERPATH_WORKER_POLL_INTERVAL",
		apply:   func(cfg *Config, v any) { cfg.Worker.PollInterval = v.(string) },
		extract: func(cfg Config) any { return cfg.Worker.PollInterval },
	},
}

func applyBackend(cfg *Config, b ConfigBackend) error {
	for _, s := range specs {
		if s.secret {
			continue
		}
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				slog.Warn("could not parse integer from env var, keeping previous value", "env", s.env, "value", raw, "error", err)
			}
		}
	}
}
