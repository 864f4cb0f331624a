package config

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"gitlab.com/arbfn-2025.net/internal/core/services/dispatch"
)

type AppConfig struct {
	DebugMode      bool             `yaml:"debug"`
	MasterSvcCfg   *MasterSvcCfg    `yaml:"master"`
	Transport      *TransportConfig `yaml:"transport"`
	Barrier        *BarrierConfig   `yaml:"barrier"`
	RedisConfig    *RedisConfig     `yaml:"redis"`
	PostgresConfig *PostgresConfig  `yaml:"postgres"`
	HTTPConfig     *HTTPConfig      `yaml:"http"`
	JwtConfig      *JwtConfig       `yaml:"jwt"`
	LogConfig      *LogConfig       `yaml:"log"`
}

// NewSystemConfig builds the configuration from defaults and environment variables only.
func NewSystemConfig() *AppConfig {
	cfg := &AppConfig{
		MasterSvcCfg:   NewMasterSvcCfg(),
		Transport:      NewTransportConfig(),
		Barrier:        NewBarrierConfig(),
		RedisConfig:    NewRedisConfig(),
		PostgresConfig: NewPostgresConfig(),
		HTTPConfig:     NewHTTPConfig(),
		JwtConfig:      NewJwtConfig(),
		LogConfig:      NewLogConfig(),
	}
	envBool("DEBUG_MODE", &cfg.DebugMode)
	return cfg
}

// Load reads an optional YAML file on top of the defaults; environment
// variables take precedence over both.
func Load(path string) (*AppConfig, error) {
	cfg := NewSystemConfig()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
		cfg.applyEnv()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) applyEnv() {
	envBool("DEBUG_MODE", &c.DebugMode)
	c.MasterSvcCfg.applyEnv()
	c.Transport.applyEnv()
	c.Barrier.applyEnv()
	c.RedisConfig.applyEnv()
	c.PostgresConfig.applyEnv()
	c.HTTPConfig.applyEnv()
	c.JwtConfig.applyEnv()
	c.LogConfig.applyEnv()
}

// Validate rejects unknown enum values and inconsistent settings.
func (c *AppConfig) Validate() error {
	m := c.MasterSvcCfg
	if !m.Policy.Valid() {
		return fmt.Errorf("master.policy: unknown policy %q", m.Policy)
	}
	if !m.Mode.Valid() {
		return fmt.Errorf("master.mode: unknown dispatch mode %q", m.Mode)
	}
	if !m.Failure.Valid() {
		return fmt.Errorf("master.failure: unknown failure policy %q", m.Failure)
	}
	if _, err := dispatch.NewCorrection(m.Correction, m.K); err != nil {
		return fmt.Errorf("master.correction: %w", err)
	}
	if m.EventBuffer <= 0 {
		return fmt.Errorf("master.event_buffer must be positive, got %d", m.EventBuffer)
	}

	switch c.Barrier.Kind {
	case BarrierNone:
	case BarrierLocal:
		// workers of the CLI run in other processes and cannot reach an in-process barrier
		if c.Barrier.Participants != 1 {
			return fmt.Errorf("barrier.kind local admits only the master, got %d participants; use redis", c.Barrier.Participants)
		}
	case BarrierRedis:
		if !c.RedisConfig.Enabled {
			return fmt.Errorf("barrier.kind redis requires redis.enabled")
		}
	default:
		return fmt.Errorf("barrier.kind: unknown barrier %q", c.Barrier.Kind)
	}
	if c.Barrier.Participants < 1 {
		return fmt.Errorf("barrier.participants must be at least 1, got %d", c.Barrier.Participants)
	}

	if c.HTTPConfig.Enabled && c.JwtConfig.Secret == "" {
		return fmt.Errorf("jwt.secret is required when the admin API is enabled")
	}
	return nil
}

// InitReader loads <environment>.env into the process environment.
// A missing file is not an error; an unreadable one is.
func InitReader(environment string) error {
	if environment == "" {
		return nil
	}
	file := environment + ".env"
	if _, err := os.Stat(file); os.IsNotExist(err) {
		return nil
	}
	if err := godotenv.Load(file); err != nil {
		return fmt.Errorf("error loading %s: %w", file, err)
	}
	return nil
}
