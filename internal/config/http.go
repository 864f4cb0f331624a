package config

import "time"

type HTTPConfig struct {
	Enabled         bool          `yaml:"enabled"`
	Address         string        `yaml:"address"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

func NewHTTPConfig() *HTTPConfig {
	cfg := &HTTPConfig{
		Enabled:         false,
		Address:         ":8082",
		ShutdownTimeout: 5 * time.Second,
	}
	cfg.applyEnv()
	return cfg
}

func (c *HTTPConfig) applyEnv() {
	envBool("HTTP_ENABLED", &c.Enabled)
	envString("HTTP_ADDRESS", &c.Address)
	envSeconds("HTTP_SHUTDOWN_TIMEOUT_SEC", &c.ShutdownTimeout)
}
