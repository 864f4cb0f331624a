package config

import "time"

type JwtConfig struct {
	Secret            string        `yaml:"secret"`
	TTL               time.Duration `yaml:"ttl"`
	AdminUser         string        `yaml:"admin_user"`
	AdminPasswordHash string        `yaml:"admin_password_hash"`
}

func NewJwtConfig() *JwtConfig {
	cfg := &JwtConfig{
		TTL:       time.Hour,
		AdminUser: "admin",
	}
	cfg.applyEnv()
	return cfg
}

func (c *JwtConfig) applyEnv() {
	envString("JWT_SECRET", &c.Secret)
	envSeconds("JWT_TTL_SEC", &c.TTL)
	envString("ADMIN_USER", &c.AdminUser)
	envString("ADMIN_PASSWORD_HASH", &c.AdminPasswordHash)
}
