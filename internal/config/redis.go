package config

type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	DB       int    `yaml:"db"`
	Url      string `yaml:"url"`
	Password string `yaml:"password"`
}

func NewRedisConfig() *RedisConfig {
	cfg := &RedisConfig{
		DB:       0,
		Url:      "localhost:6379",
		Password: "",
	}
	cfg.applyEnv()
	return cfg
}

func (c *RedisConfig) applyEnv() {
	envBool("REDIS_ENABLED", &c.Enabled)
	envInt("REDIS_DB", &c.DB)
	envString("REDIS_URL", &c.Url)
	envString("REDIS_PASSWORD", &c.Password)
}
