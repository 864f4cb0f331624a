package config

type LogConfig struct {
	Level      string `yaml:"level"`  // debug, info, warn, error
	Format     string `yaml:"format"` // json, console
	Output     string `yaml:"output"` // stdout, file, both
	FilePath   string `yaml:"file_path"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"` // days
}

func NewLogConfig() *LogConfig {
	cfg := &LogConfig{
		Level:      "info",
		Format:     "json",
		Output:     "stdout",
		FilePath:   "logs/arbfn.log",
		MaxSize:    100,
		MaxBackups: 5,
		MaxAge:     30,
	}
	cfg.applyEnv()
	return cfg
}

func (c *LogConfig) applyEnv() {
	envString("LOG_LEVEL", &c.Level)
	envString("LOG_FORMAT", &c.Format)
	envString("LOG_OUTPUT", &c.Output)
	envString("LOG_FILE", &c.FilePath)
}
