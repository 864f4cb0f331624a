package config

import "time"

const (
	BarrierNone  = "none"
	BarrierLocal = "local"
	BarrierRedis = "redis"
)

// BarrierConfig describes the exit rendezvous of the master.
type BarrierConfig struct {
	Kind         string        `yaml:"kind"`
	Name         string        `yaml:"name"`
	Participants int           `yaml:"participants"`
	Timeout      time.Duration `yaml:"timeout"`
}

func NewBarrierConfig() *BarrierConfig {
	cfg := &BarrierConfig{
		Kind:         BarrierNone,
		Name:         "arbfn",
		Participants: 1,
		Timeout:      30 * time.Second,
	}
	cfg.applyEnv()
	return cfg
}

func (c *BarrierConfig) applyEnv() {
	envString("ARBFN_BARRIER", &c.Kind)
	envString("ARBFN_BARRIER_NAME", &c.Name)
	envInt("ARBFN_BARRIER_PARTICIPANTS", &c.Participants)
	envSeconds("ARBFN_BARRIER_TIMEOUT_SEC", &c.Timeout)
}
