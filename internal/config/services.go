package config

import (
	"time"

	"gitlab.com/arbfn-2025.net/internal/domain"
)

type MasterSvcCfg struct {
	Policy        domain.Policy        `yaml:"policy"`
	Correction    string               `yaml:"correction"`
	K             float64              `yaml:"k"`
	Mode          domain.DispatchMode  `yaml:"mode"`
	Failure       domain.FailurePolicy `yaml:"failure"`
	StatsInterval time.Duration        `yaml:"stats_interval"`
	EventBuffer   int                  `yaml:"event_buffer"`
}

func NewMasterSvcCfg() *MasterSvcCfg {
	cfg := &MasterSvcCfg{
		Policy:        domain.PolicyIdentified,
		Correction:    "damping",
		K:             0.99,
		Mode:          domain.ModeImmediate,
		Failure:       domain.FailureIsolate,
		StatsInterval: 60 * time.Second,
		EventBuffer:   4096,
	}
	cfg.applyEnv()
	return cfg
}

func (c *MasterSvcCfg) applyEnv() {
	policy := string(c.Policy)
	envString("ARBFN_POLICY", &policy)
	c.Policy = domain.Policy(policy)

	envString("ARBFN_CORRECTION", &c.Correction)
	envFloat("ARBFN_CORRECTION_K", &c.K)

	mode := string(c.Mode)
	envString("ARBFN_DISPATCH_MODE", &mode)
	c.Mode = domain.DispatchMode(mode)

	failure := string(c.Failure)
	envString("ARBFN_FAILURE_POLICY", &failure)
	c.Failure = domain.FailurePolicy(failure)

	envSeconds("ARBFN_STATS_INTERVAL_SEC", &c.StatsInterval)
	envInt("ARBFN_EVENT_BUFFER", &c.EventBuffer)
}
