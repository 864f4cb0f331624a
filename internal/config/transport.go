package config

import "time"

type TransportConfig struct {
	Listen           string        `yaml:"listen"`
	Partition        uint32        `yaml:"partition"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
}

func NewTransportConfig() *TransportConfig {
	cfg := &TransportConfig{
		Listen:           ":9000",
		Partition:        56789,
		HandshakeTimeout: 30 * time.Second,
	}
	cfg.applyEnv()
	return cfg
}

func (c *TransportConfig) applyEnv() {
	envString("ARBFN_LISTEN", &c.Listen)
	partition := int(c.Partition)
	envInt("ARBFN_PARTITION", &partition)
	if partition >= 0 {
		c.Partition = uint32(partition)
	}
	envSeconds("ARBFN_HANDSHAKE_TIMEOUT_SEC", &c.HandshakeTimeout)
}
