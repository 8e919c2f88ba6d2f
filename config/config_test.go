package config

import (
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	c := &Config{}
	if err := c.Validate(); err != nil {
		t.Fatalf("zero config must validate, err=%v", err)
	}

	var nilConfig *Config
	if err := nilConfig.Validate(); err == nil {
		t.Fatalf("nil config must not validate")
	}

	bad := &Config{PingInterval: -time.Second}
	if err := bad.Validate(); err == nil {
		t.Fatalf("negative PingInterval must not validate")
	}

	bad = &Config{MaxBurst: -1}
	if err := bad.Validate(); err == nil {
		t.Fatalf("negative MaxBurst must not validate")
	}
}

func TestResolvedDefaults(t *testing.T) {
	c := &Config{}

	if got := c.ResolvedPingInterval(); got != PingInterval {
		t.Errorf("ResolvedPingInterval %v, want %v", got, PingInterval)
	}
	if got := c.ResolvedHeartbeatTimeout(); got != HeartbeatTimeout {
		t.Errorf("ResolvedHeartbeatTimeout %v, want %v", got, HeartbeatTimeout)
	}
	if got := c.ResolvedHandshakeTimeout(); got != HandshakeTimeout {
		t.Errorf("ResolvedHandshakeTimeout %v, want %v", got, HandshakeTimeout)
	}
	if got := c.ResolvedMaxBurst(); got != MaxBurst {
		t.Errorf("ResolvedMaxBurst %d, want %d", got, MaxBurst)
	}

	c = &Config{
		PingInterval: 50 * time.Millisecond,
		MaxBurst:     3,
	}
	if got := c.ResolvedPingInterval(); got != 50*time.Millisecond {
		t.Errorf("ResolvedPingInterval %v, want 50ms", got)
	}
	if got := c.ResolvedMaxBurst(); got != 3 {
		t.Errorf("ResolvedMaxBurst %d, want 3", got)
	}
}

func TestTimingRelations(t *testing.T) {
	if HeartbeatTimeout != 2*PingInterval {
		t.Errorf("HeartbeatTimeout %v, want twice the ping interval", HeartbeatTimeout)
	}
	if HandshakeTimeout != 5*PingInterval {
		t.Errorf("HandshakeTimeout %v, want five ping intervals", HandshakeTimeout)
	}
}
