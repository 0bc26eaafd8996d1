package config

import (
	"testing"
	"time"
)

func baseConfig() *Config {
	return &Config{
		App:    AppConfig{Name: "pulsewire", Timezone: "America/New_York"},
		Server: ServerConfig{Addr: ":8080"},
		Export: ExportConfig{MaxDataPoints: 1000},
		Jobs: []JobConfig{
			{
				Name:       "morning-sms",
				SeriesKeys: []string{"SPX", "DJI"},
				Channel:    ChannelSMS,
				TrendDepth: 5,
			},
		},
	}
}

func TestValidateAcceptsBaseConfig(t *testing.T) {
	if err := baseConfig().Validate(); err != nil {
		t.Fatalf("base config should validate: %v", err)
	}
}

func TestValidateRejectsBadJob(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing name", func(c *Config) { c.Jobs[0].Name = "" }},
		{"no series keys", func(c *Config) { c.Jobs[0].SeriesKeys = nil }},
		{"bad channel", func(c *Config) { c.Jobs[0].Channel = "carrier-pigeon" }},
		{"bad weekday", func(c *Config) { c.Jobs[0].SpecialWeekday = "Funday" }},
		{"negative trend depth", func(c *Config) { c.Jobs[0].TrendDepth = -1 }},
		{"duplicate name", func(c *Config) { c.Jobs = append(c.Jobs, c.Jobs[0]) }},
	}

	for _, tc := range cases {
		cfg := baseConfig()
		tc.mutate(cfg)
		if err := cfg.Validate(); err == nil {
			t.Fatalf("%s: expected validation error", tc.name)
		}
	}
}

func TestValidateRejectsBadTimezone(t *testing.T) {
	cfg := baseConfig()
	cfg.App.Timezone = "Mars/Olympus_Mons"
	if err := cfg.Validate(); err == nil {
		t.Fatal("unknown timezone should fail validation")
	}
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("load with defaults: %v", err)
	}
	if cfg.Server.Addr != ":8080" {
		t.Fatalf("unexpected default addr %q", cfg.Server.Addr)
	}
	if cfg.Cache.TTL != 6*time.Hour {
		t.Fatalf("unexpected default cache ttl %s", cfg.Cache.TTL)
	}
	if cfg.Trigger.Secret != "" {
		t.Fatal("trigger secret must default to empty (fail closed)")
	}
	if cfg.Location() == nil {
		t.Fatal("location should resolve")
	}
}
