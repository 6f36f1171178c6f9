package config

import (
	"os"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantErr bool
		check   func(*testing.T, *Config)
	}{
		{
			name: "default values",
			env:  map[string]string{},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "8080" {
					t.Errorf("expected port 8080, got %s", cfg.Port)
				}
				if cfg.LogLevel != "info" {
					t.Errorf("expected log level info, got %s", cfg.LogLevel)
				}
				if cfg.ReservationTimeout != 30*time.Second {
					t.Errorf("expected ReservationTimeout 30s, got %v", cfg.ReservationTimeout)
				}
				if cfg.DispatchInterval != 2*time.Second {
					t.Errorf("expected DispatchInterval 2s, got %v", cfg.DispatchInterval)
				}
				if cfg.HistoryCapacity != 10000 {
					t.Errorf("expected HistoryCapacity 10000, got %d", cfg.HistoryCapacity)
				}
			},
		},
		{
			name: "custom values",
			env: map[string]string{
				"PORT":                     "9000",
				"LOG_LEVEL":                "debug",
				"RESERVATION_TIMEOUT_SECS": "15",
				"DISPATCH_INTERVAL_SECS":   "1",
				"SCHEDULER_INTERVAL_SECS":  "5",
				"ALLOWED_ORIGINS":          "http://example.com,http://test.com",
			},
			check: func(t *testing.T, cfg *Config) {
				if cfg.Port != "9000" {
					t.Errorf("expected port 9000, got %s", cfg.Port)
				}
				if cfg.LogLevel != "debug" {
					t.Errorf("expected log level debug, got %s", cfg.LogLevel)
				}
				if cfg.ReservationTimeout != 15*time.Second {
					t.Errorf("expected ReservationTimeout 15s, got %v", cfg.ReservationTimeout)
				}
				if cfg.DispatchInterval != 1*time.Second {
					t.Errorf("expected DispatchInterval 1s, got %v", cfg.DispatchInterval)
				}
				if cfg.SchedulerInterval != 5*time.Second {
					t.Errorf("expected SchedulerInterval 5s, got %v", cfg.SchedulerInterval)
				}
				if len(cfg.AllowedOrigins) != 2 {
					t.Errorf("expected 2 allowed origins, got %d", len(cfg.AllowedOrigins))
				}
			},
		},
		{
			name: "invalid RESERVATION_TIMEOUT_SECS",
			env: map[string]string{
				"RESERVATION_TIMEOUT_SECS": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid DISPATCH_INTERVAL_SECS",
			env: map[string]string{
				"DISPATCH_INTERVAL_SECS": "invalid",
			},
			wantErr: true,
		},
		{
			name: "invalid HISTORY_CAPACITY",
			env: map[string]string{
				"HISTORY_CAPACITY": "invalid",
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			// Clear environment
			os.Clearenv()

			// Set test environment variables
			for k, v := range tt.env {
				os.Setenv(k, v)
			}

			// Load config
			cfg, err := Load()

			// Check error
			if tt.wantErr {
				if err == nil {
					t.Errorf("expected error, got nil")
				}
				return
			}

			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			// Run custom checks
			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}

func TestOriginTrimming(t *testing.T) {
	os.Clearenv()
	os.Setenv("ALLOWED_ORIGINS", " http://a.example , http://b.example ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("failed to load config: %v", err)
	}

	if cfg.AllowedOrigins[0] != "http://a.example" {
		t.Errorf("expected trimmed origin, got %q", cfg.AllowedOrigins[0])
	}
	if cfg.AllowedOrigins[1] != "http://b.example" {
		t.Errorf("expected trimmed origin, got %q", cfg.AllowedOrigins[1])
	}
}
