package config

import "testing"

func TestWithDefaults(t *testing.T) {
	cfg := Config{}.WithDefaults()
	if cfg.DefaultSendTimeout != DefaultSendTimeout {
		t.Errorf("DefaultSendTimeout = %v, want %v", cfg.DefaultSendTimeout, DefaultSendTimeout)
	}
	if cfg.WorkerContexts != 4 {
		t.Errorf("WorkerContexts = %d, want 4", cfg.WorkerContexts)
	}
	if cfg.WorkerQueueSize != 256 {
		t.Errorf("WorkerQueueSize = %d, want 256", cfg.WorkerQueueSize)
	}
}

func TestWithDefaultsPreservesExplicitValues(t *testing.T) {
	cfg := Config{DefaultSendTimeout: 5, WorkerContexts: 1, WorkerQueueSize: 8}.WithDefaults()
	if cfg.DefaultSendTimeout != 5 || cfg.WorkerContexts != 1 || cfg.WorkerQueueSize != 8 {
		t.Errorf("WithDefaults overwrote explicit values: %+v", cfg)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"zero value ok", Config{}, false},
		{"negative timeout", Config{DefaultSendTimeout: -1}, true},
		{"bad port", Config{MetricsPort: 70000}, true},
		{"negative workers", Config{WorkerContexts: -1}, true},
		{"negative queue", Config{WorkerQueueSize: -1}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
