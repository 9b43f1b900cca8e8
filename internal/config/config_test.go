package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		env     map[string]string
		check   func(t *testing.T, cfg *Config)
		wantErr bool
	}{
		{
			name: "should fall back to defaults when no file exists",
			check: func(t *testing.T, cfg *Config) {
				if cfg.FeedPageSize != 6 {
					t.Fatalf("expected 6, got %d", cfg.FeedPageSize)
				}
				if cfg.FeedTimeout != 8*time.Second {
					t.Fatalf("expected 8s, got %v", cfg.FeedTimeout)
				}
				if cfg.MembershipBypass {
					t.Fatal("expected bypass to default to false")
				}
			},
		},
		{
			name: "should read values from the env file",
			file: "FEED_PAGE_SIZE=12\nMEMBERSHIP_BYPASS=true\nPROGRESS_DEBOUNCE=250ms\n",
			check: func(t *testing.T, cfg *Config) {
				if cfg.FeedPageSize != 12 {
					t.Fatalf("expected 12, got %d", cfg.FeedPageSize)
				}
				if !cfg.MembershipBypass {
					t.Fatal("expected bypass to be true")
				}
				if cfg.ProgressDebounce != 250*time.Millisecond {
					t.Fatalf("expected 250ms, got %v", cfg.ProgressDebounce)
				}
			},
		},
		{
			name: "should prefer the environment over the file",
			file: "FEED_MAX_ATTEMPTS=5\n",
			env:  map[string]string{"FEED_MAX_ATTEMPTS": "7"},
			check: func(t *testing.T, cfg *Config) {
				if cfg.FeedMaxAttempts != 7 {
					t.Fatalf("expected 7, got %d", cfg.FeedMaxAttempts)
				}
			},
		},
		{
			name:    "should reject an unknown backend",
			env:     map[string]string{"COLLECTION_BACKEND": "mongo"},
			wantErr: true,
		},
		{
			name:    "should require a dsn for postgres",
			env:     map[string]string{"COLLECTION_BACKEND": "postgres"},
			wantErr: true,
		},
		{
			name:    "should reject an unknown environment",
			env:     map[string]string{"APP_ENV": "staging"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), ".env")
			if tt.file != "" {
				if err := os.WriteFile(path, []byte(tt.file), 0o600); err != nil {
					t.Fatal(err)
				}
			}

			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			cfg, err := Load(path)

			if (err != nil) != tt.wantErr {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}

			if tt.check != nil {
				tt.check(t, cfg)
			}
		})
	}
}
