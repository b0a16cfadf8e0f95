package config

import (
	"testing"
	"time"

	"github.com/slighter12/go-lib/database/postgres"
)

func TestCanonicalizeEnvKey_UsesExistingCamelCaseKeys(t *testing.T) {
	existing := map[string]any{
		"postgres": map[string]any{
			"sslMode": "disable",
			"master": map[string]any{
				"userName": "user",
			},
		},
		"pubsub": map[string]any{
			"topicId": "",
		},
		"secretKey": map[string]any{
			"access": "",
		},
	}

	tests := []struct {
		envKey string
		want   string
	}{
		{envKey: "POSTGRES_SSLMODE", want: "postgres.sslMode"},
		{envKey: "POSTGRES_MASTER_USERNAME", want: "postgres.master.userName"},
		{envKey: "PUBSUB_TOPICID", want: "pubsub.topicId"},
		{envKey: "SECRETKEY_ACCESS", want: "secretKey.access"},
		{envKey: "NEW_FEATURE_FLAG", want: "new.feature.flag"},
	}

	for _, tt := range tests {
		t.Run(tt.envKey, func(t *testing.T) {
			if got := canonicalizeEnvKey(tt.envKey, existing); got != tt.want {
				t.Fatalf("canonicalizeEnvKey(%q) = %q, want %q", tt.envKey, got, tt.want)
			}
		})
	}
}

func TestApplyDefaults_FillsAuthAndPolicy(t *testing.T) {
	cfg := &Config{}

	applyDefaults(cfg)

	if cfg.Auth.BcryptCost != defaultBcryptCost {
		t.Fatalf("BcryptCost = %d, want %d", cfg.Auth.BcryptCost, defaultBcryptCost)
	}
	if cfg.Auth.AccessTokenTTL != defaultAccessTokenTTL {
		t.Fatalf("AccessTokenTTL = %s, want %s", cfg.Auth.AccessTokenTTL, defaultAccessTokenTTL)
	}
	if cfg.Auth.RefreshTokenTTL != defaultRefreshTokenTTL {
		t.Fatalf("RefreshTokenTTL = %s, want %s", cfg.Auth.RefreshTokenTTL, defaultRefreshTokenTTL)
	}
	if cfg.PasswordStrength.MinLength != defaultPasswordMinLength {
		t.Fatalf("MinLength = %d, want %d", cfg.PasswordStrength.MinLength, defaultPasswordMinLength)
	}
	if !cfg.PasswordStrength.RequireUppercase || !cfg.PasswordStrength.RequireLowercase || !cfg.PasswordStrength.RequireNumbers {
		t.Fatalf("default password policy should require upper, lower and digits")
	}
	if cfg.Metrics.Path != defaultMetricsPath {
		t.Fatalf("Metrics.Path = %q, want %q", cfg.Metrics.Path, defaultMetricsPath)
	}
	if cfg.HTTP.MaxRequestBodySize != defaultMaxRequestBodySize {
		t.Fatalf("MaxRequestBodySize = %q, want %q", cfg.HTTP.MaxRequestBodySize, defaultMaxRequestBodySize)
	}
	if cfg.Worker.Port != defaultWorkerPort {
		t.Fatalf("Worker.Port = %d, want %d", cfg.Worker.Port, defaultWorkerPort)
	}
}

func TestApplyDefaults_KeepsExplicitValues(t *testing.T) {
	cfg := &Config{
		Auth: &AuthConfig{BcryptCost: 12},
	}

	applyDefaults(cfg)

	if cfg.Auth.BcryptCost != 12 {
		t.Fatalf("BcryptCost = %d, want 12", cfg.Auth.BcryptCost)
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := &Config{
			SecretKey: SecretKeyConfig{Access: "access-secret", Refresh: "refresh-secret"},
			Postgres:  &postgres.DBConn{},
		}
		applyDefaults(cfg)

		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(cfg *Config)
		wantErr bool
	}{
		{name: "valid", mutate: func(*Config) {}},
		{name: "missing access secret", mutate: func(cfg *Config) { cfg.SecretKey.Access = "" }, wantErr: true},
		{name: "shared secret", mutate: func(cfg *Config) { cfg.SecretKey.Refresh = cfg.SecretKey.Access }, wantErr: true},
		{name: "missing postgres", mutate: func(cfg *Config) { cfg.Postgres = nil }, wantErr: true},
		{name: "refresh shorter than access", mutate: func(cfg *Config) { cfg.Auth.RefreshTokenTTL = time.Minute }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
