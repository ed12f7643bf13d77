package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadYAMLConfigKeepsDefaults(t *testing.T) {
	t.Setenv("NEIGHBORLY_TEST_SECRET", "s3cret")
	path := filepath.Join(t.TempDir(), "neighborly.yaml")
	content := `server:
  port: 9090
auth:
  jwt_secret: ${NEIGHBORLY_TEST_SECRET}
store:
  driver: postgres
  dsn: postgres://localhost/neighborly
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("host = %q, want default", cfg.Server.Host)
	}
	if cfg.Auth.JWTSecret != "s3cret" {
		t.Errorf("jwt_secret = %q, want expanded env value", cfg.Auth.JWTSecret)
	}
	if cfg.Auth.BcryptCost != 10 {
		t.Errorf("bcrypt_cost = %d, want default 10", cfg.Auth.BcryptCost)
	}
	if cfg.Store.Driver != "postgres" {
		t.Errorf("store driver = %q", cfg.Store.Driver)
	}
}

func TestWriteDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "neighborly.yaml")
	if err := WriteDefaultConfig(path); err != nil {
		t.Fatalf("WriteDefaultConfig: %v", err)
	}
	cfg, err := LoadYAMLConfig(path)
	if err != nil {
		t.Fatalf("LoadYAMLConfig: %v", err)
	}
	if cfg.Logging.Format != "text" || !cfg.Metrics.Enabled {
		t.Errorf("unexpected defaults: %+v", cfg)
	}
}
