package conn

import "testing"

func TestConfigFromEnvDefaults(t *testing.T) {
	for _, k := range []string{"DB_USER", "DB_PASSWORD", "DB_HOST", "DB_PORT", "DB_NAME"} {
		t.Setenv(k, "")
	}
	cfg := ConfigFromEnv()
	if cfg.User != "root" || cfg.Host != "127.0.0.1" || cfg.Port != "3306" || cfg.Name != "aidash" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestDSN(t *testing.T) {
	cfg := Config{User: "app", Password: "secret", Host: "db.internal", Port: "3307", Name: "aidash"}
	want := "app:secret@tcp(db.internal:3307)/aidash?parseTime=true"
	if got := cfg.dsn(cfg.Name); got != want {
		t.Errorf("dsn = %q, want %q", got, want)
	}
	want = "app:secret@tcp(db.internal:3307)/?parseTime=true"
	if got := cfg.dsn(""); got != want {
		t.Errorf("bootstrap dsn = %q, want %q", got, want)
	}
}
