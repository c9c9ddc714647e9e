package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	if cfg.App.Port != "8080" {
		t.Errorf("default port = %q", cfg.App.Port)
	}
	if cfg.JWT.Expiry != 24*time.Hour {
		t.Errorf("default jwt expiry = %s", cfg.JWT.Expiry)
	}
	if cfg.Call.RingTimeout != 30*time.Second {
		t.Errorf("default ring timeout = %s", cfg.Call.RingTimeout)
	}
	if len(cfg.CORS.Origins) == 0 {
		t.Error("no default CORS origin")
	}
	if cfg.Firebase.CredentialsFile != "" {
		t.Errorf("push enabled by default, credentials = %q", cfg.Firebase.CredentialsFile)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_PORT", "9999")
	t.Setenv("JWT_EXPIRY", "1h")
	t.Setenv("CALL_RING_TIMEOUT", "45s")
	t.Setenv("CORS_ORIGINS", "https://a.test,https://b.test")
	t.Setenv("FIREBASE_CREDENTIALS_FILE", "/etc/converse/firebase.json")

	cfg := Load()

	if cfg.App.Port != "9999" {
		t.Errorf("port override = %q", cfg.App.Port)
	}
	if cfg.JWT.Expiry != time.Hour {
		t.Errorf("jwt expiry override = %s", cfg.JWT.Expiry)
	}
	if cfg.Call.RingTimeout != 45*time.Second {
		t.Errorf("ring timeout override = %s", cfg.Call.RingTimeout)
	}
	if len(cfg.CORS.Origins) != 2 || cfg.CORS.Origins[1] != "https://b.test" {
		t.Errorf("cors override = %v", cfg.CORS.Origins)
	}
	if cfg.Firebase.CredentialsFile != "/etc/converse/firebase.json" {
		t.Errorf("firebase credentials override = %q", cfg.Firebase.CredentialsFile)
	}
}

func TestLoadBadDurationsFallBack(t *testing.T) {
	t.Setenv("JWT_EXPIRY", "not-a-duration")
	t.Setenv("CALL_RING_TIMEOUT", "soon")

	cfg := Load()

	if cfg.JWT.Expiry != 24*time.Hour {
		t.Errorf("jwt expiry fallback = %s", cfg.JWT.Expiry)
	}
	if cfg.Call.RingTimeout != 30*time.Second {
		t.Errorf("ring timeout fallback = %s", cfg.Call.RingTimeout)
	}
}

func TestPostgresDSN(t *testing.T) {
	d := DBConfig{Host: "db", Port: "5433", User: "u", Password: "p", Name: "n", SSLMode: "disable"}

	want := "host=db user=u password=p dbname=n port=5433 sslmode=disable"
	if got := d.DSN(); got != want {
		t.Errorf("DSN = %q, want %q", got, want)
	}
	wantURL := "postgres://u:p@db:5433/n?sslmode=disable"
	if got := d.URL(); got != wantURL {
		t.Errorf("URL = %q, want %q", got, wantURL)
	}
}
