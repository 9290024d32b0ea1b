package config

import (
	"testing"
	"time"
)

func TestFromEnv(t *testing.T) {
	t.Run("Defaults", func(t *testing.T) {
		cfg := FromEnv()

		if cfg.HTTPAddr != ":3000" {
			t.Errorf("expected HTTP addr :3000, got %s", cfg.HTTPAddr)
		}
		if cfg.DBDriver != "mysql" {
			t.Errorf("expected mysql driver, got %s", cfg.DBDriver)
		}
		if cfg.MaxUploadBytes != 50<<20 {
			t.Errorf("expected 50MiB upload limit, got %d", cfg.MaxUploadBytes)
		}
		if cfg.SessionMaxAge != 24*time.Hour {
			t.Errorf("expected 24h session max age, got %s", cfg.SessionMaxAge)
		}
		if cfg.MediaPublicBase != "/media" {
			t.Errorf("expected /media public base, got %s", cfg.MediaPublicBase)
		}
		if cfg.MinioEnabled() {
			t.Error("minio should be disabled without an endpoint")
		}
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Setenv("DB_DRIVER", "SQLite")
		t.Setenv("REDIS_DB", "3")
		t.Setenv("MINIO_ENDPOINT", "localhost:9000")
		t.Setenv("MINIO_USE_SSL", "true")
		t.Setenv("MEDIA_PUBLIC_BASE", "https://cdn.example.com/media/")
		t.Setenv("MEDIA_TIMEOUT", "5s")

		cfg := FromEnv()

		if cfg.DBDriver != "sqlite" {
			t.Errorf("expected driver to be lower-cased, got %s", cfg.DBDriver)
		}
		if cfg.RedisDB != 3 {
			t.Errorf("expected redis db 3, got %d", cfg.RedisDB)
		}
		if !cfg.MinioEnabled() || !cfg.MinioUseSSL {
			t.Error("expected minio enabled with ssl")
		}
		if cfg.MediaPublicBase != "https://cdn.example.com/media" {
			t.Errorf("expected trailing slash trimmed, got %s", cfg.MediaPublicBase)
		}
		if cfg.MediaTimeout != 5*time.Second {
			t.Errorf("expected 5s media timeout, got %s", cfg.MediaTimeout)
		}
		if cfg.RedisAddr() != "127.0.0.1:6379" {
			t.Errorf("unexpected redis addr %s", cfg.RedisAddr())
		}
	})

	t.Run("InvalidValuesFallBack", func(t *testing.T) {
		t.Setenv("REDIS_DB", "not-a-number")
		t.Setenv("MEDIA_TIMEOUT", "soon")
		t.Setenv("LOG_COMPRESS", "maybe")

		cfg := FromEnv()

		if cfg.RedisDB != 0 {
			t.Errorf("expected fallback redis db 0, got %d", cfg.RedisDB)
		}
		if cfg.MediaTimeout != 30*time.Second {
			t.Errorf("expected fallback media timeout, got %s", cfg.MediaTimeout)
		}
		if !cfg.LogCompress {
			t.Error("expected fallback log compress true")
		}
	})
}
