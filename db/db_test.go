package db

import (
	"context"
	"errors"
	"strings"
	"testing"

	"dabeat/config"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	mysqldriver "github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

func TestMySQLDSN(t *testing.T) {
	cfg := &config.Config{DBUser: "root", DBPassword: "secret", DBHost: "db", DBPort: "3306", DBName: "dabeat"}
	dsn := MySQLDSN(cfg)

	if !strings.HasPrefix(dsn, "root:secret@tcp(db:3306)/dabeat?") {
		t.Errorf("unexpected dsn %s", dsn)
	}
	if !strings.Contains(dsn, "parseTime=true") || !strings.Contains(dsn, "charset=utf8mb4") {
		t.Errorf("dsn missing params: %s", dsn)
	}
}

func TestOpenSQLiteAndMigrate(t *testing.T) {
	gdb, err := Open(&config.Config{DBDriver: "sqlite", DBPath: ":memory:", DBLogLevel: "silent"})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	if err := AutoMigrate(gdb); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}

	for _, table := range []string{"users", "playlists", "playlist_songs", "tracks", "track_tags", "dynamic_blocks"} {
		if !gdb.Migrator().HasTable(table) {
			t.Errorf("expected table %s", table)
		}
	}

	if err := Ping(context.Background(), gdb); err != nil {
		t.Errorf("ping failed: %v", err)
	}
}

func TestOpenUnsupportedDriver(t *testing.T) {
	if _, err := Open(&config.Config{DBDriver: "oracle"}); err == nil {
		t.Error("expected error for unsupported driver")
	}
}

func TestIsDuplicateKey(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"Nil", nil, false},
		{"Gorm", gorm.ErrDuplicatedKey, true},
		{"MySQL", &mysqldriver.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"MySQLOther", &mysqldriver.MySQLError{Number: 1045}, false},
		{"SQLite", errors.New("UNIQUE constraint failed: users.username"), true},
		{"Other", errors.New("connection refused"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsDuplicateKey(tt.err); got != tt.want {
				t.Errorf("expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRedisHealthCheck(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	if err := TestRedis(context.Background(), client); err != nil {
		t.Fatalf("health check failed: %v", err)
	}
	if mr.Exists("dabeat:healthcheck") {
		t.Error("health check key should be removed")
	}

	if err := TestRedis(context.Background(), nil); err == nil {
		t.Error("expected error for nil client")
	}
}
