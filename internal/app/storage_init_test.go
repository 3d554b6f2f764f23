package app

import (
	"context"
	"testing"

	log "github.com/sirupsen/logrus"
)

func TestInitStorage_MemoryDriver(t *testing.T) {
	logger := log.WithField("test", "storage")

	repos, err := initStorage(context.Background(), DefaultConfig(), logger)
	if err != nil {
		t.Fatalf("initStorage failed: %v", err)
	}
	defer repos.Close()

	if repos.Orders == nil || repos.Payments == nil || repos.Products == nil {
		t.Fatal("core repositories must not be nil")
	}
	if repos.Outbox == nil || repos.Timeline == nil {
		t.Fatal("outbox and timeline repositories must not be nil")
	}
	if repos.store != nil {
		t.Fatal("memory driver must not open a postgres store")
	}
}

func TestInitStorage_EmptyDriverDefaultsToMemory(t *testing.T) {
	logger := log.WithField("test", "storage")

	cfg := DefaultConfig()
	cfg.StorageDriver = ""

	repos, err := initStorage(context.Background(), cfg, logger)
	if err != nil {
		t.Fatalf("initStorage failed: %v", err)
	}
	defer repos.Close()

	if repos.Orders == nil {
		t.Fatal("expected memory repositories for empty driver")
	}
}

func TestInitStorage_PostgresRequiresDSN(t *testing.T) {
	logger := log.WithField("test", "storage")

	cfg := DefaultConfig()
	cfg.StorageDriver = StorageDriverPostgres
	cfg.PostgresDSN = ""

	if _, err := initStorage(context.Background(), cfg, logger); err == nil {
		t.Fatal("expected error for postgres driver without DSN")
	}
}

func TestInitStorage_UnsupportedDriver(t *testing.T) {
	logger := log.WithField("test", "storage")

	cfg := DefaultConfig()
	cfg.StorageDriver = "cassandra"

	if _, err := initStorage(context.Background(), cfg, logger); err == nil {
		t.Fatal("expected error for unsupported storage driver")
	}
}
