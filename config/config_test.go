package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.json")
	if err := os.WriteFile(p, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return p
}

func TestLoadConfigAppliesDefaults(t *testing.T) {
	p := writeConfig(t, `{
        "general": {"jwt_secret": "s3cret"},
        "storage": {
            "postgres": {"url": "postgres://u:p@localhost:5432/agentd?sslmode=disable"},
            "redis": {"host": "localhost", "port": "6379"}
        }
    }`)

	cfg, err := LoadConfig(p)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.General.Listen != ":8000" {
		t.Errorf("listen = %q", cfg.General.Listen)
	}
	if cfg.Embedding.ChunkSize != 1000 || cfg.Embedding.ChunkOverlap != 200 {
		t.Errorf("chunking defaults = %d/%d", cfg.Embedding.ChunkSize, cfg.Embedding.ChunkOverlap)
	}
	if cfg.Embedding.Dimensions != 1536 {
		t.Errorf("dimensions = %d", cfg.Embedding.Dimensions)
	}
	if cfg.LLM.CompletionModel != "gpt-4o-mini" {
		t.Errorf("completion model = %q", cfg.LLM.CompletionModel)
	}
	if cfg.Graph.BaseURL != "http://localhost:2024" {
		t.Errorf("graph base url = %q", cfg.Graph.BaseURL)
	}
	if got := cfg.Storage.Redis.Addr(); got != "localhost:6379" {
		t.Errorf("redis addr = %q", got)
	}
}

func TestLoadConfigRejectsOverlapNotSmallerThanSize(t *testing.T) {
	p := writeConfig(t, `{
        "embedding": {"chunk_size": 100, "chunk_overlap": 100},
        "storage": {
            "postgres": {"url": "postgres://u:p@localhost:5432/agentd?sslmode=disable"},
            "redis": {"host": "localhost", "port": "6379"}
        }
    }`)

	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected validation error for overlap >= size")
	}
}

func TestLoadConfigRequiresPostgres(t *testing.T) {
	p := writeConfig(t, `{
        "storage": {"redis": {"host": "localhost", "port": "6379"}}
    }`)

	if _, err := LoadConfig(p); err == nil {
		t.Fatal("expected error when postgres is not configured")
	}
}

func TestPostgresDSNFromParts(t *testing.T) {
	pg := PostgresConfig{Host: "db", Port: "5433", User: "u", Password: "p", DBName: "agentd"}
	dsn := pg.DSN()
	want := "postgres://u:p@db:5433/agentd?sslmode=disable"
	if dsn != want {
		t.Errorf("dsn = %q, want %q", dsn, want)
	}
}
