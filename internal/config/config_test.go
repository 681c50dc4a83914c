package config

import (
	"testing"
)

func validConfig() Config {
	return Config{
		HTTP:      HTTPConfig{Port: 8080},
		Vector:    VectorConfig{Addrs: []string{"localhost:6379"}},
		Embedding: EmbeddingConfig{Model: "text-embedding-3-small"},
	}
}

func TestValidate_Valid(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidate_InvalidPort(t *testing.T) {
	cfg := validConfig()
	cfg.HTTP.Port = 0
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for invalid port")
	}
}

func TestValidate_MissingVectorAddrs(t *testing.T) {
	cfg := validConfig()
	cfg.Vector.Addrs = nil
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing vector addrs")
	}
}

func TestValidate_MissingEmbeddingModel(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding.Model = ""
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for missing embedding model")
	}
}

func TestValidate_TopKOrdering(t *testing.T) {
	cfg := validConfig()
	cfg.Retrieval.DefaultTopK = 100
	cfg.Retrieval.MaxTopK = 50
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error when default_top_k exceeds max_top_k")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := validConfig()
	cfg.ApplyDefaults()

	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("expected default dimensions 384, got %d", cfg.Embedding.Dimensions)
	}
	if cfg.Retrieval.DefaultTopK != 10 {
		t.Errorf("expected default top_k 10, got %d", cfg.Retrieval.DefaultTopK)
	}
	if cfg.Ingest.Workers != 4 {
		t.Errorf("expected default 4 ingest workers, got %d", cfg.Ingest.Workers)
	}
	if cfg.Metadata.Path == "" {
		t.Error("expected default metadata path")
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("EPIRAG_TEST_KEY", "secret")

	got := string(expandEnvVars([]byte("api_key: ${EPIRAG_TEST_KEY}\nport: ${EPIRAG_TEST_PORT:-8080}")))
	want := "api_key: secret\nport: 8080"
	if got != want {
		t.Errorf("expansion mismatch:\ngot:  %q\nwant: %q", got, want)
	}
}
