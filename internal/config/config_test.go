package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultTemplateMatchesDefault(t *testing.T) {
	cfg, err := FromYAML([]byte(GenerateDefault()))
	if err != nil {
		t.Fatalf("template should validate: %v", err)
	}
	def := Default()
	if cfg.Drafts.Debounce != def.Drafts.Debounce || cfg.Scoring.Source != def.Scoring.Source || cfg.Server.BasePath != def.Server.BasePath {
		t.Fatalf("template drifted from Default(): %+v", cfg)
	}
}

func TestFromYAMLOverridesDefaults(t *testing.T) {
	cfg, err := FromYAML([]byte(`
drafts:
  debounce: 250ms
scoring:
  source: http
  url: http://scorer.internal:9000
outcomes:
  kafka:
    brokers: [kafka-1:9092]
webhooks:
  - id: crm
    url: https://crm.example.com/hook
    events: [draft.committed]
`))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if cfg.Drafts.Debounce != 250*time.Millisecond {
		t.Fatalf("debounce: %v", cfg.Drafts.Debounce)
	}
	if cfg.Scoring.Timeout != 10*time.Second {
		t.Fatalf("timeout default lost: %v", cfg.Scoring.Timeout)
	}
	if !cfg.Outcomes.Kafka.Enabled() || cfg.Outcomes.Kafka.Topic != "lead-outcomes" {
		t.Fatalf("kafka: %+v", cfg.Outcomes.Kafka)
	}
	if len(cfg.Webhooks) != 1 || cfg.Webhooks[0].Events[0] != "draft.committed" {
		t.Fatalf("webhooks: %+v", cfg.Webhooks)
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]string{
		"unknown source": "scoring:\n  source: magic\n",
		"http no url":    "scoring:\n  source: http\n",
		"zero debounce":  "drafts:\n  debounce: 0s\n",
		"base path":      "server:\n  base_path: v0\n",
		"webhook id":     "webhooks:\n  - url: http://x\n",
		"dup webhook":    "webhooks:\n  - {id: a, url: http://x}\n  - {id: a, url: http://y}\n",
		"log format":     "log:\n  format: xml\n",
	}
	for name, raw := range cases {
		if _, err := FromYAML([]byte(raw)); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestLoadOptional(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadOptional(dir)
	if err != nil || cfg == nil {
		t.Fatalf("missing file should yield defaults: %v", err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatalf("Load should require the file")
	}
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("log:\n  level: debug\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err = Load(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Log.Level != "debug" {
		t.Fatalf("level: %s", cfg.Log.Level)
	}
}
