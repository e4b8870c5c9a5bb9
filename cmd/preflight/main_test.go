package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/hamed0406/uptimeworker/internal/config"
)

func TestCheck_ReportsProblems(t *testing.T) {
	var out, errOut bytes.Buffer
	r := &report{out: &out, errOut: &errOut}

	cfg := config.Defaults(config.EnvProduction)
	cfg.StoreDriver = config.DriverPostgres
	check(r, cfg)

	if !r.failed {
		t.Fatal("expected failure")
	}
	for _, want := range []string{"DATABASE_URL is required", "ADMIN_API_KEYS is required", "alerts will only be logged"} {
		if !strings.Contains(errOut.String(), want) {
			t.Fatalf("missing %q in:\n%s", want, errOut.String())
		}
	}
}

func TestCheck_HealthyConfigAndStore(t *testing.T) {
	var out, errOut bytes.Buffer
	r := &report{out: &out, errOut: &errOut}

	cfg := config.Defaults(config.EnvStaging)
	cfg.DataDir = t.TempDir()
	cfg.AdminAPIKeys = []string{"adm_0123456789abcdef"}
	cfg.PublicAPIKeys = []string{"pub_0123456789abcdef"}
	cfg.SlackWebhookURL = "https://hooks.slack.invalid/x"
	check(r, cfg)
	probeStore(context.Background(), r, cfg)

	if r.failed {
		t.Fatalf("unexpected failure:\n%s", errOut.String())
	}
	if !strings.Contains(out.String(), "store reachable, 0 checks") {
		t.Fatalf("output:\n%s", out.String())
	}
}
