// cmd/preflight/main.go
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/config"
	"github.com/hamed0406/uptimeworker/internal/repo/driver"
)

type report struct {
	out, errOut io.Writer
	failed      bool
}

func (r *report) fail(msg string) { fmt.Fprintln(r.errOut, "✖", msg); r.failed = true }
func (r *report) warn(msg string) { fmt.Fprintln(r.errOut, "⚠", msg) }
func (r *report) ok(msg string)   { fmt.Fprintln(r.out, "✔", msg) }

func main() {
	_ = godotenv.Load()
	connect := len(os.Args) > 1 && os.Args[1] == "-connect"

	r := &report{out: os.Stdout, errOut: os.Stderr}
	cfg, err := config.Load()
	if err != nil {
		r.fail(err.Error())
		os.Exit(1)
	}
	check(r, cfg)
	if connect && !r.failed {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		probeStore(ctx, r, cfg)
	}
	if r.failed {
		os.Exit(1)
	}
	r.ok("preflight passed")
}

func check(r *report, cfg config.Config) {
	r.ok("APP_ENV=" + cfg.Env)
	for _, err := range multierr.Errors(cfg.Validate()) {
		r.fail(err.Error())
	}

	r.ok(fmt.Sprintf("STORE_DRIVER=%s", cfg.StoreDriver))
	if cfg.StoreDriver == config.DriverMemory {
		r.warn("memory store selected; checks are lost on restart")
	}
	r.ok(fmt.Sprintf("CHECK_INTERVAL=%s MAX_CONCURRENT_CHECKS=%d", cfg.CheckInterval, cfg.MaxConcurrent))

	switch {
	case cfg.TwilioAccountSID != "" && cfg.SlackWebhookURL != "":
		r.ok("alerts via Twilio SMS and Slack")
	case cfg.TwilioAccountSID != "":
		r.ok("alerts via Twilio SMS")
	case cfg.SlackWebhookURL != "":
		r.ok("alerts via Slack")
	default:
		r.warn("no TWILIO_* or SLACK_WEBHOOK_URL; alerts will only be logged")
	}

	if cfg.Addr == "" {
		r.warn("API_ADDR empty; the check registration API is disabled")
		return
	}
	r.ok("API_ADDR=" + cfg.Addr)
	if len(cfg.PublicAPIKeys) == 0 {
		r.warn("PUBLIC_API_KEYS is empty; only admin keys can read checks")
	}
	for name, keys := range map[string][]string{"ADMIN_API_KEYS": cfg.AdminAPIKeys, "PUBLIC_API_KEYS": cfg.PublicAPIKeys} {
		for _, k := range keys {
			if len(k) < 16 {
				r.warn(name + " contains a key shorter than 16 characters")
				break
			}
		}
	}
	if len(cfg.AllowedOrigins) == 0 {
		r.warn("ALLOWED_ORIGINS empty; CORS allows every origin")
	} else {
		r.ok("ALLOWED_ORIGINS=" + strings.Join(cfg.AllowedOrigins, ","))
	}
}

// probeStore opens the configured store and lists the checks collection.
func probeStore(ctx context.Context, r *report, cfg config.Config) {
	store, closeFn, err := driver.Open(ctx, cfg, zap.NewNop())
	if err != nil {
		r.fail("store: " + err.Error())
		return
	}
	defer closeFn()
	ids, err := store.List(ctx, "checks")
	if err != nil {
		r.fail("store: " + err.Error())
		return
	}
	r.ok(fmt.Sprintf("store reachable, %d checks", len(ids)))
}
