package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/hamed0406/uptimeworker/internal/config"
	"github.com/hamed0406/uptimeworker/internal/httpapi"
	apimw "github.com/hamed0406/uptimeworker/internal/httpapi/middleware"
	"github.com/hamed0406/uptimeworker/internal/logging"
	"github.com/hamed0406/uptimeworker/internal/notify"
	"github.com/hamed0406/uptimeworker/internal/probe"
	"github.com/hamed0406/uptimeworker/internal/repo"
	"github.com/hamed0406/uptimeworker/internal/repo/driver"
	"github.com/hamed0406/uptimeworker/internal/scheduler"
	"github.com/hamed0406/uptimeworker/internal/validate"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}
	logger, err := logging.NewLogger(logging.Options{Dir: cfg.LogDir, Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	if err != nil {
		log.Fatal(err)
	}
	defer func() { _ = logger.Sync() }()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("config_invalid", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, closeStore, err := driver.Open(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("store_open_error", zap.String("driver", cfg.StoreDriver), zap.Error(err))
	}
	defer closeStore()

	checks := repo.NewChecks(store)
	v := validate.New()
	worker := scheduler.NewWorker(
		logger,
		checks,
		v,
		probe.NewHTTPProber(),
		scheduler.NewAlerter(logger, buildNotifier(cfg, logger)),
		cfg.CheckInterval,
		cfg.MaxConcurrent,
	)

	logger.Info("uptimed_start",
		zap.String("env", cfg.Env),
		zap.String("store", cfg.StoreDriver),
		zap.Duration("interval", cfg.CheckInterval))

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	if cfg.Addr != "" {
		api := httpapi.NewServer(logger, checks, v, cfg.MaxChecksPerOwner)
		srv := &http.Server{
			Addr: cfg.Addr,
			Handler: api.Router(
				apimw.Keys{Public: cfg.PublicAPIKeys, Admin: cfg.AdminAPIKeys},
				cfg.AllowedOrigins,
				cfg.PublicRPM, cfg.PublicBurst,
				cfg.AdminRPM, cfg.AdminBurst,
			),
			ReadHeaderTimeout: 5 * time.Second,
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			logger.Info("api_listen", zap.String("addr", cfg.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("api_listen_error", zap.Error(err))
				stop()
			}
		}()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	wg.Wait()
	logger.Info("uptimed_stopped")
}

// buildNotifier fans out to every configured channel, or logs alerts when
// none is configured.
func buildNotifier(cfg config.Config, logger *zap.Logger) notify.Notifier {
	var out notify.Multi
	if tw := notify.NewTwilio(cfg.TwilioAccountSID, cfg.TwilioAuthToken, cfg.TwilioFromPhone, cfg.TwilioAPIBase); tw != nil {
		out = append(out, tw)
	}
	if sl := notify.NewSlack(cfg.SlackWebhookURL); sl != nil {
		out = append(out, sl)
	}
	if len(out) == 0 {
		logger.Warn("notifier_log_only", zap.String("hint", "set TWILIO_* or SLACK_WEBHOOK_URL to deliver alerts"))
		return notify.NewLog(logger)
	}
	return out
}
