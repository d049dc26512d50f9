package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"hoops-sms/internal/classify"
	"hoops-sms/internal/clock"
	"hoops-sms/internal/config"
	"hoops-sms/internal/engine"
	"hoops-sms/internal/handler"
	"hoops-sms/internal/models"
	"hoops-sms/internal/notify"
	"hoops-sms/internal/storage"
	"hoops-sms/internal/webhook"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Str("config", *configPath).Msg("Failed to load config")
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		log.Fatal().Err(err).Str("timezone", cfg.Timezone).Msg("Unknown timezone")
	}

	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Str("db", cfg.DatabasePath).Msg("Failed to open storage")
	}
	defer store.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := seedRoster(ctx, store, cfg.Members, log); err != nil {
		log.Fatal().Err(err).Msg("Failed to seed roster")
	}

	gameClock := clock.New(cfg.GameWeekday, cfg.GameHour, cfg.GameMinute, loc)
	classifier := classify.New(store.Members())
	eng := engine.New(store.Members(), store.RSVPs(), store.Polls(), gameClock, log)

	var sender notify.Sender
	if cfg.DryRun {
		sender = notify.NewDryRunSender(log)
	} else {
		sender = notify.NewTwilioSender(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.FromNumber, log)
	}
	dispatcher := notify.NewDispatcher(sender, log)

	sms := handler.New(classifier, eng, dispatcher, log)
	server := webhook.NewServer(sms, cfg.WebhookPath, log)

	var scheduler *cron.Cron
	if cfg.PollCron != "" {
		scheduler = cron.New(cron.WithLocation(loc))
		_, err := scheduler.AddFunc(cfg.PollCron, func() {
			openPoll(ctx, eng, dispatcher, log)
		})
		if err != nil {
			log.Fatal().Err(err).Str("cron", cfg.PollCron).Msg("Invalid poll schedule")
		}
		scheduler.Start()
		log.Info().Str("cron", cfg.PollCron).Msg("Poll scheduler running")
	}

	httpServer := &http.Server{
		Addr:              cfg.Listen,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Info().Str("listen", cfg.Listen).Str("path", cfg.WebhookPath).Msg("Webhook listening")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("Webhook server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("Shutting down")

	if scheduler != nil {
		<-scheduler.Stop().Done()
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Webhook shutdown failed")
	}
}

// seedRoster populates members and admins from config on first run, the
// way the roster is provisioned. An already-populated roster is left alone.
func seedRoster(ctx context.Context, store *storage.Store, seed []config.MemberConfig, log zerolog.Logger) error {
	count, err := store.Members().Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 || len(seed) == 0 {
		return nil
	}

	for _, m := range seed {
		member := models.Member{Name: m.Name, Phone: m.Phone, Admin: m.Admin}
		if err := store.Members().Create(ctx, member); err != nil {
			return err
		}
	}
	log.Info().Int("members", len(seed)).Msg("Roster seeded")
	return nil
}

// openPoll opens the weekly poll and sends the invites. An already-open
// poll is expected when the schedule fires more than once per game week.
func openPoll(ctx context.Context, eng *engine.Engine, dispatcher *notify.Dispatcher, log zerolog.Logger) {
	confirmation, notifications, err := eng.StartPoll(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrPollAlreadyOpen) {
			log.Info().Msg("Poll already open, skipping scheduled invite")
			return
		}
		log.Error().Err(err).Msg("Failed to open poll")
		return
	}

	if failed := dispatcher.Dispatch(ctx, notifications); failed > 0 {
		log.Warn().Int("failed", failed).Msg("Some invites were not delivered")
	}
	log.Info().Str("result", confirmation).Msg("Poll opened")
}
