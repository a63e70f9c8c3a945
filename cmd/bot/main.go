package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"

	"github.com/tazhate/birthdaybot/config"
	"github.com/tazhate/birthdaybot/internal/bot"
	caldavclient "github.com/tazhate/birthdaybot/internal/clients/caldav"
	"github.com/tazhate/birthdaybot/internal/domain"
	"github.com/tazhate/birthdaybot/internal/scheduler"
	"github.com/tazhate/birthdaybot/internal/service"
	"github.com/tazhate/birthdaybot/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallback := zerolog.New(os.Stderr)
		fallback.Fatal().Err(err).Msg("failed to load config")
	}

	log := newLogger(cfg.LogLevel)

	defaultAt, err := domain.ParseClockTime(cfg.DefaultAlertTime)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid default alert time")
	}
	defaultPrefs := domain.AlertPrefs{
		LeadDays: 0,
		At:       defaultAt,
		TZOffset: cfg.DefaultTZOffset,
	}

	store, err := storage.New(cfg.DatabasePath, defaultPrefs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init storage")
	}
	defer store.Close()

	caldav := caldavclient.NewClient(cfg.CalDAVURL, cfg.CalDAVUsername, cfg.CalDAVPassword, cfg.CalDAVCalendar)

	userSvc := service.NewUserService(store)
	friendSvc := service.NewFriendService(store)
	groupSvc := service.NewGroupService(store)
	wishSvc := service.NewWishlistService(store)
	calSvc := service.NewCalendarService(store, caldav, log)
	graphSvc := service.NewGraphService(store)

	tgBot, err := bot.New(cfg, userSvc, friendSvc, groupSvc, wishSvc, calSvc, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to init bot")
	}

	notifySvc := service.NewNotifyService(store, store, store, graphSvc, tgBot, cfg.MaxLeadDays, log)
	sched := scheduler.New(cfg.TickInterval, notifySvc, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := sched.Start(ctx); err != nil {
			log.Error().Err(err).Msg("scheduler stopped")
		}
	}()

	go func() {
		if err := tgBot.Start(ctx); err != nil {
			log.Error().Err(err).Msg("bot stopped")
		}
	}()

	log.Info().Msg("birthdaybot started")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info().Msg("shutting down")

	cancel()
	sched.Stop()
	tgBot.Stop()

	log.Info().Msg("birthdaybot stopped")
}

func newLogger(level string) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(os.Stderr).Level(lvl).With().Timestamp().Logger()
}
