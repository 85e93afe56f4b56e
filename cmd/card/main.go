// Package main is the entry point of the lunar new year card server.
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

	"github.com/joho/godotenv"
	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"lunar-card/internal/auth"
	"lunar-card/internal/bot"
	"lunar-card/internal/config"
	"lunar-card/internal/flow"
	"lunar-card/internal/game"
	"lunar-card/internal/game/fortune"
	"lunar-card/internal/game/wheel"
	"lunar-card/internal/identity"
	"lunar-card/internal/mail"
	"lunar-card/internal/notify"
	"lunar-card/internal/pkg/db"
	"lunar-card/internal/pkg/lock"
	"lunar-card/internal/registry"
	"lunar-card/internal/repository"
	"lunar-card/internal/service"
	"lunar-card/internal/unlock"
	"lunar-card/internal/web"
)

const janitorInterval = time.Minute

func main() {
	configPath := flag.String("config", "config", "directory holding config.yaml")
	flag.Parse()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warn().Err(err).Msg("Failed to read .env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	reg, err := registry.Load(cfg.Card.ManifestPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.Card.ManifestPath).Msg("Failed to load profile manifest, serving no profiles")
		reg = registry.Empty()
	}
	log.Info().Int("profiles", reg.Len()).Msg("Profiles loaded")

	matcher := identity.NewMatcher(identity.Aliases{
		ExemptKeys:           cfg.Game.ExemptKeys,
		ExemptLabels:         cfg.Game.ExemptLabels,
		ExemptLabelFragments: cfg.Game.ExemptLabelFragments,
		RingLabelFragment:    cfg.Game.RingLabelFragment,
		BraceletKey:          cfg.Game.BraceletKey,
		MiddleTierFragment:   cfg.Game.MiddleTierFragment,
	})

	var (
		records  notify.Store
		visitors unlock.Store
		banks    flow.BankStore
		health   func(context.Context) error
	)
	if cfg.Database.Enabled {
		dbPool, err := db.Open(ctx, &cfg.Database)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to open database")
		}
		defer dbPool.Close()

		visitorRepo := repository.NewVisitorRepository(dbPool.Pool)
		records = repository.NewRecordRepository(dbPool.Pool)
		visitors = visitorRepo
		banks = visitorRepo
		health = dbPool.HealthCheck
	} else {
		log.Warn().Msg("Database disabled, records are kept in memory")
		records = notify.NewMemoryStore()
		visitors = unlock.NewMemoryStore()
		banks = flow.NewMemoryBankStore()
	}

	gwOpts := notify.Options{OwnerKey: cfg.Card.OwnerKey}

	mailCfg := mail.Config{
		Host: cfg.SMTP.Host,
		Port: cfg.SMTP.Port,
		User: cfg.SMTP.User,
		Pass: cfg.SMTP.Pass,
		From: cfg.SMTP.From,
		To:   cfg.SMTP.To,

		Timeout: cfg.SMTP.Timeout,
	}
	if mailCfg.Configured() {
		gwOpts.Mailer = mail.NewSMTPMailer(mailCfg, nil)
	} else {
		log.Warn().Msg("SMTP is not configured, wish emails are disabled")
	}

	var telegramBot *bot.Bot
	if cfg.Bot.Token != "" {
		telegramBot, err = bot.New(cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create bot")
		}
		gwOpts.Notifier = telegramBot
	}

	tasks := notify.NewTasks(cfg.Card.TaskTimeout)
	gateway := notify.NewGateway(records, tasks, gwOpts)

	ledger := unlock.NewLedger(visitors, matcher)
	controller := flow.NewController(
		wheel.New(matcher, game.DefaultRandom),
		fortune.New(matcher),
		matcher,
		banks,
		gateway,
		tasks,
	)

	cards := service.NewCardService(reg, ledger, controller, gateway, lock.NewKeyLock(), service.Options{
		Year:     cfg.Card.Year,
		VisitTTL: cfg.Card.VisitTTL,
	})

	secret := cfg.Admin.JWTSecret
	if secret == "" {
		secret, err = gonanoid.New(32)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to generate token secret")
		}
		log.Warn().Msg("admin.jwt_secret is empty, using a per-process secret")
	}

	issuer, err := auth.NewIssuer(secret, cfg.Admin.TokenLifetime, cfg.Admin.PasswordHash)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create token issuer")
	}

	server := web.NewServer(cards, gateway, issuer, web.Options{
		StaticDir:  cfg.Server.StaticDir,
		AvatarsDir: cfg.Server.AvatarsDir,
		Health:     health,
	})

	httpServer := &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      server.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go cards.RunJanitor(ctx, janitorInterval)

	if telegramBot != nil {
		telegramBot.Mount(gateway)
		go telegramBot.Start()
	}

	go func() {
		log.Info().Str("addr", httpServer.Addr).Msg("HTTP server is starting...")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	if telegramBot != nil {
		telegramBot.Stop()
	}
	cancel()
	tasks.Wait()
	log.Info().Msg("Server stopped gracefully")
}
