// Package main is the entry point for the quiz game bot.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/bot"
	"quiz-game-bot/internal/config"
	"quiz-game-bot/internal/pkg/db"
	"quiz-game-bot/internal/pkg/lock"
	"quiz-game-bot/internal/pkg/scheduler"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/service"
	"quiz-game-bot/internal/state"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}
	log.Info().Msg("Configuration loaded successfully")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	quizRepo := repository.NewQuizRepository(dbPool.Pool)
	gameRepo := repository.NewGameRepository(dbPool.Pool)

	statsService := service.NewStatsService(gameRepo, cfg.Game.ScoreboardSize)

	store := state.NewStore()
	chatLock := lock.NewChatLock()
	sched := scheduler.New(cfg.Scheduler.SweepInterval)

	deps := &bot.Dependencies{
		Config:    cfg,
		Quiz:      quizRepo,
		Games:     gameRepo,
		Stats:     statsService,
		State:     store,
		Locks:     chatLock,
		Scheduler: sched,
	}

	quizBot, err := bot.New(deps)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create bot")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Info().Msg("Bot is starting...")
		quizBot.Start()
	}()

	sig := <-sigChan
	log.Info().Str("signal", sig.String()).Msg("Received shutdown signal")

	quizBot.Stop()

	// Let running round timers finish before the process exits.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := sched.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("Scheduler shutdown incomplete")
	}

	log.Info().Msg("Bot stopped gracefully")
}
