// Package main loads quiz content from a JSON file into the database.
//
// Usage: seed -file questions.json
package main

import (
	"context"
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/config"
	"quiz-game-bot/internal/pkg/db"
	"quiz-game-bot/internal/repository"
	"quiz-game-bot/internal/service"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	file := flag.String("file", "questions.json", "path to the quiz content file")
	flag.Parse()

	cfg, err := config.Load("config")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	ctx := context.Background()

	dbPool, err := db.NewPool(ctx, &cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer dbPool.Close()

	if err := repository.Migrate(ctx, dbPool.Pool); err != nil {
		log.Fatal().Err(err).Msg("Failed to run database migrations")
	}

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("Failed to open content file")
	}
	defer f.Close()

	quizService := service.NewQuizService(repository.NewQuizRepository(dbPool.Pool))
	loaded, err := quizService.Load(ctx, f)
	if err != nil {
		log.Fatal().Err(err).Int("loaded", loaded).Msg("Content load failed")
	}

	log.Info().Int("questions", loaded).Msg("Content loaded")
}
