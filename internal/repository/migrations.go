package repository

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
)

// migrations are applied in order at startup. Statements are idempotent.
var migrations = []struct {
	name string
	stmt string
}{
	{
		name: "chats table",
		stmt: `
			CREATE TABLE IF NOT EXISTS chats (
				id BIGINT PRIMARY KEY,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		name: "players table",
		stmt: `
			CREATE TABLE IF NOT EXISTS players (
				id BIGINT PRIMARY KEY,
				first_name VARCHAR(255) NOT NULL,
				last_name VARCHAR(255) NOT NULL DEFAULT '',
				joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
		`,
	},
	{
		name: "themes and questions tables",
		stmt: `
			CREATE TABLE IF NOT EXISTS themes (
				id BIGSERIAL PRIMARY KEY,
				title VARCHAR(255) NOT NULL UNIQUE
			);
			CREATE TABLE IF NOT EXISTS questions (
				id BIGSERIAL PRIMARY KEY,
				theme_id BIGINT NOT NULL REFERENCES themes(id) ON DELETE CASCADE,
				title TEXT NOT NULL
			);
			CREATE INDEX IF NOT EXISTS idx_questions_theme ON questions(theme_id);
			CREATE TABLE IF NOT EXISTS answers (
				id BIGSERIAL PRIMARY KEY,
				question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
				title TEXT NOT NULL,
				is_correct BOOLEAN NOT NULL DEFAULT FALSE
			);
			CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id);
		`,
	},
	{
		name: "games and scores tables",
		stmt: `
			CREATE TABLE IF NOT EXISTS games (
				id BIGSERIAL PRIMARY KEY,
				chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
				is_stopped BOOLEAN NOT NULL DEFAULT FALSE,
				started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				finished_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_games_chat ON games(chat_id);
			CREATE TABLE IF NOT EXISTS game_user_scores (
				id BIGSERIAL PRIMARY KEY,
				game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				user_id BIGINT NOT NULL REFERENCES players(id) ON DELETE CASCADE,
				score INT NOT NULL DEFAULT 0,
				n_correct INT NOT NULL DEFAULT 0,
				n_wrong INT NOT NULL DEFAULT 0,
				UNIQUE (game_id, user_id)
			);
			CREATE INDEX IF NOT EXISTS idx_scores_game ON game_user_scores(game_id);
		`,
	},
	{
		name: "asked questions table",
		stmt: `
			CREATE TABLE IF NOT EXISTS game_questions (
				game_id BIGINT NOT NULL REFERENCES games(id) ON DELETE CASCADE,
				question_id BIGINT NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
				is_answered BOOLEAN NOT NULL DEFAULT FALSE,
				is_done BOOLEAN NOT NULL DEFAULT FALSE,
				started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (game_id, question_id)
			);
		`,
	},
}

// Migrate applies the database schema.
func Migrate(ctx context.Context, pool *pgxpool.Pool) error {
	for _, m := range migrations {
		if _, err := pool.Exec(ctx, m.stmt); err != nil {
			return err
		}
		log.Info().Str("migration", m.name).Msg("Migration applied")
	}
	return nil
}
