package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-game-bot/internal/model"
)

// ErrGameNotFound is returned for score operations on unknown games.
var ErrGameNotFound = errors.New("game not found")

// GameRepository is the durable score ledger: games, per-game player
// scores, round outcomes. All score updates are single atomic statements,
// so the game engine never needs to hold its own lock across a call.
type GameRepository struct {
	pool *pgxpool.Pool
}

// NewGameRepository creates a new GameRepository instance.
func NewGameRepository(pool *pgxpool.Pool) *GameRepository {
	return &GameRepository{pool: pool}
}

// RegisterChat records a conversation the bot was invited into.
func (r *GameRepository) RegisterChat(ctx context.Context, chatID int64) error {
	const query = `
		INSERT INTO chats (id)
		VALUES ($1)
		ON CONFLICT (id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, chatID); err != nil {
		return fmt.Errorf("failed to register chat: %w", err)
	}
	return nil
}

// CreateGame creates a game for a conversation together with a zero score
// row for every joined player. Players are upserted with their latest
// display name.
func (r *GameRepository) CreateGame(ctx context.Context, chatID int64, players []model.Player) (int64, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const upsertPlayer = `
		INSERT INTO players (id, first_name, last_name, joined_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (id) DO UPDATE
		SET first_name = EXCLUDED.first_name, last_name = EXCLUDED.last_name
	`
	for _, p := range players {
		if _, err := tx.Exec(ctx, upsertPlayer, p.ID, p.FirstName, p.LastName); err != nil {
			return 0, fmt.Errorf("failed to upsert player: %w", err)
		}
	}

	const insertGame = `
		INSERT INTO games (chat_id, started_at)
		VALUES ($1, NOW())
		RETURNING id
	`
	var gameID int64
	if err := tx.QueryRow(ctx, insertGame, chatID).Scan(&gameID); err != nil {
		return 0, fmt.Errorf("failed to create game: %w", err)
	}

	const insertScore = `
		INSERT INTO game_user_scores (game_id, user_id)
		VALUES ($1, $2)
	`
	for _, p := range players {
		if _, err := tx.Exec(ctx, insertScore, gameID, p.ID); err != nil {
			return 0, fmt.Errorf("failed to create score row: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("failed to commit game: %w", err)
	}
	return gameID, nil
}

// Credit adds delta points to a player's score and increments the correct
// answer counter, in one atomic statement.
func (r *GameRepository) Credit(ctx context.Context, gameID, userID int64, delta int) error {
	const query = `
		UPDATE game_user_scores
		SET score = score + $3, n_correct = n_correct + 1
		WHERE game_id = $1 AND user_id = $2
	`

	result, err := r.pool.Exec(ctx, query, gameID, userID, delta)
	if err != nil {
		return fmt.Errorf("failed to credit score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

// Debit subtracts delta points from a player's score and increments the
// wrong answer counter, in one atomic statement.
func (r *GameRepository) Debit(ctx context.Context, gameID, userID int64, delta int) error {
	const query = `
		UPDATE game_user_scores
		SET score = score - $3, n_wrong = n_wrong + 1
		WHERE game_id = $1 AND user_id = $2
	`

	result, err := r.pool.Exec(ctx, query, gameID, userID, delta)
	if err != nil {
		return fmt.Errorf("failed to debit score: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrGameNotFound
	}
	return nil
}

// Scores returns the score rows of a game with player names, in insertion
// order so that equal scores keep a stable ranking.
func (r *GameRepository) Scores(ctx context.Context, gameID int64) ([]model.ScoreRow, error) {
	const query = `
		SELECT s.user_id, p.first_name, p.last_name, s.score, s.n_correct, s.n_wrong
		FROM game_user_scores s
		JOIN players p ON p.id = s.user_id
		WHERE s.game_id = $1
		ORDER BY s.id
	`

	rows, err := r.pool.Query(ctx, query, gameID)
	if err != nil {
		return nil, fmt.Errorf("failed to get scores: %w", err)
	}
	defer rows.Close()

	var scores []model.ScoreRow
	for rows.Next() {
		var s model.ScoreRow
		if err := rows.Scan(&s.UserID, &s.FirstName, &s.LastName, &s.Score, &s.Correct, &s.Wrong); err != nil {
			return nil, fmt.Errorf("failed to scan score: %w", err)
		}
		scores = append(scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating scores: %w", err)
	}
	return scores, nil
}

// Finish marks a game stopped and finished, and closes its outstanding
// round records.
func (r *GameRepository) Finish(ctx context.Context, gameID int64) error {
	const finishGame = `
		UPDATE games
		SET is_stopped = TRUE, finished_at = NOW()
		WHERE id = $1 AND finished_at IS NULL
	`
	if _, err := r.pool.Exec(ctx, finishGame, gameID); err != nil {
		return fmt.Errorf("failed to finish game: %w", err)
	}

	const closeRounds = `
		UPDATE game_questions
		SET is_done = TRUE
		WHERE game_id = $1
	`
	if _, err := r.pool.Exec(ctx, closeRounds, gameID); err != nil {
		return fmt.Errorf("failed to close rounds: %w", err)
	}
	return nil
}

// StopAll marks every unfinished game of a conversation stopped. Used by
// the return-to-menu reset.
func (r *GameRepository) StopAll(ctx context.Context, chatID int64) error {
	const query = `
		UPDATE games
		SET is_stopped = TRUE, finished_at = NOW()
		WHERE chat_id = $1 AND finished_at IS NULL
		RETURNING id
	`

	rows, err := r.pool.Query(ctx, query, chatID)
	if err != nil {
		return fmt.Errorf("failed to stop games: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating stopped games: %w", err)
	}

	const closeRounds = `
		UPDATE game_questions
		SET is_done = TRUE
		WHERE game_id = $1
	`
	for _, id := range ids {
		if _, err := r.pool.Exec(ctx, closeRounds, id); err != nil {
			return fmt.Errorf("failed to close rounds: %w", err)
		}
	}
	return nil
}

// GameByID retrieves a game by id. Returns ErrGameNotFound if missing.
func (r *GameRepository) GameByID(ctx context.Context, gameID int64) (*model.Game, error) {
	const query = `
		SELECT id, chat_id, is_stopped, started_at, finished_at
		FROM games
		WHERE id = $1
	`

	var g model.Game
	err := r.pool.QueryRow(ctx, query, gameID).Scan(&g.ID, &g.ChatID, &g.IsStopped, &g.StartedAt, &g.FinishedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrGameNotFound
		}
		return nil, fmt.Errorf("failed to get game: %w", err)
	}
	return &g, nil
}

// FinishedSummaries returns every finished game with its final scores,
// ordered by start time. Consumed by the statistics aggregation.
func (r *GameRepository) FinishedSummaries(ctx context.Context) ([]model.GameSummary, error) {
	const query = `
		SELECT g.id, g.started_at, g.finished_at,
		       s.user_id, p.first_name, p.last_name, s.score, s.n_correct, s.n_wrong
		FROM games g
		JOIN game_user_scores s ON s.game_id = g.id
		JOIN players p ON p.id = s.user_id
		WHERE g.finished_at IS NOT NULL
		ORDER BY g.started_at, g.id, s.id
	`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch game summaries: %w", err)
	}
	defer rows.Close()

	var games []model.GameSummary
	byID := make(map[int64]int)
	for rows.Next() {
		var g model.GameSummary
		var s model.ScoreRow
		if err := rows.Scan(&g.ID, &g.StartedAt, &g.FinishedAt,
			&s.UserID, &s.FirstName, &s.LastName, &s.Score, &s.Correct, &s.Wrong); err != nil {
			return nil, fmt.Errorf("failed to scan game summary: %w", err)
		}
		idx, ok := byID[g.ID]
		if !ok {
			games = append(games, g)
			idx = len(games) - 1
			byID[g.ID] = idx
		}
		games[idx].Scores = append(games[idx].Scores, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating game summaries: %w", err)
	}
	return games, nil
}
