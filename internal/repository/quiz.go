// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"quiz-game-bot/internal/model"
)

// Common errors for repository operations.
var (
	ErrThemeNotFound    = errors.New("theme not found")
	ErrQuestionNotFound = errors.New("question not found")
)

// QuizRepository is the question/theme source: read-mostly content the game
// draws questions from.
type QuizRepository struct {
	pool *pgxpool.Pool
}

// NewQuizRepository creates a new QuizRepository instance.
func NewQuizRepository(pool *pgxpool.Pool) *QuizRepository {
	return &QuizRepository{pool: pool}
}

// CreateTheme inserts a theme and returns it.
func (r *QuizRepository) CreateTheme(ctx context.Context, title string) (*model.Theme, error) {
	const query = `
		INSERT INTO themes (title)
		VALUES ($1)
		RETURNING id, title
	`

	var theme model.Theme
	if err := r.pool.QueryRow(ctx, query, title).Scan(&theme.ID, &theme.Title); err != nil {
		return nil, fmt.Errorf("failed to create theme: %w", err)
	}
	return &theme, nil
}

// ThemeByTitle retrieves a theme by its title.
// Returns ErrThemeNotFound if no such theme exists.
func (r *QuizRepository) ThemeByTitle(ctx context.Context, title string) (*model.Theme, error) {
	const query = `SELECT id, title FROM themes WHERE title = $1`

	var theme model.Theme
	err := r.pool.QueryRow(ctx, query, title).Scan(&theme.ID, &theme.Title)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrThemeNotFound
		}
		return nil, fmt.Errorf("failed to get theme: %w", err)
	}
	return &theme, nil
}

// ListThemes returns all themes.
func (r *QuizRepository) ListThemes(ctx context.Context) ([]model.Theme, error) {
	const query = `SELECT id, title FROM themes ORDER BY id`

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list themes: %w", err)
	}
	defer rows.Close()

	var themes []model.Theme
	for rows.Next() {
		var theme model.Theme
		if err := rows.Scan(&theme.ID, &theme.Title); err != nil {
			return nil, fmt.Errorf("failed to scan theme: %w", err)
		}
		themes = append(themes, theme)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating themes: %w", err)
	}
	return themes, nil
}

// CreateQuestion inserts a question with its answers in one transaction.
// Answer validation (four answers, exactly one correct) happens in the quiz
// service before this call.
func (r *QuizRepository) CreateQuestion(ctx context.Context, themeID int64, title string, answers []model.Answer) (*model.Question, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuestion = `
		INSERT INTO questions (theme_id, title)
		VALUES ($1, $2)
		RETURNING id, theme_id, title
	`
	var q model.Question
	if err := tx.QueryRow(ctx, insertQuestion, themeID, title).Scan(&q.ID, &q.ThemeID, &q.Title); err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	const insertAnswer = `
		INSERT INTO answers (question_id, title, is_correct)
		VALUES ($1, $2, $3)
		RETURNING id
	`
	for _, a := range answers {
		var id int64
		if err := tx.QueryRow(ctx, insertAnswer, q.ID, a.Title, a.IsCorrect).Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to create answer: %w", err)
		}
		q.Answers = append(q.Answers, model.Answer{ID: id, Title: a.Title, IsCorrect: a.IsCorrect})
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit question: %w", err)
	}
	return &q, nil
}

// ListUnasked returns the questions of a theme that have not yet been asked
// within the given game, answers included.
func (r *QuizRepository) ListUnasked(ctx context.Context, gameID, themeID int64) ([]model.Question, error) {
	const query = `
		SELECT q.id, q.theme_id, q.title, a.id, a.title, a.is_correct
		FROM questions q
		JOIN answers a ON a.question_id = q.id
		WHERE q.theme_id = $2
		  AND q.id NOT IN (SELECT question_id FROM game_questions WHERE game_id = $1)
		ORDER BY q.id, a.id
	`

	rows, err := r.pool.Query(ctx, query, gameID, themeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list unasked questions: %w", err)
	}
	defer rows.Close()

	var questions []model.Question
	byID := make(map[int64]int)
	for rows.Next() {
		var q model.Question
		var a model.Answer
		if err := rows.Scan(&q.ID, &q.ThemeID, &q.Title, &a.ID, &a.Title, &a.IsCorrect); err != nil {
			return nil, fmt.Errorf("failed to scan question: %w", err)
		}
		idx, ok := byID[q.ID]
		if !ok {
			questions = append(questions, q)
			idx = len(questions) - 1
			byID[q.ID] = idx
		}
		questions[idx].Answers = append(questions[idx].Answers, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating questions: %w", err)
	}
	return questions, nil
}

// MarkAsked records that a question was consumed within a game, so it is
// never offered again in that game.
func (r *QuizRepository) MarkAsked(ctx context.Context, gameID, questionID int64) error {
	const query = `
		INSERT INTO game_questions (game_id, question_id, started_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (game_id, question_id) DO NOTHING
	`

	if _, err := r.pool.Exec(ctx, query, gameID, questionID); err != nil {
		return fmt.Errorf("failed to mark question asked: %w", err)
	}
	return nil
}

// SetOutcome records whether an asked question was answered correctly and
// closes the round for it.
func (r *QuizRepository) SetOutcome(ctx context.Context, gameID, questionID int64, answered bool) error {
	const query = `
		UPDATE game_questions
		SET is_answered = $3, is_done = TRUE
		WHERE game_id = $1 AND question_id = $2
	`

	result, err := r.pool.Exec(ctx, query, gameID, questionID, answered)
	if err != nil {
		return fmt.Errorf("failed to set question outcome: %w", err)
	}
	if result.RowsAffected() == 0 {
		return ErrQuestionNotFound
	}
	return nil
}
