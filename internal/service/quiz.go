// Package service contains the application services: quiz content
// management and game statistics.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
)

// Content validation errors.
var (
	ErrEmptyTitle   = errors.New("title must not be empty")
	ErrAnswerCount  = errors.New("a question needs exactly four answers")
	ErrCorrectCount = errors.New("a question needs exactly one correct answer")
)

// AnswersPerQuestion is fixed by the answer keyboard layout.
const AnswersPerQuestion = 4

// QuestionStore is the content persistence the quiz service writes to.
type QuestionStore interface {
	ThemeByTitle(ctx context.Context, title string) (*model.Theme, error)
	CreateTheme(ctx context.Context, title string) (*model.Theme, error)
	CreateQuestion(ctx context.Context, themeID int64, title string, answers []model.Answer) (*model.Question, error)
}

// QuizService validates and stores quiz content. The four-answers,
// one-correct invariant the game relies on is enforced here, before
// anything reaches the database.
type QuizService struct {
	store QuestionStore
}

// NewQuizService creates a new QuizService instance.
func NewQuizService(store QuestionStore) *QuizService {
	return &QuizService{store: store}
}

// CreateQuestion validates a question and stores it under a theme.
func (s *QuizService) CreateQuestion(ctx context.Context, themeID int64, title string, answers []model.Answer) (*model.Question, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	if len(answers) != AnswersPerQuestion {
		return nil, fmt.Errorf("%w, got %d", ErrAnswerCount, len(answers))
	}
	correct := 0
	for _, a := range answers {
		if strings.TrimSpace(a.Title) == "" {
			return nil, ErrEmptyTitle
		}
		if a.IsCorrect {
			correct++
		}
	}
	if correct != 1 {
		return nil, fmt.Errorf("%w, got %d", ErrCorrectCount, correct)
	}
	return s.store.CreateQuestion(ctx, themeID, title, answers)
}

// EnsureTheme returns the theme with the given title, creating it if
// needed.
func (s *QuizService) EnsureTheme(ctx context.Context, title string) (*model.Theme, error) {
	if strings.TrimSpace(title) == "" {
		return nil, ErrEmptyTitle
	}
	theme, err := s.store.ThemeByTitle(ctx, title)
	if err == nil {
		return theme, nil
	}
	if !errors.Is(err, repository.ErrThemeNotFound) {
		return nil, err
	}
	return s.store.CreateTheme(ctx, title)
}

// themeImport is the JSON shape of one theme in a content file.
type themeImport struct {
	Title     string `json:"title"`
	Questions []struct {
		Title   string `json:"title"`
		Answers []struct {
			Title   string `json:"title"`
			Correct bool   `json:"correct"`
		} `json:"answers"`
	} `json:"questions"`
}

// Load imports quiz content from a JSON stream: an array of themes, each
// with its questions and answers. Themes are matched by title, so loading
// the same file twice duplicates questions but not themes.
func (s *QuizService) Load(ctx context.Context, r io.Reader) (int, error) {
	var themes []themeImport
	if err := json.NewDecoder(r).Decode(&themes); err != nil {
		return 0, fmt.Errorf("failed to decode content: %w", err)
	}

	loaded := 0
	for _, t := range themes {
		theme, err := s.EnsureTheme(ctx, t.Title)
		if err != nil {
			return loaded, fmt.Errorf("theme %q: %w", t.Title, err)
		}
		for _, q := range t.Questions {
			answers := make([]model.Answer, 0, len(q.Answers))
			for _, a := range q.Answers {
				answers = append(answers, model.Answer{Title: a.Title, IsCorrect: a.Correct})
			}
			if _, err := s.CreateQuestion(ctx, theme.ID, q.Title, answers); err != nil {
				return loaded, fmt.Errorf("question %q: %w", q.Title, err)
			}
			loaded++
		}
		log.Info().Str("theme", t.Title).Int("questions", len(t.Questions)).Msg("Theme loaded")
	}
	return loaded, nil
}
