package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quiz-game-bot/internal/model"
	"quiz-game-bot/internal/repository"
)

// fakeStore keeps themes and questions in memory.
type fakeStore struct {
	themes    []model.Theme
	questions []model.Question
	nextID    int64
}

func (f *fakeStore) ThemeByTitle(_ context.Context, title string) (*model.Theme, error) {
	for _, t := range f.themes {
		if t.Title == title {
			th := t
			return &th, nil
		}
	}
	return nil, repository.ErrThemeNotFound
}

func (f *fakeStore) CreateTheme(_ context.Context, title string) (*model.Theme, error) {
	f.nextID++
	t := model.Theme{ID: f.nextID, Title: title}
	f.themes = append(f.themes, t)
	return &t, nil
}

func (f *fakeStore) CreateQuestion(_ context.Context, themeID int64, title string, answers []model.Answer) (*model.Question, error) {
	f.nextID++
	q := model.Question{ID: f.nextID, ThemeID: themeID, Title: title, Answers: answers}
	f.questions = append(f.questions, q)
	return &q, nil
}

func validAnswers() []model.Answer {
	return []model.Answer{
		{Title: "a", IsCorrect: true},
		{Title: "b"}, {Title: "c"}, {Title: "d"},
	}
}

func TestCreateQuestionValidation(t *testing.T) {
	svc := NewQuizService(&fakeStore{})
	ctx := context.Background()

	_, err := svc.CreateQuestion(ctx, 1, "  ", validAnswers())
	assert.ErrorIs(t, err, ErrEmptyTitle)

	_, err = svc.CreateQuestion(ctx, 1, "q", validAnswers()[:3])
	assert.ErrorIs(t, err, ErrAnswerCount)

	none := validAnswers()
	none[0].IsCorrect = false
	_, err = svc.CreateQuestion(ctx, 1, "q", none)
	assert.ErrorIs(t, err, ErrCorrectCount)

	two := validAnswers()
	two[1].IsCorrect = true
	_, err = svc.CreateQuestion(ctx, 1, "q", two)
	assert.ErrorIs(t, err, ErrCorrectCount)

	blank := validAnswers()
	blank[2].Title = ""
	_, err = svc.CreateQuestion(ctx, 1, "q", blank)
	assert.ErrorIs(t, err, ErrEmptyTitle)

	q, err := svc.CreateQuestion(ctx, 1, "q", validAnswers())
	require.NoError(t, err)
	assert.Len(t, q.Answers, 4)
}

func TestEnsureThemeReusesExisting(t *testing.T) {
	store := &fakeStore{}
	svc := NewQuizService(store)
	ctx := context.Background()

	first, err := svc.EnsureTheme(ctx, "Space")
	require.NoError(t, err)
	second, err := svc.EnsureTheme(ctx, "Space")
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	assert.Len(t, store.themes, 1)
}

func TestLoadImportsContent(t *testing.T) {
	store := &fakeStore{}
	svc := NewQuizService(store)

	content := `[
		{
			"title": "Space",
			"questions": [
				{
					"title": "Which planet is red?",
					"answers": [
						{"title": "Mars", "correct": true},
						{"title": "Venus"},
						{"title": "Pluto"},
						{"title": "Io"}
					]
				}
			]
		},
		{"title": "History", "questions": []}
	]`

	loaded, err := svc.Load(context.Background(), strings.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, 1, loaded)
	assert.Len(t, store.themes, 2)
	require.Len(t, store.questions, 1)
	assert.Equal(t, "Which planet is red?", store.questions[0].Title)
}

func TestLoadRejectsInvalidContent(t *testing.T) {
	svc := NewQuizService(&fakeStore{})

	bad := `[{"title": "Space", "questions": [{"title": "q", "answers": [{"title": "a"}]}]}]`
	_, err := svc.Load(context.Background(), strings.NewReader(bad))
	assert.ErrorIs(t, err, ErrAnswerCount)

	_, err = svc.Load(context.Background(), strings.NewReader("not json"))
	assert.Error(t, err)
}
