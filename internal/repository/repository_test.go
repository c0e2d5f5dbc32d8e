// Tests use testcontainers-go to spin up a PostgreSQL container.
package repository

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"quiz-game-bot/internal/model"
)

// checkDockerAvailable checks if Docker is available and running.
func checkDockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB creates a PostgreSQL container and returns a connection pool.
// Skips the test if Docker is not available.
func setupTestDB(t *testing.T) *pgxpool.Pool {
	if !checkDockerAvailable() {
		t.Skip("Docker is not available, skipping integration test")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("testdb"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	require.NoError(t, Migrate(ctx, pool))

	t.Cleanup(func() {
		pool.Close()
		_ = pgContainer.Terminate(ctx)
	})

	return pool
}

// seedGame registers a chat, two players and a fresh game.
func seedGame(t *testing.T, games *GameRepository) (gameID int64, players []model.Player) {
	ctx := context.Background()

	require.NoError(t, games.RegisterChat(ctx, 100))
	players = []model.Player{
		{ID: 1, FirstName: "Ada", LastName: "Lovelace"},
		{ID: 2, FirstName: "Alan", LastName: "Turing"},
	}
	gameID, err := games.CreateGame(ctx, 100, players)
	require.NoError(t, err)
	return gameID, players
}

func TestCreateGameCreatesScoreRows(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	ctx := context.Background()

	gameID, players := seedGame(t, games)

	scores, err := games.Scores(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, scores, len(players))
	for i, s := range scores {
		assert.Equal(t, players[i].ID, s.UserID)
		assert.Zero(t, s.Score)
		assert.Zero(t, s.Correct)
		assert.Zero(t, s.Wrong)
	}
}

func TestCreateGameUpsertsPlayerNames(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	ctx := context.Background()

	require.NoError(t, games.RegisterChat(ctx, 100))
	_, err := games.CreateGame(ctx, 100, []model.Player{{ID: 1, FirstName: "Ada"}})
	require.NoError(t, err)

	// Second game with a changed name must not conflict and must refresh it.
	gameID, err := games.CreateGame(ctx, 100, []model.Player{{ID: 1, FirstName: "Augusta"}})
	require.NoError(t, err)

	scores, err := games.Scores(ctx, gameID)
	require.NoError(t, err)
	require.Len(t, scores, 1)
	assert.Equal(t, "Augusta", scores[0].FirstName)
}

func TestCreditAndDebitAreAdditive(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	ctx := context.Background()

	gameID, _ := seedGame(t, games)

	require.NoError(t, games.Credit(ctx, gameID, 1, 500))
	require.NoError(t, games.Credit(ctx, gameID, 1, 1000))
	require.NoError(t, games.Debit(ctx, gameID, 2, 500))

	scores, err := games.Scores(ctx, gameID)
	require.NoError(t, err)
	assert.Equal(t, 1500, scores[0].Score)
	assert.Equal(t, 2, scores[0].Correct)
	assert.Equal(t, 0, scores[0].Wrong)
	assert.Equal(t, -500, scores[1].Score)
	assert.Equal(t, 1, scores[1].Wrong)
}

func TestCreditUnknownGameReturnsNotFound(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	ctx := context.Background()

	err := games.Credit(ctx, 9999, 1, 500)
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestFinishMarksGameAndRounds(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	quiz := NewQuizRepository(pool)
	ctx := context.Background()

	gameID, _ := seedGame(t, games)

	theme, err := quiz.CreateTheme(ctx, "History")
	require.NoError(t, err)
	q, err := quiz.CreateQuestion(ctx, theme.ID, "First moon landing year?", []model.Answer{
		{Title: "1969", IsCorrect: true},
		{Title: "1971"}, {Title: "1965"}, {Title: "1958"},
	})
	require.NoError(t, err)
	require.NoError(t, quiz.MarkAsked(ctx, gameID, q.ID))

	require.NoError(t, games.Finish(ctx, gameID))

	g, err := games.GameByID(ctx, gameID)
	require.NoError(t, err)
	assert.True(t, g.IsStopped)
	require.NotNil(t, g.FinishedAt)
}

func TestStopAllStopsUnfinishedGames(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	ctx := context.Background()

	gameID, _ := seedGame(t, games)
	require.NoError(t, games.StopAll(ctx, 100))

	g, err := games.GameByID(ctx, gameID)
	require.NoError(t, err)
	assert.True(t, g.IsStopped)
	assert.NotNil(t, g.FinishedAt)
}

func TestListUnaskedExcludesAskedQuestions(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	quiz := NewQuizRepository(pool)
	ctx := context.Background()

	gameID, _ := seedGame(t, games)

	theme, err := quiz.CreateTheme(ctx, "Space")
	require.NoError(t, err)
	answers := []model.Answer{
		{Title: "a", IsCorrect: true}, {Title: "b"}, {Title: "c"}, {Title: "d"},
	}
	q1, err := quiz.CreateQuestion(ctx, theme.ID, "q1", answers)
	require.NoError(t, err)
	q2, err := quiz.CreateQuestion(ctx, theme.ID, "q2", answers)
	require.NoError(t, err)

	unasked, err := quiz.ListUnasked(ctx, gameID, theme.ID)
	require.NoError(t, err)
	require.Len(t, unasked, 2)
	assert.Len(t, unasked[0].Answers, 4)

	require.NoError(t, quiz.MarkAsked(ctx, gameID, q1.ID))

	unasked, err = quiz.ListUnasked(ctx, gameID, theme.ID)
	require.NoError(t, err)
	require.Len(t, unasked, 1)
	assert.Equal(t, q2.ID, unasked[0].ID)

	// Another game still sees both questions.
	otherGame, err := games.CreateGame(ctx, 100, []model.Player{{ID: 1, FirstName: "Ada"}})
	require.NoError(t, err)
	unasked, err = quiz.ListUnasked(ctx, otherGame, theme.ID)
	require.NoError(t, err)
	assert.Len(t, unasked, 2)
}

func TestSetOutcome(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	quiz := NewQuizRepository(pool)
	ctx := context.Background()

	gameID, _ := seedGame(t, games)

	theme, err := quiz.CreateTheme(ctx, "Cinema")
	require.NoError(t, err)
	q, err := quiz.CreateQuestion(ctx, theme.ID, "q", []model.Answer{
		{Title: "a", IsCorrect: true}, {Title: "b"}, {Title: "c"}, {Title: "d"},
	})
	require.NoError(t, err)

	// Outcome before the question was asked is a logic error.
	assert.ErrorIs(t, quiz.SetOutcome(ctx, gameID, q.ID, true), ErrQuestionNotFound)

	require.NoError(t, quiz.MarkAsked(ctx, gameID, q.ID))
	require.NoError(t, quiz.SetOutcome(ctx, gameID, q.ID, true))
}

func TestFinishedSummaries(t *testing.T) {
	pool := setupTestDB(t)
	games := NewGameRepository(pool)
	ctx := context.Background()

	gameID, _ := seedGame(t, games)

	// Unfinished games are excluded.
	summaries, err := games.FinishedSummaries(ctx)
	require.NoError(t, err)
	assert.Empty(t, summaries)

	require.NoError(t, games.Credit(ctx, gameID, 1, 500))
	require.NoError(t, games.Finish(ctx, gameID))

	summaries, err = games.FinishedSummaries(ctx)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, gameID, summaries[0].ID)
	require.Len(t, summaries[0].Scores, 2)
	assert.Equal(t, 500, summaries[0].Scores[0].Score)
	require.NotNil(t, summaries[0].FinishedAt)
}
