package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quiz-game-bot/internal/model"
)

func finishedGame(id int64, start time.Time, d time.Duration, scores ...model.ScoreRow) model.GameSummary {
	end := start.Add(d)
	return model.GameSummary{ID: id, StartedAt: start, FinishedAt: &end, Scores: scores}
}

func TestAggregateEmpty(t *testing.T) {
	stats := Aggregate(nil, 5)
	assert.Zero(t, stats.GamesTotal)
	assert.Zero(t, stats.AverageDuration)
	assert.Empty(t, stats.TopScorers)
	assert.Empty(t, stats.TopWinners)
}

func TestAggregate(t *testing.T) {
	start := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	ada := func(score int) model.ScoreRow {
		return model.ScoreRow{UserID: 1, FirstName: "Ada", Score: score}
	}
	alan := func(score int) model.ScoreRow {
		return model.ScoreRow{UserID: 2, FirstName: "Alan", Score: score}
	}

	stats := Aggregate([]model.GameSummary{
		finishedGame(1, start, 10*time.Minute, ada(1500), alan(500)),
		finishedGame(2, start, 20*time.Minute, ada(-500), alan(2000)),
		finishedGame(3, start, 30*time.Minute, ada(1000), alan(1000)),
	}, 5)

	assert.Equal(t, 3, stats.GamesTotal)
	assert.Equal(t, 20*time.Minute, stats.AverageDuration)

	// Best scores: Alan 2000, Ada 1500.
	assert.Equal(t, []model.BestScore{
		{UserID: 2, Name: "Alan", Score: 2000},
		{UserID: 1, Name: "Ada", Score: 1500},
	}, stats.TopScorers)

	// Game 3 is a tie; the first score row wins it, so Ada and Alan
	// take one extra win and one win respectively.
	assert.Equal(t, []model.WinCount{
		{UserID: 1, Name: "Ada", Wins: 2},
		{UserID: 2, Name: "Alan", Wins: 1},
	}, stats.TopWinners)
}

func TestAggregateCapsTables(t *testing.T) {
	start := time.Now()
	var scores []model.ScoreRow
	for i := int64(1); i <= 4; i++ {
		scores = append(scores, model.ScoreRow{UserID: i, FirstName: "p", Score: int(i) * 100})
	}

	stats := Aggregate([]model.GameSummary{finishedGame(1, start, time.Minute, scores...)}, 2)
	assert.Len(t, stats.TopScorers, 2)
	assert.Equal(t, 400, stats.TopScorers[0].Score)
	assert.Len(t, stats.TopWinners, 1)
}
