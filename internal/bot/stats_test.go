package bot

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"quiz-game-bot/internal/model"
)

func TestFormatStatsEmpty(t *testing.T) {
	text := formatStats(&model.GameStats{})
	assert.Contains(t, text, "No finished games")
}

func TestFormatStats(t *testing.T) {
	text := formatStats(&model.GameStats{
		GamesTotal:      3,
		AverageDuration: 20 * time.Minute,
		TopScorers: []model.BestScore{
			{UserID: 2, Name: "Alan", Score: 2000},
			{UserID: 1, Name: "Ada", Score: 1500},
		},
		TopWinners: []model.WinCount{
			{UserID: 1, Name: "Ada", Wins: 2},
		},
	})

	assert.Contains(t, text, "Games played: 3")
	assert.Contains(t, text, "Average game: 20m")
	assert.Contains(t, text, "🥇 Alan: 2000")
	assert.Contains(t, text, "🥈 Ada: 1500")
	assert.Contains(t, text, "🥇 Ada: 2")
}

func TestFormatDuration(t *testing.T) {
	cases := map[time.Duration]string{
		0:                                "0s",
		45 * time.Second:                 "45s",
		20 * time.Minute:                 "20m",
		time.Hour + 2*time.Minute:        "1h2m",
		time.Hour + 30*time.Second:       "1h30s",
		90*time.Minute + 500*time.Millisecond: "1h30m1s",
	}
	for d, want := range cases {
		assert.Equal(t, want, formatDuration(d), "duration %s", d)
	}
}
