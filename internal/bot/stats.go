package bot

import (
	"fmt"
	"strings"
	"time"

	"quiz-game-bot/internal/model"
)

var medals = [3]string{"🥇", "🥈", "🥉"}

// formatStats renders the /stats report.
func formatStats(stats *model.GameStats) string {
	if stats.GamesTotal == 0 {
		return "No finished games yet. Start one! 🎲"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📈 Games played: %d\n", stats.GamesTotal)
	fmt.Fprintf(&b, "⏱ Average game: %s\n", formatDuration(stats.AverageDuration))

	if len(stats.TopScorers) > 0 {
		b.WriteString("\nBest scores:\n")
		for i, s := range stats.TopScorers {
			fmt.Fprintf(&b, "%s %s: %d\n", rankMark(i), s.Name, s.Score)
		}
	}
	if len(stats.TopWinners) > 0 {
		b.WriteString("\nMost wins:\n")
		for i, w := range stats.TopWinners {
			fmt.Fprintf(&b, "%s %s: %d\n", rankMark(i), w.Name, w.Wins)
		}
	}
	return b.String()
}

func rankMark(i int) string {
	if i < len(medals) {
		return medals[i]
	}
	return "👤"
}

// formatDuration rounds to whole seconds and drops zero units, so "1h2m"
// instead of "1h2m0.73s".
func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	if d <= 0 {
		return "0s"
	}
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60

	var b strings.Builder
	if h > 0 {
		fmt.Fprintf(&b, "%dh", h)
	}
	if m > 0 {
		fmt.Fprintf(&b, "%dm", m)
	}
	if s > 0 || b.Len() == 0 {
		fmt.Fprintf(&b, "%ds", s)
	}
	return b.String()
}
