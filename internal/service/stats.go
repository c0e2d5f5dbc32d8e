package service

import (
	"context"
	"sort"
	"time"

	"quiz-game-bot/internal/model"
)

// GameSummarySource supplies finished games for aggregation.
type GameSummarySource interface {
	FinishedSummaries(ctx context.Context) ([]model.GameSummary, error)
}

// StatsService aggregates finished games into chat-facing statistics.
type StatsService struct {
	src  GameSummarySource
	topN int
}

// NewStatsService creates a new StatsService instance. topN caps the
// top-scorer and top-winner tables.
func NewStatsService(src GameSummarySource, topN int) *StatsService {
	return &StatsService{src: src, topN: topN}
}

// Stats loads all finished games and aggregates them.
func (s *StatsService) Stats(ctx context.Context) (*model.GameStats, error) {
	summaries, err := s.src.FinishedSummaries(ctx)
	if err != nil {
		return nil, err
	}
	stats := Aggregate(summaries, s.topN)
	return &stats, nil
}

// Aggregate folds finished games into totals, the average game duration,
// each player's best score, and first-place counts. A game's winner is
// its top score row; ties go to whoever joined first, matching the
// scoreboard order.
func Aggregate(summaries []model.GameSummary, topN int) model.GameStats {
	stats := model.GameStats{GamesTotal: len(summaries)}

	var total time.Duration
	timed := 0
	best := make(map[int64]model.BestScore)
	wins := make(map[int64]model.WinCount)

	for _, g := range summaries {
		if g.FinishedAt != nil {
			total += g.FinishedAt.Sub(g.StartedAt)
			timed++
		}
		if len(g.Scores) == 0 {
			continue
		}

		ranked := append([]model.ScoreRow(nil), g.Scores...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return ranked[i].Score > ranked[j].Score
		})

		winner := ranked[0]
		w := wins[winner.UserID]
		w.UserID = winner.UserID
		w.Name = winner.Name()
		w.Wins++
		wins[winner.UserID] = w

		for _, row := range g.Scores {
			b, ok := best[row.UserID]
			if !ok || row.Score > b.Score {
				best[row.UserID] = model.BestScore{
					UserID: row.UserID,
					Name:   row.Name(),
					Score:  row.Score,
				}
			}
		}
	}

	if timed > 0 {
		stats.AverageDuration = total / time.Duration(timed)
	}

	for _, b := range best {
		stats.TopScorers = append(stats.TopScorers, b)
	}
	sort.Slice(stats.TopScorers, func(i, j int) bool {
		a, b := stats.TopScorers[i], stats.TopScorers[j]
		if a.Score != b.Score {
			return a.Score > b.Score
		}
		return a.UserID < b.UserID
	})
	if topN > 0 && len(stats.TopScorers) > topN {
		stats.TopScorers = stats.TopScorers[:topN]
	}

	for _, w := range wins {
		stats.TopWinners = append(stats.TopWinners, w)
	}
	sort.Slice(stats.TopWinners, func(i, j int) bool {
		a, b := stats.TopWinners[i], stats.TopWinners[j]
		if a.Wins != b.Wins {
			return a.Wins > b.Wins
		}
		return a.UserID < b.UserID
	})
	if topN > 0 && len(stats.TopWinners) > topN {
		stats.TopWinners = stats.TopWinners[:topN]
	}

	return stats
}
