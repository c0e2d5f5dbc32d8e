// Package model defines the data models for the quiz game bot.
package model

import "time"

// Player represents a chat member who has joined at least one game.
type Player struct {
	ID        int64     `db:"id"`
	FirstName string    `db:"first_name"`
	LastName  string    `db:"last_name"`
	JoinedAt  time.Time `db:"joined_at"`
}

// Name returns the player's display name.
func (p Player) Name() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Theme is a named bucket of questions. The turn owner picks one each round.
type Theme struct {
	ID    int64  `db:"id"`
	Title string `db:"title"`
}

// Answer is one of the four options shown for a question.
type Answer struct {
	ID        int64  `db:"id"`
	Title     string `db:"title"`
	IsCorrect bool   `db:"is_correct"`
}

// Question belongs to a theme and carries exactly four answers, exactly one
// of which is correct. The invariant is enforced at creation time by the
// quiz service.
type Question struct {
	ID      int64    `db:"id"`
	ThemeID int64    `db:"theme_id"`
	Title   string   `db:"title"`
	Answers []Answer `db:"-"`
}

// Game is one play-through in a single conversation.
type Game struct {
	ID         int64      `db:"id"`
	ChatID     int64      `db:"chat_id"`
	IsStopped  bool       `db:"is_stopped"`
	StartedAt  time.Time  `db:"started_at"`
	FinishedAt *time.Time `db:"finished_at"`
}

// ScoreRow is a player's durable per-game score record.
type ScoreRow struct {
	UserID    int64  `db:"user_id"`
	FirstName string `db:"first_name"`
	LastName  string `db:"last_name"`
	Score     int    `db:"score"`
	Correct   int    `db:"n_correct"`
	Wrong     int    `db:"n_wrong"`
}

// Name returns the display name of the scored player.
func (s ScoreRow) Name() string {
	if s.LastName == "" {
		return s.FirstName
	}
	return s.FirstName + " " + s.LastName
}

// GameSummary is a finished game with its final scores, used by the
// statistics aggregation.
type GameSummary struct {
	ID         int64
	StartedAt  time.Time
	FinishedAt *time.Time
	Scores     []ScoreRow
}

// BestScore is a player's best score across finished games.
type BestScore struct {
	UserID int64
	Name   string
	Score  int
}

// WinCount is the number of finished games a player ended in first place.
type WinCount struct {
	UserID int64
	Name   string
	Wins   int
}

// GameStats aggregates finished games for reporting.
type GameStats struct {
	GamesTotal      int
	AverageDuration time.Duration
	TopScorers      []BestScore
	TopWinners      []WinCount
}
