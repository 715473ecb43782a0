package models

import (
	"strings"
	"time"
)

const (
	DefaultRating = 1000
	MinRating     = 100

	// FakePlayerPrefix marks the filler players of "lfg test". They never
	// receive notifications.
	FakePlayerPrefix = "U_FAKE"
)

func IsFakePlayer(playerID string) bool {
	return strings.HasPrefix(playerID, FakePlayerPrefix)
}

// PlayerStats is the persisted rating and win/loss record of a player.
type PlayerStats struct {
	PlayerID  string    `json:"playerId" db:"player_id"`
	Rating    int       `json:"rating" db:"rating"`
	Wins      int       `json:"wins" db:"wins"`
	Losses    int       `json:"losses" db:"losses"`
	UpdatedAt time.Time `json:"updatedAt" db:"updated_at"`
}

// NewPlayerStats returns the record of a player never seen before.
func NewPlayerStats(playerID string) PlayerStats {
	return PlayerStats{
		PlayerID: playerID,
		Rating:   DefaultRating,
	}
}

func (p PlayerStats) TotalMatches() int {
	return p.Wins + p.Losses
}

type JoinRequest struct {
	Player string `json:"player" binding:"required"`
}

type ScoreRequest struct {
	Team  string `json:"team" binding:"required"`
	Score *int   `json:"score" binding:"required"`
}

type ResultRequest struct {
	AWins *int `json:"aWins" binding:"required"`
	BWins *int `json:"bWins" binding:"required"`
}

type CommandRequest struct {
	UserID string `json:"userId" binding:"required"`
	Text   string `json:"text"`
}
