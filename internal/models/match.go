package models

import "time"

type MatchState string

const (
	MatchStateOpen      MatchState = "open"
	MatchStatePartial   MatchState = "partial"
	MatchStateFinalized MatchState = "finalized"
)

type Team string

const (
	TeamA Team = "A"
	TeamB Team = "B"
)

// Teams is a 2v2 split. A and B are disjoint.
type Teams struct {
	A [2]string `json:"a"`
	B [2]string `json:"b"`
}

// Members returns the players of one side.
func (t Teams) Members(team Team) []string {
	if team == TeamA {
		return []string{t.A[0], t.A[1]}
	}
	return []string{t.B[0], t.B[1]}
}

type Scores struct {
	A *int `json:"a"`
	B *int `json:"b"`
}

func (s Scores) Get(team Team) *int {
	if team == TeamA {
		return s.A
	}
	return s.B
}

func (s *Scores) Set(team Team, v *int) {
	if team == TeamA {
		s.A = v
	} else {
		s.B = v
	}
}

type Match struct {
	ID        string     `json:"id"`
	Players   []string   `json:"players"`
	Teams     Teams      `json:"teams"`
	Scores    Scores     `json:"scores"`
	State     MatchState `json:"state"`
	CreatedAt time.Time  `json:"createdAt"`
}

// Clone returns a deep copy safe to hand out of the lobby lock.
func (m *Match) Clone() *Match {
	if m == nil {
		return nil
	}
	c := *m
	c.Players = append([]string(nil), m.Players...)
	if m.Scores.A != nil {
		a := *m.Scores.A
		c.Scores.A = &a
	}
	if m.Scores.B != nil {
		b := *m.Scores.B
		c.Scores.B = &b
	}
	return &c
}

func (m *Match) HasPlayer(playerID string) bool {
	if m == nil {
		return false
	}
	for _, p := range m.Players {
		if p == playerID {
			return true
		}
	}
	return false
}

// RatingChange is one player's rating transition from a finalized match.
type RatingChange struct {
	PlayerID  string `json:"playerId"`
	OldRating int    `json:"oldRating"`
	NewRating int    `json:"newRating"`
	Delta     int    `json:"delta"`
}

type MatchResult struct {
	Winner Team `json:"winner"`
	AScore int  `json:"aScore"`
	BScore int  `json:"bScore"`
}
