package service

import (
	"fmt"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
)

// bipartitions lists the three ways to split four players into two pairs.
// players[0] is always on team A so no split is visited twice.
var bipartitions = [3][2][2]int{
	{{0, 1}, {2, 3}},
	{{0, 2}, {1, 3}},
	{{0, 3}, {1, 2}},
}

// TeamBalancer splits four players into the 2v2 with the smallest rating gap.
type TeamBalancer struct{}

func NewTeamBalancer() *TeamBalancer {
	return &TeamBalancer{}
}

// Split returns the first split, in bipartitions order, that minimizes
// |sum(A) - sum(B)|.
func (b *TeamBalancer) Split(players []string, rating func(string) int) (models.Teams, error) {
	if len(players) != 4 {
		return models.Teams{}, fmt.Errorf("%w: team split needs 4 players, got %d", ErrInvalidInput, len(players))
	}

	seen := make(map[string]struct{}, 4)
	for _, p := range players {
		if p == "" {
			return models.Teams{}, fmt.Errorf("%w: empty player id", ErrInvalidInput)
		}
		if _, dup := seen[p]; dup {
			return models.Teams{}, fmt.Errorf("%w: duplicate player %s", ErrInvalidInput, p)
		}
		seen[p] = struct{}{}
	}

	ratings := make([]int, 4)
	for i, p := range players {
		ratings[i] = rating(p)
	}

	var best models.Teams
	bestDiff := -1
	for _, split := range bipartitions {
		a, bb := split[0], split[1]
		diff := abs(ratings[a[0]] + ratings[a[1]] - ratings[bb[0]] - ratings[bb[1]])
		if bestDiff < 0 || diff < bestDiff {
			bestDiff = diff
			best = models.Teams{
				A: [2]string{players[a[0]], players[a[1]]},
				B: [2]string{players[bb[0]], players[bb[1]]},
			}
		}
	}

	return best, nil
}

// Imbalance is the absolute rating-sum difference between the two teams.
func Imbalance(teams models.Teams, rating func(string) int) int {
	return abs(rating(teams.A[0]) + rating(teams.A[1]) - rating(teams.B[0]) - rating(teams.B[1]))
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
