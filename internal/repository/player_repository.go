package repository

import (
	"context"
	"errors"
	"sort"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
)

var ErrEmptyPlayerID = errors.New("player id is empty")

// UpdateFunc mutates the loaded records in place. Returning an error aborts
// the update and nothing is written.
type UpdateFunc func(records map[string]*models.PlayerStats) error

// PlayerRepository stores ratings and win/loss counters keyed by player.
// Unknown players read as models.NewPlayerStats.
type PlayerRepository interface {
	Get(ctx context.Context, playerID string) (models.PlayerStats, error)
	GetMany(ctx context.Context, playerIDs []string) (map[string]models.PlayerStats, error)
	List(ctx context.Context) ([]models.PlayerStats, error)
	// Update loads playerIDs, applies fn and persists every loaded record
	// atomically: either all of them are written or none.
	Update(ctx context.Context, playerIDs []string, fn UpdateFunc) error
	Close() error
}

func sortByPlayerID(stats []models.PlayerStats) {
	sort.Slice(stats, func(i, j int) bool {
		return stats[i].PlayerID < stats[j].PlayerID
	})
}

func validateIDs(playerIDs []string) error {
	for _, id := range playerIDs {
		if id == "" {
			return ErrEmptyPlayerID
		}
	}
	return nil
}
