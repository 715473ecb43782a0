package repository

import (
	"context"
	"sync"
	"time"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
)

// MemoryPlayerRepository keeps player stats in process memory.
type MemoryPlayerRepository struct {
	mu      sync.RWMutex
	players map[string]models.PlayerStats
	now     func() time.Time
}

func NewMemoryPlayerRepository() *MemoryPlayerRepository {
	return &MemoryPlayerRepository{
		players: make(map[string]models.PlayerStats),
		now:     time.Now,
	}
}

func (r *MemoryPlayerRepository) Get(ctx context.Context, playerID string) (models.PlayerStats, error) {
	if playerID == "" {
		return models.PlayerStats{}, ErrEmptyPlayerID
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if stats, ok := r.players[playerID]; ok {
		return stats, nil
	}
	return models.NewPlayerStats(playerID), nil
}

func (r *MemoryPlayerRepository) GetMany(ctx context.Context, playerIDs []string) (map[string]models.PlayerStats, error) {
	if err := validateIDs(playerIDs); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]models.PlayerStats, len(playerIDs))
	for _, id := range playerIDs {
		if stats, ok := r.players[id]; ok {
			out[id] = stats
		} else {
			out[id] = models.NewPlayerStats(id)
		}
	}
	return out, nil
}

func (r *MemoryPlayerRepository) List(ctx context.Context) ([]models.PlayerStats, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]models.PlayerStats, 0, len(r.players))
	for _, stats := range r.players {
		out = append(out, stats)
	}
	sortByPlayerID(out)
	return out, nil
}

// Update works on copies and swaps them in only after fn succeeds.
func (r *MemoryPlayerRepository) Update(ctx context.Context, playerIDs []string, fn UpdateFunc) error {
	if err := validateIDs(playerIDs); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	records := make(map[string]*models.PlayerStats, len(playerIDs))
	for _, id := range playerIDs {
		stats, ok := r.players[id]
		if !ok {
			stats = models.NewPlayerStats(id)
		}
		records[id] = &stats
	}

	if err := fn(records); err != nil {
		return err
	}

	now := r.now()
	for id, stats := range records {
		stats.PlayerID = id
		stats.UpdatedAt = now
		r.players[id] = *stats
	}
	return nil
}

func (r *MemoryPlayerRepository) Close() error {
	return nil
}
