package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/internal/repository"
)

// HistoryService tracks cumulative wins and losses per player.
type HistoryService struct {
	repo repository.PlayerRepository
	mu   sync.Mutex
}

func NewHistoryService(repo repository.PlayerRepository) *HistoryService {
	return &HistoryService{repo: repo}
}

// Record adds one win to every winner and one loss to every loser.
func (s *HistoryService) Record(ctx context.Context, winners, losers []string) error {
	if err := validateSides(winners, losers); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	ids := append(append([]string(nil), winners...), losers...)
	err := s.repo.Update(ctx, ids, func(records map[string]*models.PlayerStats) error {
		recordResultTo(records, winners, losers)
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return nil
}

// Get returns (wins, losses), (0, 0) for an unseen player.
func (s *HistoryService) Get(ctx context.Context, playerID string) (int, int, error) {
	stats, err := s.Stats(ctx, playerID)
	if err != nil {
		return 0, 0, err
	}
	return stats.Wins, stats.Losses, nil
}

// Stats returns the full record including the rating.
func (s *HistoryService) Stats(ctx context.Context, playerID string) (models.PlayerStats, error) {
	if playerID == "" {
		return models.PlayerStats{}, fmt.Errorf("%w: empty player id", ErrInvalidInput)
	}
	stats, err := s.repo.Get(ctx, playerID)
	if err != nil {
		return models.PlayerStats{}, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return stats, nil
}

func recordResultTo(records map[string]*models.PlayerStats, winners, losers []string) {
	for _, id := range winners {
		records[id].Wins++
	}
	for _, id := range losers {
		records[id].Losses++
	}
}
