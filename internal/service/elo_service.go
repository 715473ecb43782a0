package service

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/internal/repository"
	"github.com/mtricolici98/bot-wuzzler/pkg/logger"
)

// MarginKFactor is the fixed K of the score-margin update.
const MarginKFactor = 32.0

type RatingMode string

const (
	// RatingModeMargin scales a fixed exchange by the score difference.
	RatingModeMargin RatingMode = "margin"
	// RatingModeElo uses the expected score of the team averages.
	RatingModeElo RatingMode = "elo"
)

// ELOService owns player ratings. Every update reads the stored ratings and
// writes the new ones inside a single repository transaction.
type ELOService struct {
	repo    repository.PlayerRepository
	kFactor float64
	mu      sync.Mutex
	logger  *zap.Logger
}

func NewELOService(repo repository.PlayerRepository, kFactor float64) *ELOService {
	if kFactor <= 0 {
		kFactor = 32
	}
	return &ELOService{
		repo:    repo,
		kFactor: kFactor,
		logger:  logger.Named("elo"),
	}
}

func (s *ELOService) KFactor() float64 {
	return s.kFactor
}

// Get returns the player's rating, DefaultRating when unseen.
func (s *ELOService) Get(ctx context.Context, playerID string) (int, error) {
	stats, err := s.repo.Get(ctx, playerID)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	return stats.Rating, nil
}

// Ratings looks up several players at once.
func (s *ELOService) Ratings(ctx context.Context, playerIDs []string) (map[string]int, error) {
	stats, err := s.repo.GetMany(ctx, playerIDs)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	out := make(map[string]int, len(stats))
	for id, st := range stats {
		out[id] = st.Rating
	}
	return out, nil
}

// GetAll returns every stored rating.
func (s *ELOService) GetAll(ctx context.Context) (map[string]int, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}
	out := make(map[string]int, len(all))
	for _, st := range all {
		out[st.PlayerID] = st.Rating
	}
	return out, nil
}

// Leaderboard ranks players by rating, highest first. limit <= 0 means all.
func (s *ELOService) Leaderboard(ctx context.Context, limit int) ([]models.PlayerStats, error) {
	return s.ranked(ctx, limit, func(a, b models.PlayerStats) bool { return a.Rating > b.Rating })
}

// Loserboard ranks players by rating, lowest first.
func (s *ELOService) Loserboard(ctx context.Context, limit int) ([]models.PlayerStats, error) {
	return s.ranked(ctx, limit, func(a, b models.PlayerStats) bool { return a.Rating < b.Rating })
}

func (s *ELOService) ranked(ctx context.Context, limit int, before func(a, b models.PlayerStats) bool) ([]models.PlayerStats, error) {
	all, err := s.repo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Rating != all[j].Rating {
			return before(all[i], all[j])
		}
		return all[i].PlayerID < all[j].PlayerID
	})

	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// ApplyMargin applies the score-margin update. scoreDiff is the winners'
// margin and must not be negative.
func (s *ELOService) ApplyMargin(ctx context.Context, winners, losers []string, scoreDiff int) ([]models.RatingChange, error) {
	return s.apply(ctx, RatingModeMargin, winners, losers, scoreDiff, false)
}

// ApplyElo applies the team Elo update with the configured K-factor.
func (s *ELOService) ApplyElo(ctx context.Context, winners, losers []string) ([]models.RatingChange, error) {
	return s.apply(ctx, RatingModeElo, winners, losers, 0, false)
}

// SettleMatch applies the rating update and records the win/loss history in
// the same transaction.
func (s *ELOService) SettleMatch(ctx context.Context, mode RatingMode, winners, losers []string, scoreDiff int) ([]models.RatingChange, error) {
	return s.apply(ctx, mode, winners, losers, scoreDiff, true)
}

func (s *ELOService) apply(ctx context.Context, mode RatingMode, winners, losers []string, scoreDiff int, withHistory bool) ([]models.RatingChange, error) {
	if err := validateSides(winners, losers); err != nil {
		return nil, err
	}
	if scoreDiff < 0 {
		return nil, fmt.Errorf("%w: negative score difference %d", ErrInvalidInput, scoreDiff)
	}
	if mode != RatingModeMargin && mode != RatingModeElo {
		return nil, fmt.Errorf("%w: unknown rating mode %q", ErrInvalidInput, mode)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var changes []models.RatingChange
	ids := append(append([]string(nil), winners...), losers...)

	err := s.repo.Update(ctx, ids, func(records map[string]*models.PlayerStats) error {
		if mode == RatingModeMargin {
			changes = applyMarginTo(records, winners, losers, scoreDiff)
		} else {
			changes = applyEloTo(records, winners, losers, s.kFactor)
		}
		if withHistory {
			recordResultTo(records, winners, losers)
		}
		return nil
	})
	if err != nil {
		s.logger.Error("Rating update failed",
			zap.String("mode", string(mode)),
			zap.Strings("winners", winners),
			zap.Strings("losers", losers),
			zap.Error(err))
		return nil, fmt.Errorf("%w: %w", ErrPersistence, err)
	}

	s.logger.Info("Ratings updated",
		zap.String("mode", string(mode)),
		zap.Strings("winners", winners),
		zap.Strings("losers", losers),
		zap.Int("scoreDiff", scoreDiff))

	return changes, nil
}

// MarginDelta is round(K * (0.5 + scoreDiff/10)).
func MarginDelta(scoreDiff int) int {
	return int(math.Round(MarginKFactor * (0.5 + float64(scoreDiff)/10.0)))
}

// ExpectedScore is the Elo win expectation of a rating against another.
func ExpectedScore(rating, opponent float64) float64 {
	return 1.0 / (1.0 + math.Pow(10, (opponent-rating)/400.0))
}

func applyMarginTo(records map[string]*models.PlayerStats, winners, losers []string, scoreDiff int) []models.RatingChange {
	delta := MarginDelta(scoreDiff)

	changes := make([]models.RatingChange, 0, len(winners)+len(losers))
	for _, id := range winners {
		changes = append(changes, shiftRating(records[id], delta))
	}
	for _, id := range losers {
		changes = append(changes, shiftRating(records[id], -delta))
	}
	return changes
}

func applyEloTo(records map[string]*models.PlayerStats, winners, losers []string, kFactor float64) []models.RatingChange {
	winnerAvg := averageRating(records, winners)
	loserAvg := averageRating(records, losers)

	expectedWinner := ExpectedScore(winnerAvg, loserAvg)
	expectedLoser := 1.0 - expectedWinner

	changes := make([]models.RatingChange, 0, len(winners)+len(losers))
	for _, id := range winners {
		delta := int(math.Round(kFactor * (1.0 - expectedWinner)))
		changes = append(changes, shiftRating(records[id], delta))
	}
	for _, id := range losers {
		delta := int(math.Round(kFactor * (0.0 - expectedLoser)))
		changes = append(changes, shiftRating(records[id], delta))
	}
	return changes
}

// shiftRating moves one rating by delta, clamped at MinRating. The reported
// delta is what was actually applied.
func shiftRating(stats *models.PlayerStats, delta int) models.RatingChange {
	old := stats.Rating
	next := old + delta
	if next < models.MinRating {
		next = models.MinRating
	}
	stats.Rating = next

	return models.RatingChange{
		PlayerID:  stats.PlayerID,
		OldRating: old,
		NewRating: next,
		Delta:     next - old,
	}
}

func averageRating(records map[string]*models.PlayerStats, ids []string) float64 {
	sum := 0
	for _, id := range ids {
		sum += records[id].Rating
	}
	return float64(sum) / float64(len(ids))
}

// validateSides requires two non-empty, disjoint teams of non-empty ids.
func validateSides(winners, losers []string) error {
	if len(winners) == 0 || len(losers) == 0 {
		return fmt.Errorf("%w: both teams need at least one player", ErrInvalidInput)
	}

	seen := make(map[string]struct{}, len(winners)+len(losers))
	for _, id := range append(append([]string(nil), winners...), losers...) {
		if id == "" {
			return fmt.Errorf("%w: empty player id", ErrInvalidInput)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("%w: player %s listed twice", ErrInvalidInput, id)
		}
		seen[id] = struct{}{}
	}
	return nil
}
