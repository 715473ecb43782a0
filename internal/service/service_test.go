package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/internal/repository"
)

var errStoreDown = errors.New("store down")

// flakyRepository wraps the memory repository and fails on demand.
type flakyRepository struct {
	*repository.MemoryPlayerRepository

	mu          sync.Mutex
	failUpdates bool
	failReads   bool
}

func newFlakyRepository() *flakyRepository {
	return &flakyRepository{MemoryPlayerRepository: repository.NewMemoryPlayerRepository()}
}

func (r *flakyRepository) setFailUpdates(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failUpdates = v
}

func (r *flakyRepository) setFailReads(v bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failReads = v
}

func (r *flakyRepository) GetMany(ctx context.Context, ids []string) (map[string]models.PlayerStats, error) {
	r.mu.Lock()
	fail := r.failReads
	r.mu.Unlock()
	if fail {
		return nil, errStoreDown
	}
	return r.MemoryPlayerRepository.GetMany(ctx, ids)
}

func (r *flakyRepository) Update(ctx context.Context, ids []string, fn repository.UpdateFunc) error {
	r.mu.Lock()
	fail := r.failUpdates
	r.mu.Unlock()
	if fail {
		// run fn so partial in-memory mutation would show up if it leaked
		return r.MemoryPlayerRepository.Update(ctx, ids, func(records map[string]*models.PlayerStats) error {
			if err := fn(records); err != nil {
				return err
			}
			return errStoreDown
		})
	}
	return r.MemoryPlayerRepository.Update(ctx, ids, fn)
}

func seedRatings(t *testing.T, repo repository.PlayerRepository, ratings map[string]int) {
	t.Helper()

	ids := make([]string, 0, len(ratings))
	for id := range ratings {
		ids = append(ids, id)
	}
	err := repo.Update(context.Background(), ids, func(records map[string]*models.PlayerStats) error {
		for id, rating := range ratings {
			records[id].Rating = rating
		}
		return nil
	})
	require.NoError(t, err)
}

func changesByPlayer(changes []models.RatingChange) map[string]models.RatingChange {
	out := make(map[string]models.RatingChange, len(changes))
	for _, c := range changes {
		out[c.PlayerID] = c
	}
	return out
}
