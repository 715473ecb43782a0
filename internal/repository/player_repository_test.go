package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mtricolici98/bot-wuzzler/internal/models"
	"github.com/mtricolici98/bot-wuzzler/pkg/database"
	"github.com/mtricolici98/bot-wuzzler/pkg/distributed"
)

type repoFactory func(t *testing.T) PlayerRepository

func repositories() map[string]repoFactory {
	return map[string]repoFactory{
		"memory": func(t *testing.T) PlayerRepository {
			return NewMemoryPlayerRepository()
		},
		"sqlite": func(t *testing.T) PlayerRepository {
			db, err := database.Connect(database.DriverSQLite, filepath.Join(t.TempDir(), "players.db"))
			require.NoError(t, err)
			repo := NewSQLPlayerRepository(db)
			t.Cleanup(func() { repo.Close() })
			return repo
		},
		"redis": func(t *testing.T) PlayerRepository {
			s := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: s.Addr()})
			repo := NewRedisPlayerRepository(client, distributed.DefaultLockOptions())
			t.Cleanup(func() { repo.Close() })
			return repo
		},
		"postgres": func(t *testing.T) PlayerRepository {
			url := os.Getenv("TEST_DATABASE_URL")
			if url == "" {
				t.Skip("TEST_DATABASE_URL not set")
			}
			db, err := database.Connect(database.DriverPostgres, url)
			require.NoError(t, err)
			_, err = db.Exec(`TRUNCATE player_stats`)
			require.NoError(t, err)
			repo := NewSQLPlayerRepository(db)
			t.Cleanup(func() { repo.Close() })
			return repo
		},
	}
}

func forEachRepository(t *testing.T, test func(t *testing.T, repo PlayerRepository)) {
	for name, factory := range repositories() {
		factory := factory
		t.Run(name, func(t *testing.T) {
			test(t, factory(t))
		})
	}
}

func TestPlayerRepository_GetDefaultsForUnknownPlayer(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PlayerRepository) {
		stats, err := repo.Get(context.Background(), "U_NEW")
		require.NoError(t, err)

		assert.Equal(t, "U_NEW", stats.PlayerID)
		assert.Equal(t, models.DefaultRating, stats.Rating)
		assert.Zero(t, stats.Wins)
		assert.Zero(t, stats.Losses)

		all, err := repo.List(context.Background())
		require.NoError(t, err)
		assert.Empty(t, all, "reads must not create records")
	})
}

func TestPlayerRepository_UpdatePersists(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PlayerRepository) {
		ctx := context.Background()

		err := repo.Update(ctx, []string{"U1", "U2"}, func(records map[string]*models.PlayerStats) error {
			records["U1"].Rating += 16
			records["U1"].Wins++
			records["U2"].Rating -= 16
			records["U2"].Losses++
			return nil
		})
		require.NoError(t, err)

		got, err := repo.GetMany(ctx, []string{"U1", "U2", "U3"})
		require.NoError(t, err)
		assert.Equal(t, 1016, got["U1"].Rating)
		assert.Equal(t, 1, got["U1"].Wins)
		assert.Equal(t, 984, got["U2"].Rating)
		assert.Equal(t, 1, got["U2"].Losses)
		assert.Equal(t, models.DefaultRating, got["U3"].Rating)
		assert.False(t, got["U1"].UpdatedAt.IsZero())

		all, err := repo.List(ctx)
		require.NoError(t, err)
		require.Len(t, all, 2)
		assert.Equal(t, "U1", all[0].PlayerID)
		assert.Equal(t, "U2", all[1].PlayerID)
	})
}

func TestPlayerRepository_UpdateAbortsOnError(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PlayerRepository) {
		ctx := context.Background()
		abort := errors.New("abort")

		err := repo.Update(ctx, []string{"U1"}, func(records map[string]*models.PlayerStats) error {
			records["U1"].Rating = 5000
			return abort
		})
		assert.ErrorIs(t, err, abort)

		stats, err := repo.Get(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, models.DefaultRating, stats.Rating)
	})
}

func TestPlayerRepository_AbortedUpdateCreatesNoRecords(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PlayerRepository) {
		ctx := context.Background()

		err := repo.Update(ctx, []string{"U1", "U2"}, func(map[string]*models.PlayerStats) error {
			return errors.New("abort")
		})
		require.Error(t, err)

		all, err := repo.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, all)
	})
}

func TestPlayerRepository_ConcurrentOverlappingUpdates(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PlayerRepository) {
		ctx := context.Background()
		const rounds = 5

		// first-time players, locked from both directions
		orders := [][]string{{"U1", "U2"}, {"U2", "U1"}}

		var wg sync.WaitGroup
		for i := 0; i < rounds; i++ {
			for _, ids := range orders {
				wg.Add(1)
				go func(ids []string) {
					defer wg.Done()
					err := repo.Update(ctx, ids, func(records map[string]*models.PlayerStats) error {
						records[ids[0]].Wins++
						records[ids[1]].Losses++
						return nil
					})
					assert.NoError(t, err)
				}(ids)
			}
		}
		wg.Wait()

		got, err := repo.GetMany(ctx, []string{"U1", "U2"})
		require.NoError(t, err)
		assert.Equal(t, rounds, got["U1"].Wins)
		assert.Equal(t, rounds, got["U1"].Losses)
		assert.Equal(t, rounds, got["U2"].Wins)
		assert.Equal(t, rounds, got["U2"].Losses)
	})
}

func TestPlayerRepository_RejectsEmptyID(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PlayerRepository) {
		ctx := context.Background()

		_, err := repo.Get(ctx, "")
		assert.ErrorIs(t, err, ErrEmptyPlayerID)

		err = repo.Update(ctx, []string{"U1", ""}, func(map[string]*models.PlayerStats) error { return nil })
		assert.ErrorIs(t, err, ErrEmptyPlayerID)
	})
}

func TestPlayerRepository_ConcurrentUpdatesDoNotLoseWrites(t *testing.T) {
	forEachRepository(t, func(t *testing.T, repo PlayerRepository) {
		ctx := context.Background()
		const workers = 10

		var wg sync.WaitGroup
		for i := 0; i < workers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				err := repo.Update(ctx, []string{"U1"}, func(records map[string]*models.PlayerStats) error {
					records["U1"].Wins++
					return nil
				})
				assert.NoError(t, err)
			}()
		}
		wg.Wait()

		stats, err := repo.Get(ctx, "U1")
		require.NoError(t, err)
		assert.Equal(t, workers, stats.Wins)
	})
}

func TestDecodePlayer_CorruptField(t *testing.T) {
	_, err := decodePlayer("U1", map[string]string{"rating": "lots"})
	assert.Error(t, err)
}
